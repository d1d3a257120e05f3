package store

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tidechat/server/internal/v1/errs"
	"github.com/tidechat/server/internal/v1/types"
)

func miniredisClient(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return rdb
}

const getUserQuery = "SELECT id, username, nickname, avatar, role, active FROM users WHERE id = $1 AND active = TRUE"

func userRow(user types.User) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "username", "nickname", "avatar", "role", "active"}).
		AddRow(user.ID, user.Username, user.Nickname, user.Avatar, user.Role, user.Active)
}

func TestGetUser_ReadThroughCache(t *testing.T) {
	s, mock := newSQLStore(t)
	ctx := context.Background()
	user := types.User{ID: 1, Username: "ada", Nickname: "Ada", Role: types.RoleUser, Active: true}

	// First load misses the cache and hits the database once.
	mock.ExpectQuery(getUserQuery).WithArgs(int64(1)).WillReturnRows(userRow(user))

	got, err := s.GetUser(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, user, got)

	// Second load is served from the cache; no second query is expected.
	got, err = s.GetUser(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, user, got)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetUser_Missing(t *testing.T) {
	s, mock := newSQLStore(t)

	mock.ExpectQuery(getUserQuery).WithArgs(int64(9)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "nickname", "avatar", "role", "active"}))

	_, err := s.GetUser(context.Background(), 9)
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestUpdateUser_RefreshesCache(t *testing.T) {
	s, mock := newSQLStore(t)
	ctx := context.Background()

	cacheTestUser(t, s, types.User{ID: 1, Username: "ada", Nickname: "Old", Active: true})

	updated := types.User{ID: 1, Username: "ada", Nickname: "New", Role: types.RoleUser, Active: true}
	nickname := "New"
	mock.ExpectQuery("UPDATE users SET nickname = COALESCE($2, nickname), avatar = COALESCE($3, avatar), " +
		"active = COALESCE($4, active), role = COALESCE($5, role) WHERE id = $1 RETURNING id, username, nickname, avatar, role, active").
		WithArgs(int64(1), "New", nil, nil, nil).
		WillReturnRows(userRow(updated))

	got, err := s.UpdateUser(ctx, 1, UpdateUserArg{Nickname: &nickname})
	require.NoError(t, err)
	assert.Equal(t, "New", got.Nickname)

	// The cache now serves the new projection.
	cached, err := s.GetUser(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "New", cached.Nickname)
}

func TestPasswordRoundTrip(t *testing.T) {
	encoded, err := HashPassword("secret")
	require.NoError(t, err)

	assert.NoError(t, VerifyPassword("secret", encoded))

	err = VerifyPassword("wrong", encoded)
	require.Error(t, err)
	assert.True(t, errs.IsBadRequest(err))
	assert.EqualError(t, err, "The password is incorrect")
}

func TestHashPassword_SaltsDiffer(t *testing.T) {
	a, err := HashPassword("secret")
	require.NoError(t, err)
	b, err := HashPassword("secret")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestVerifyPassword_MalformedHash(t *testing.T) {
	assert.Error(t, VerifyPassword("x", "not-a-hash"))
}
