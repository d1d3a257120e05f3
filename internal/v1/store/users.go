package store

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/tidechat/server/internal/v1/errs"
	"github.com/tidechat/server/internal/v1/logging"
	"github.com/tidechat/server/internal/v1/types"
)

// userEntity is the full database row including the password hash. It never
// leaves this package.
type userEntity struct {
	types.User
	Password string
}

const userColumns = "id, username, nickname, avatar, role, active"

// GetUser loads a user's public projection, read-through cached in redis.
func (s *Store) GetUser(ctx context.Context, userID int64) (types.User, error) {
	key := types.UserKey(userID)

	raw, err := s.Redis.Get(ctx, key).Result()
	switch {
	case err == nil:
		var user types.User
		if err := json.Unmarshal([]byte(raw), &user); err == nil {
			return user, nil
		}
		// A corrupt entry falls through to the database.
		logging.Warn(ctx, "dropping corrupt user cache entry", zap.String("key", key))
	case !errors.Is(err, redis.Nil):
		return types.User{}, wrapRedisErr(err)
	}

	var user types.User
	row := s.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id = $1 AND active = TRUE", userID)
	if err := row.Scan(&user.ID, &user.Username, &user.Nickname, &user.Avatar, &user.Role, &user.Active); err != nil {
		return types.User{}, wrapDBErr(err)
	}

	s.cacheUser(ctx, user)
	return user, nil
}

// cacheUser stores a user projection with the standard TTL. Best effort.
func (s *Store) cacheUser(ctx context.Context, user types.User) {
	raw, err := json.Marshal(user)
	if err != nil {
		return
	}
	if err := s.Redis.SetEx(ctx, types.UserKey(user.ID), raw, userCacheTTL).Err(); err != nil {
		logging.Warn(ctx, "user cache write failed", zap.Int64("user_id", user.ID), zap.Error(err))
	}
}

// invalidateUser drops a user's cache entry after a profile change.
func (s *Store) invalidateUser(ctx context.Context, userID int64) {
	if err := s.Redis.Del(ctx, types.UserKey(userID)).Err(); err != nil {
		logging.Warn(ctx, "user cache invalidation failed", zap.Int64("user_id", userID), zap.Error(err))
	}
}

// FindUser looks a user up by exact username or nickname.
func (s *Store) FindUser(ctx context.Context, keyword string) (types.User, error) {
	var user types.User
	row := s.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE (username = $1 OR nickname = $1) AND active = TRUE",
		keyword)
	if err := row.Scan(&user.ID, &user.Username, &user.Nickname, &user.Avatar, &user.Role, &user.Active); err != nil {
		return types.User{}, wrapDBErr(err)
	}
	return user, nil
}

// FindUserEntity loads the full row for credential checks.
func (s *Store) FindUserEntity(ctx context.Context, username string) (types.User, string, error) {
	var ent userEntity
	row := s.DB.QueryRowContext(ctx,
		"SELECT id, username, password, nickname, avatar, role, active FROM users WHERE username = $1 AND active = TRUE",
		username)
	if err := row.Scan(&ent.ID, &ent.Username, &ent.Password, &ent.Nickname, &ent.Avatar, &ent.Role, &ent.Active); err != nil {
		return types.User{}, "", wrapDBErr(err)
	}
	return ent.User, ent.Password, nil
}

// InsertUserArg carries the fields of a new account.
type InsertUserArg struct {
	Username string
	Password string
	Nickname string
	Avatar   string
	Role     types.UserRole
	Active   bool
}

// InsertUser creates an account. The nickname defaults to the username.
func (s *Store) InsertUser(ctx context.Context, arg InsertUserArg) error {
	hash, err := HashPassword(arg.Password)
	if err != nil {
		return err
	}
	if arg.Nickname == "" {
		arg.Nickname = arg.Username
	}
	_, err = s.DB.ExecContext(ctx,
		"INSERT INTO users (username, password, nickname, avatar, role, active) VALUES ($1, $2, $3, $4, $5, $6)",
		arg.Username, hash, arg.Nickname, arg.Avatar, arg.Role, arg.Active)
	return wrapDBErr(err)
}

// UpdateUserArg is a partial profile update. Nil fields keep their value.
type UpdateUserArg struct {
	Nickname *string
	Avatar   *string
	Active   *bool
	Role     *types.UserRole
}

// UpdateUser applies a partial update and refreshes the cache.
func (s *Store) UpdateUser(ctx context.Context, userID int64, arg UpdateUserArg) (types.User, error) {
	var user types.User
	row := s.DB.QueryRowContext(ctx,
		"UPDATE users SET nickname = COALESCE($2, nickname), avatar = COALESCE($3, avatar), "+
			"active = COALESCE($4, active), role = COALESCE($5, role) WHERE id = $1 RETURNING "+userColumns,
		userID, arg.Nickname, arg.Avatar, arg.Active, arg.Role)
	if err := row.Scan(&user.ID, &user.Username, &user.Nickname, &user.Avatar, &user.Role, &user.Active); err != nil {
		return types.User{}, wrapDBErr(err)
	}

	s.invalidateUser(ctx, userID)
	s.cacheUser(ctx, user)
	return user, nil
}

// UpdatePassword verifies the old password and stores a new hash.
func (s *Store) UpdatePassword(ctx context.Context, userID int64, oldPassword, newPassword string) error {
	var username string
	if err := s.DB.QueryRowContext(ctx,
		"SELECT username FROM users WHERE id = $1 AND active = TRUE", userID).Scan(&username); err != nil {
		return wrapDBErr(err)
	}

	_, encoded, err := s.FindUserEntity(ctx, username)
	if err != nil {
		return err
	}
	if err := VerifyPassword(oldPassword, encoded); err != nil {
		return err
	}

	hash, err := HashPassword(newPassword)
	if err != nil {
		return err
	}
	_, err = s.DB.ExecContext(ctx, "UPDATE users SET password = $2 WHERE id = $1", userID, hash)
	return wrapDBErr(err)
}

// DeactivateUser marks an account inactive and drops its cache entry and
// sessions, which also blocks any live token from verifying again.
func (s *Store) DeactivateUser(ctx context.Context, userID int64) error {
	res, err := s.DB.ExecContext(ctx, "UPDATE users SET active = FALSE WHERE id = $1", userID)
	if err != nil {
		return wrapDBErr(err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errs.ErrNotFound
	}

	s.invalidateUser(ctx, userID)
	if err := s.Redis.Del(ctx, types.SessionKey(userID)).Err(); err != nil {
		logging.Warn(ctx, "session purge failed", zap.Int64("user_id", userID), zap.Error(err))
	}
	return nil
}

// ListUsers returns a page of accounts ordered by id, active or not.
func (s *Store) ListUsers(ctx context.Context, offset, limit int64) ([]types.User, error) {
	rows, err := s.DB.QueryContext(ctx,
		"SELECT "+userColumns+" FROM users ORDER BY id OFFSET $1 LIMIT $2", offset, limit)
	if err != nil {
		return nil, wrapDBErr(err)
	}
	defer rows.Close()

	users := []types.User{}
	for rows.Next() {
		var user types.User
		if err := rows.Scan(&user.ID, &user.Username, &user.Nickname, &user.Avatar, &user.Role, &user.Active); err != nil {
			return nil, wrapDBErr(err)
		}
		users = append(users, user)
	}
	return users, wrapDBErr(rows.Err())
}
