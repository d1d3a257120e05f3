package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tidechat/server/internal/v1/config"
	"github.com/tidechat/server/internal/v1/hub"
	"github.com/tidechat/server/internal/v1/store"
	"github.com/tidechat/server/internal/v1/types"
)

const findUserEntityQuery = "SELECT id, username, password, nickname, avatar, role, active FROM users WHERE username = $1 AND active = TRUE"

type fixture struct {
	router *gin.Engine
	store  *store.Store
	hub    *hub.Hub
	mock   sqlmock.Sqlmock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	st := store.NewWithClients(db, rdb)
	h := hub.New()
	api := New(st, h, &config.Config{DevelopmentMode: true})

	router := gin.New()
	router.POST("/api/login", api.Login)
	authed := router.Group("/api", api.RequireAuth())
	{
		authed.POST("/logout", api.Logout)
		authed.GET("/sessions", api.ListSessions)
		authed.GET("/profile", api.Profile)
		admin := authed.Group("/admin", api.RequireAdmin())
		{
			admin.GET("/hub", api.HubSnapshot)
		}
	}

	return &fixture{router: router, store: st, hub: h, mock: mock}
}

// seedSession caches a user and plants a live token for them.
func (f *fixture) seedSession(t *testing.T, user types.User, token string) {
	t.Helper()
	ctx := context.Background()

	raw, err := json.Marshal(user)
	require.NoError(t, err)
	require.NoError(t, f.store.Redis.Set(ctx, types.UserKey(user.ID), raw, 0).Err())
	require.NoError(t, f.store.Redis.ZAdd(ctx, types.SessionKey(user.ID),
		redis.Z{Score: 100, Member: token}).Err())
}

func withSession(req *http.Request, userID, token string) *http.Request {
	req.AddCookie(&http.Cookie{Name: CookieUserID, Value: userID})
	req.AddCookie(&http.Cookie{Name: CookieSession, Value: token})
	return req
}

func TestLogin_SetsCookies(t *testing.T) {
	f := newFixture(t)
	encoded, err := store.HashPassword("secret")
	require.NoError(t, err)

	f.mock.ExpectQuery(findUserEntityQuery).WithArgs("ada").
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "password", "nickname", "avatar", "role", "active"}).
			AddRow(1, "ada", encoded, "Ada", "", types.RoleUser, true))

	body, _ := json.Marshal(gin.H{"username": "ada", "password": "secret"})
	req := httptest.NewRequest("POST", "/api/login", bytes.NewReader(body))
	resp := httptest.NewRecorder()
	f.router.ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)

	cookies := resp.Result().Cookies()
	names := map[string]bool{}
	for _, c := range cookies {
		names[c.Name] = true
		assert.True(t, c.HttpOnly)
	}
	assert.True(t, names[CookieUserID])
	assert.True(t, names[CookieSession])

	count, err := f.store.Redis.ZCard(context.Background(), types.SessionKey(1)).Result()
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestLogin_WrongPassword(t *testing.T) {
	f := newFixture(t)
	encoded, err := store.HashPassword("secret")
	require.NoError(t, err)

	f.mock.ExpectQuery(findUserEntityQuery).WithArgs("ada").
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "password", "nickname", "avatar", "role", "active"}).
			AddRow(1, "ada", encoded, "Ada", "", types.RoleUser, true))

	body, _ := json.Marshal(gin.H{"username": "ada", "password": "wrong"})
	req := httptest.NewRequest("POST", "/api/login", bytes.NewReader(body))
	resp := httptest.NewRecorder()
	f.router.ServeHTTP(resp, req)

	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Contains(t, resp.Body.String(), "The password is incorrect")
}

func TestLogin_UnknownUser(t *testing.T) {
	f := newFixture(t)

	f.mock.ExpectQuery(findUserEntityQuery).WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "password", "nickname", "avatar", "role", "active"}))

	body, _ := json.Marshal(gin.H{"username": "ghost", "password": "x"})
	req := httptest.NewRequest("POST", "/api/login", bytes.NewReader(body))
	resp := httptest.NewRecorder()
	f.router.ServeHTTP(resp, req)

	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Contains(t, resp.Body.String(), "User not found")
}

func TestProfile_RequiresAuth(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest("GET", "/api/profile", nil)
	resp := httptest.NewRecorder()
	f.router.ServeHTTP(resp, req)

	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestProfile_WithSession(t *testing.T) {
	f := newFixture(t)
	f.seedSession(t, types.User{ID: 1, Username: "ada", Role: types.RoleUser, Active: true}, "tok")

	req := withSession(httptest.NewRequest("GET", "/api/profile", nil), "1", "tok")
	resp := httptest.NewRecorder()
	f.router.ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)

	var user types.User
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &user))
	assert.Equal(t, "ada", user.Username)
}

func TestAdmin_ForbiddenForRegularUser(t *testing.T) {
	f := newFixture(t)
	f.seedSession(t, types.User{ID: 1, Username: "ada", Role: types.RoleUser, Active: true}, "tok")

	req := withSession(httptest.NewRequest("GET", "/api/admin/hub", nil), "1", "tok")
	resp := httptest.NewRecorder()
	f.router.ServeHTTP(resp, req)

	assert.Equal(t, http.StatusForbidden, resp.Code)
}

func TestAdmin_HubSnapshot(t *testing.T) {
	f := newFixture(t)
	f.seedSession(t, types.User{ID: 1, Username: "root", Role: types.RoleAdmin, Active: true}, "tok")

	req := withSession(httptest.NewRequest("GET", "/api/admin/hub", nil), "1", "tok")
	resp := httptest.NewRecorder()
	f.router.ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), "feeds")
	assert.Contains(t, resp.Body.String(), "users")
}

func TestLogout_RevokesSession(t *testing.T) {
	f := newFixture(t)
	f.seedSession(t, types.User{ID: 1, Username: "ada", Role: types.RoleUser, Active: true}, "tok")

	req := withSession(httptest.NewRequest("POST", "/api/logout", nil), "1", "tok")
	resp := httptest.NewRecorder()
	f.router.ServeHTTP(resp, req)
	require.Equal(t, http.StatusNoContent, resp.Code)

	req = withSession(httptest.NewRequest("GET", "/api/profile", nil), "1", "tok")
	resp = httptest.NewRecorder()
	f.router.ServeHTTP(resp, req)
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestListSessions_CurrentFlag(t *testing.T) {
	f := newFixture(t)
	f.seedSession(t, types.User{ID: 1, Username: "ada", Role: types.RoleUser, Active: true}, "tok")
	require.NoError(t, f.store.Redis.ZAdd(context.Background(), types.SessionKey(1),
		redis.Z{Score: 50, Member: "older"}).Err())

	req := withSession(httptest.NewRequest("GET", "/api/sessions", nil), "1", "tok")
	resp := httptest.NewRecorder()
	f.router.ServeHTTP(resp, req)
	require.Equal(t, http.StatusOK, resp.Code)

	var sessions []types.Session
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &sessions))
	require.Len(t, sessions, 2)
	assert.Equal(t, "tok", sessions[0].ID)
	assert.True(t, sessions[0].Current)
	assert.False(t, sessions[1].Current)
}
