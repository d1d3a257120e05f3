// Package handlers implements the HTTP API: authentication, profile and
// session management, and the admin surface.
package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/tidechat/server/internal/v1/config"
	"github.com/tidechat/server/internal/v1/errs"
	"github.com/tidechat/server/internal/v1/hub"
	"github.com/tidechat/server/internal/v1/metrics"
	"github.com/tidechat/server/internal/v1/store"
	"github.com/tidechat/server/internal/v1/types"
)

// Cookie names shared with the WebSocket edge.
const (
	CookieUserID  = "id"
	CookieSession = "sess"
)

// sessionCookieMaxAge matches the user cache TTL. Verification refreshes the
// token server side, so an active session outlives the cookie's first window.
const sessionCookieMaxAge = 7 * 24 * 3600

// Context keys set by the auth middleware.
const (
	ctxUser  = "user"
	ctxToken = "session_token"
)

// Handler carries the dependencies of every API endpoint.
type Handler struct {
	store *store.Store
	hub   *hub.Hub
	cfg   *config.Config
}

// New builds the API handler.
func New(st *store.Store, h *hub.Hub, cfg *config.Config) *Handler {
	return &Handler{store: st, hub: h, cfg: cfg}
}

// respondErr writes an error with its taxonomy status code.
func respondErr(c *gin.Context, err error) {
	c.JSON(errs.StatusCode(err), gin.H{"error": err.Error()})
}

// setSessionCookies installs the id and sess cookies.
func (h *Handler) setSessionCookies(c *gin.Context, userID int64, token string) {
	secure := !h.cfg.DevelopmentMode
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(CookieUserID, strconv.FormatInt(userID, 10), sessionCookieMaxAge, "/", "", secure, true)
	c.SetCookie(CookieSession, token, sessionCookieMaxAge, "/", "", secure, true)
}

// clearSessionCookies expires both cookies.
func (h *Handler) clearSessionCookies(c *gin.Context) {
	secure := !h.cfg.DevelopmentMode
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(CookieUserID, "", -1, "/", "", secure, true)
	c.SetCookie(CookieSession, "", -1, "/", "", secure, true)
}

// readSessionCookies extracts the credentials without verifying them.
func readSessionCookies(c *gin.Context) (int64, string, error) {
	idCookie, err := c.Cookie(CookieUserID)
	if err != nil {
		return 0, "", errs.ErrUnauthorized
	}
	userID, err := strconv.ParseInt(idCookie, 10, 64)
	if err != nil {
		return 0, "", errs.ErrUnauthorized
	}
	token, err := c.Cookie(CookieSession)
	if err != nil {
		return 0, "", errs.ErrUnauthorized
	}
	return userID, token, nil
}

// RequireAuth verifies the session cookies, refreshing the token's timestamp,
// and stores the user on the request context.
func (h *Handler) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, token, err := readSessionCookies(c)
		if err != nil {
			metrics.AuthFailures.Inc()
			c.AbortWithStatusJSON(errs.StatusCode(err), gin.H{"error": err.Error()})
			return
		}

		user, err := h.store.VerifySession(c.Request.Context(), userID, token, true)
		if err != nil {
			metrics.AuthFailures.Inc()
			c.AbortWithStatusJSON(errs.StatusCode(err), gin.H{"error": err.Error()})
			return
		}

		c.Set(ctxUser, user)
		c.Set(ctxToken, token)
		c.Next()
	}
}

// RequireAdmin gates an endpoint on the administrator role. Must run after
// RequireAuth.
func (h *Handler) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !currentUser(c).IsAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": errs.ErrForbidden.Error()})
			return
		}
		c.Next()
	}
}

func currentUser(c *gin.Context) types.User {
	user, _ := c.MustGet(ctxUser).(types.User)
	return user
}

func currentToken(c *gin.Context) string {
	token, _ := c.MustGet(ctxToken).(string)
	return token
}
