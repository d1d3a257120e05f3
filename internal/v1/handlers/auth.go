package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tidechat/server/internal/v1/errs"
	"github.com/tidechat/server/internal/v1/metrics"
	"github.com/tidechat/server/internal/v1/store"
)

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login checks the credentials and issues a session token via cookies.
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErr(c, errs.BadRequest("Missing username or password"))
		return
	}

	user, encoded, err := h.store.FindUserEntity(c.Request.Context(), req.Username)
	if err != nil {
		metrics.AuthFailures.Inc()
		if errors.Is(err, errs.ErrNotFound) {
			err = errs.BadRequest("User not found")
		}
		respondErr(c, err)
		return
	}

	if err := store.VerifyPassword(req.Password, encoded); err != nil {
		metrics.AuthFailures.Inc()
		respondErr(c, err)
		return
	}

	token, err := h.store.IssueSession(c.Request.Context(), user.ID)
	if err != nil {
		respondErr(c, err)
		return
	}

	h.setSessionCookies(c, user.ID, token)
	c.JSON(http.StatusOK, user)
}

// Logout revokes the caller's token and clears the cookies.
func (h *Handler) Logout(c *gin.Context) {
	if err := h.store.RevokeSession(c.Request.Context(), currentUser(c).ID, currentToken(c)); err != nil {
		respondErr(c, err)
		return
	}
	h.clearSessionCookies(c)
	c.Status(http.StatusNoContent)
}

// ListSessions returns the caller's active sessions, newest first.
func (h *Handler) ListSessions(c *gin.Context) {
	sessions, err := h.store.ListSessions(c.Request.Context(), currentUser(c).ID, currentToken(c))
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, sessions)
}

// RevokeSession removes one of the caller's tokens by id.
func (h *Handler) RevokeSession(c *gin.Context) {
	if err := h.store.RevokeSession(c.Request.Context(), currentUser(c).ID, c.Param("token")); err != nil {
		respondErr(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
