package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/tidechat/server/internal/v1/errs"
	"github.com/tidechat/server/internal/v1/store"
	"github.com/tidechat/server/internal/v1/types"
)

// HubSnapshot reports the live hub state for the admin page.
func (h *Handler) HubSnapshot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"feeds": h.hub.GetFeeds(),
		"users": h.hub.GetUsers(),
	})
}

// ListUsers returns a page of accounts.
func (h *Handler) ListUsers(c *gin.Context) {
	offset, err := strconv.ParseInt(c.DefaultQuery("offset", "0"), 10, 64)
	if err != nil || offset < 0 {
		respondErr(c, errs.BadRequest("Invalid offset"))
		return
	}
	limit, err := strconv.ParseInt(c.DefaultQuery("limit", "50"), 10, 64)
	if err != nil || limit < 1 || limit > 200 {
		respondErr(c, errs.BadRequest("Invalid limit"))
		return
	}

	users, err := h.store.ListUsers(c.Request.Context(), offset, limit)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, users)
}

type createUserRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
	Nickname string `json:"nickname"`
	Admin    bool   `json:"admin"`
}

// CreateUser registers a new account. There is no open signup; accounts come
// from here.
func (h *Handler) CreateUser(c *gin.Context) {
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErr(c, errs.BadRequest("Missing username or password"))
		return
	}

	role := types.RoleUser
	if req.Admin {
		role = types.RoleAdmin
	}
	err := h.store.InsertUser(c.Request.Context(), store.InsertUserArg{
		Username: req.Username,
		Password: req.Password,
		Nickname: req.Nickname,
		Role:     role,
		Active:   true,
	})
	if err != nil {
		respondErr(c, err)
		return
	}
	c.Status(http.StatusCreated)
}

type updateUserRequest struct {
	Nickname *string         `json:"nickname"`
	Avatar   *string         `json:"avatar"`
	Active   *bool           `json:"active"`
	Role     *types.UserRole `json:"role"`
}

// UpdateUser applies a partial update to any account. Deactivation also kicks
// the user's live connections and purges their sessions.
func (h *Handler) UpdateUser(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		respondErr(c, errs.BadRequest("Invalid user id"))
		return
	}

	var req updateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErr(c, errs.BadRequest("Malformed user update"))
		return
	}

	if req.Active != nil && !*req.Active {
		if err := h.store.DeactivateUser(c.Request.Context(), userID); err != nil {
			respondErr(c, err)
			return
		}
		h.hub.Remove(c.Request.Context(), userID)
		req.Active = nil
	}

	user, err := h.store.UpdateUser(c.Request.Context(), userID, store.UpdateUserArg{
		Nickname: req.Nickname,
		Avatar:   req.Avatar,
		Active:   req.Active,
		Role:     req.Role,
	})
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// DeleteUser deactivates an account and kicks its live connections.
func (h *Handler) DeleteUser(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		respondErr(c, errs.BadRequest("Invalid user id"))
		return
	}

	if err := h.store.DeactivateUser(c.Request.Context(), userID); err != nil {
		respondErr(c, err)
		return
	}
	h.hub.Remove(c.Request.Context(), userID)
	c.Status(http.StatusNoContent)
}

// ListFileLinks returns every shared-file entry.
func (h *Handler) ListFileLinks(c *gin.Context) {
	links, err := h.store.ListFileLinks(c.Request.Context())
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, links)
}

type createFileLinkRequest struct {
	Name   string `json:"name" binding:"required"`
	Link   string `json:"link" binding:"required"`
	QRLink string `json:"qrlink"`
}

// CreateFileLink records a shared file.
func (h *Handler) CreateFileLink(c *gin.Context) {
	var req createFileLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErr(c, errs.BadRequest("Missing name or link"))
		return
	}

	link, err := h.store.InsertFileLink(c.Request.Context(), req.Name, req.Link, req.QRLink)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, link)
}

// DeleteFileLink removes a shared-file entry.
func (h *Handler) DeleteFileLink(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		respondErr(c, errs.BadRequest("Invalid file link id"))
		return
	}

	if err := h.store.DeleteFileLink(c.Request.Context(), id); err != nil {
		respondErr(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
