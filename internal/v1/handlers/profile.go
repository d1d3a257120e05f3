package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tidechat/server/internal/v1/errs"
	"github.com/tidechat/server/internal/v1/store"
)

// Profile returns the caller's account.
func (h *Handler) Profile(c *gin.Context) {
	c.JSON(http.StatusOK, currentUser(c))
}

type updateProfileRequest struct {
	Nickname *string `json:"nickname"`
	Avatar   *string `json:"avatar"`
}

// UpdateProfile applies a partial update to the caller's nickname or avatar.
func (h *Handler) UpdateProfile(c *gin.Context) {
	var req updateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErr(c, errs.BadRequest("Malformed profile update"))
		return
	}
	if req.Nickname == nil && req.Avatar == nil {
		respondErr(c, errs.BadRequest("Nothing to update"))
		return
	}
	if req.Nickname != nil && *req.Nickname == "" {
		respondErr(c, errs.BadRequest("Nickname cannot be empty"))
		return
	}

	user, err := h.store.UpdateUser(c.Request.Context(), currentUser(c).ID, store.UpdateUserArg{
		Nickname: req.Nickname,
		Avatar:   req.Avatar,
	})
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

type updatePasswordRequest struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required"`
}

// UpdatePassword rotates the caller's password after checking the old one.
func (h *Handler) UpdatePassword(c *gin.Context) {
	var req updatePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErr(c, errs.BadRequest("Missing old or new password"))
		return
	}

	if err := h.store.UpdatePassword(c.Request.Context(), currentUser(c).ID, req.OldPassword, req.NewPassword); err != nil {
		respondErr(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// FindUser looks an account up by exact username or nickname, for the
// add-friend search box.
func (h *Handler) FindUser(c *gin.Context) {
	keyword := c.Query("keyword")
	if keyword == "" {
		respondErr(c, errs.BadRequest("Missing keyword"))
		return
	}

	user, err := h.store.FindUser(c.Request.Context(), keyword)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}
