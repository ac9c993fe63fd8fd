package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"socialspace/internal/http/handlers/common"
	"socialspace/internal/repository"
	"socialspace/internal/validation"
)

// ProfileHandler отвечает за работу с профилем.
type ProfileHandler struct {
	users *repository.UserRepository
}

// NewProfileHandler создаёт экземпляр.
func NewProfileHandler(users *repository.UserRepository) *ProfileHandler {
	return &ProfileHandler{users: users}
}

// GetMe возвращает профиль текущего пользователя.
func (h *ProfileHandler) GetMe(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	user, err := h.users.GetByID(c.Request.Context(), userID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, user)
}

// UpdateMe обновляет профиль текущего пользователя.
func (h *ProfileHandler) UpdateMe(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	var req struct {
		Username string  `json:"username"`
		Bio      *string `json:"bio"`
		AvatarID *string `json:"avatar_id"`
		Birthday *string `json:"birthday"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.users.GetByID(c.Request.Context(), userID)
	if err != nil {
		c.Error(err)
		return
	}

	if req.Username != "" {
		if err := validation.ValidateUsername(req.Username); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		user.Username = req.Username
	}

	if req.Bio != nil {
		if err := validation.ValidateLength("биография", *req.Bio, 0, validation.MaxBioLength); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		user.Bio = req.Bio
	}

	if req.AvatarID != nil {
		if *req.AvatarID == "" {
			user.AvatarID = nil
		} else {
			avatarID, err := uuid.Parse(*req.AvatarID)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "avatar_id должен быть валидным UUID"})
				return
			}
			user.AvatarID = &avatarID
		}
	}

	if req.Birthday != nil {
		if *req.Birthday == "" {
			user.Birthday = nil
		} else {
			birthday, err := time.Parse("2006-01-02", *req.Birthday)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "birthday должен быть в формате YYYY-MM-DD"})
				return
			}
			user.Birthday = &birthday
		}
	}

	if err := h.users.UpdateProfile(c.Request.Context(), user); err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, user)
}

// GetUser возвращает публичный профиль по ID.
func (h *ProfileHandler) GetUser(c *gin.Context) {
	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	profile, err := h.users.GetPublicProfile(c.Request.Context(), id)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, profile)
}

// SearchUsers обрабатывает GET /users/search?q=...
func (h *ProfileHandler) SearchUsers(c *gin.Context) {
	term := c.Query("q")
	if err := validation.ValidateNonEmpty("q", term); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	limit, _ := common.GetPagination(c)

	profiles, err := h.users.SearchUsers(c.Request.Context(), term, limit)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"users": profiles})
}
