package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"cloudboard/api/middleware"
	"cloudboard/api/models"
)

type UserHandlers struct {
	users UserRepository
	log   *zap.Logger
}

func NewUserHandlers(users UserRepository, log *zap.Logger) *UserHandlers {
	return &UserHandlers{users: users, log: log}
}

func (h *UserHandlers) List(c *gin.Context) {
	var page models.Pagination
	if err := c.ShouldBindQuery(&page); err != nil {
		validationError(c, err)
		return
	}

	users, err := h.users.ListUsers(c.Request.Context(), page.Limit, page.Offset)
	if err != nil {
		internalError(c, err, "failed to list users")
		return
	}
	if len(users) == 0 {
		notFound(c, "no users found")
		return
	}
	c.JSON(http.StatusOK, users)
}

func (h *UserHandlers) Get(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	user, err := h.users.GetUserByID(c.Request.Context(), id)
	if err != nil {
		storeError(c, err, "user not found", "failed to get user")
		return
	}
	c.JSON(http.StatusOK, user)
}

// Me returns the calling user.
func (h *UserHandlers) Me(c *gin.Context) {
	current, _ := middleware.CurrentUser(c)

	user, err := h.users.GetUserByID(c.Request.Context(), current.UserID)
	if err != nil {
		storeError(c, err, "user not found", "failed to get user")
		return
	}
	c.JSON(http.StatusOK, user)
}
