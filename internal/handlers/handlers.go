package handlers

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Handler combines all handler types
type Handler struct {
	Auth    *AuthHandler
	Post    *PostHandler
	Comment *CommentHandler
	User    *UserHandler
}

// NewHandler creates a unified handler with all sub-handlers
func NewHandler(db *gorm.DB) *Handler {
	return &Handler{
		Auth:    NewAuthHandler(db),
		Post:    NewPostHandler(db),
		Comment: NewCommentHandler(db),
		User:    NewUserHandler(db),
	}
}

// currentUserID reads the actor set by the auth middleware.
func currentUserID(c *gin.Context) (int, bool) {
	raw, exists := c.Get("user_id")
	if !exists {
		return 0, false
	}
	id, ok := raw.(int)
	return id, ok
}
