package models

import "time"

type Comment struct {
	ID        int       `gorm:"primaryKey" json:"id"`
	PostID    int       `gorm:"index;not null" json:"post_id"`
	AuthorID  int       `json:"author_id"`
	Author    User      `gorm:"foreignKey:AuthorID" json:"author"`
	Content   string    `gorm:"not null" json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

type CreateCommentRequest struct {
	Content string `json:"content" binding:"required"`
}
