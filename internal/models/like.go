package models

import "time"

// Like marks that a user liked a post. The composite unique index is the
// storage backstop for the toggle: at most one row per (post, user).
type Like struct {
	ID        int       `gorm:"primaryKey" json:"id"`
	PostID    int       `gorm:"uniqueIndex:idx_likes_post_user;not null" json:"post_id"`
	UserID    int       `gorm:"uniqueIndex:idx_likes_post_user;not null" json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}
