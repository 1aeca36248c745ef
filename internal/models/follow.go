package models

import "time"

// Follow is a directed edge: follower follows target. At most one row per
// (follower, target) pair; self-follows are rejected before insertion.
type Follow struct {
	ID         int       `gorm:"primaryKey" json:"id"`
	FollowerID int       `gorm:"uniqueIndex:idx_follows_follower_target;not null" json:"follower_id"`
	TargetID   int       `gorm:"uniqueIndex:idx_follows_follower_target;not null" json:"target_id"`
	Follower   User      `gorm:"foreignKey:FollowerID" json:"follower"`
	Target     User      `gorm:"foreignKey:TargetID" json:"target"`
	CreatedAt  time.Time `json:"created_at"`
}
