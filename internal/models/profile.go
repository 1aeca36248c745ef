package models

// Profile holds the public-facing details of a user. Exactly one row per
// user; created together with the user at registration.
type Profile struct {
	ID          int    `gorm:"primaryKey" json:"id"`
	UserID      int    `gorm:"uniqueIndex;not null" json:"user_id"`
	User        User   `gorm:"foreignKey:UserID" json:"-"`
	DisplayName string `gorm:"size:150" json:"display_name"`
	Bio         string `json:"bio"`
	Website     string `json:"website"`
	Avatar      string `json:"avatar"`
}

type UpdateProfileRequest struct {
	DisplayName string `json:"display_name"`
	Bio         string `json:"bio"`
	Website     string `json:"website"`
	Avatar      string `json:"avatar"`
}
