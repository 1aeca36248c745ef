package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/emberblog/backend/internal/models"
	"github.com/emberblog/backend/internal/social"
)

type UserHandler struct {
	db *gorm.DB
}

func NewUserHandler(db *gorm.DB) *UserHandler {
	return &UserHandler{db: db}
}

// getOrCreateProfile is the defensive fallback for users created before
// profiles were part of the registration transaction.
func (h *UserHandler) getOrCreateProfile(userID int) (models.Profile, error) {
	var profile models.Profile
	err := h.db.Where(models.Profile{UserID: userID}).FirstOrCreate(&profile).Error
	return profile, err
}

// GetOwnProfile returns the viewer's own stats and posts. Anonymous viewers
// get an empty view rather than an error.
func (h *UserHandler) GetOwnProfile(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusOK, gin.H{
			"user":  nil,
			"posts": []models.Post{},
			"stats": social.Stats{},
		})
		return
	}

	var user models.User
	if err := h.db.First(&user, userID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	profile, err := h.getOrCreateProfile(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load profile"})
		return
	}

	stats, err := social.ProfileStats(h.db, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load stats"})
		return
	}

	var posts []models.Post
	h.db.Where("author_id = ?", userID).Preload("Author").Order("created_at desc, id asc").Find(&posts)
	if posts == nil {
		posts = []models.Post{}
	}

	c.JSON(http.StatusOK, gin.H{
		"user":    user,
		"profile": profile,
		"posts":   posts,
		"stats":   stats,
	})
}

// UpdateOwnProfile edits the viewer's profile, creating it first if a
// legacy user somehow lacks one.
func (h *UserHandler) UpdateOwnProfile(c *gin.Context) {
	userID, _ := currentUserID(c)

	var input models.UpdateProfileRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	profile, err := h.getOrCreateProfile(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load profile"})
		return
	}

	if input.DisplayName != "" {
		profile.DisplayName = input.DisplayName
	}
	if input.Bio != "" {
		profile.Bio = input.Bio
	}
	if input.Website != "" {
		profile.Website = input.Website
	}
	if input.Avatar != "" {
		profile.Avatar = input.Avatar
	}

	if err := h.db.Save(&profile).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update profile"})
		return
	}

	c.JSON(http.StatusOK, profile)
}

// GetUserProfile returns a user's public stats plus, for an authenticated
// viewer, whether they already follow this user and whether it is them.
func (h *UserHandler) GetUserProfile(c *gin.Context) {
	var target models.User
	if err := h.db.Where("username = ?", c.Param("username")).First(&target).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	isFollowing := false
	isSelf := false
	if viewerID, ok := currentUserID(c); ok {
		isSelf = viewerID == target.ID
		if !isSelf {
			var err error
			isFollowing, err = social.IsFollowing(h.db, viewerID, target.ID)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load follow state"})
				return
			}
		}
	}

	profile, err := h.getOrCreateProfile(target.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load profile"})
		return
	}

	stats, err := social.ProfileStats(h.db, target.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load stats"})
		return
	}

	var posts []models.Post
	h.db.Where("author_id = ?", target.ID).Preload("Author").Order("created_at desc, id asc").Find(&posts)
	if posts == nil {
		posts = []models.Post{}
	}

	c.JSON(http.StatusOK, gin.H{
		"user":         target,
		"profile":      profile,
		"posts":        posts,
		"stats":        stats,
		"is_following": isFollowing,
		"is_self":      isSelf,
	})
}

// ToggleFollow flips the actor's follow on the named user and returns the
// target's fresh follower/following counts.
func (h *UserHandler) ToggleFollow(c *gin.Context) {
	followerID, _ := currentUserID(c)

	var target models.User
	if err := h.db.Where("username = ?", c.Param("username")).First(&target).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	following, counts, err := social.ToggleFollow(h.db, followerID, target.ID)
	if err != nil {
		if errors.Is(err, social.ErrSelfFollow) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "cannot_follow_self"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to toggle follow"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"following":       following,
		"followers":       counts.Followers,
		"following_count": counts.Following,
	})
}

// GetFollowers returns the users following the named user.
func (h *UserHandler) GetFollowers(c *gin.Context) {
	var target models.User
	if err := h.db.Where("username = ?", c.Param("username")).First(&target).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	users, err := social.Followers(h.db, target.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch followers"})
		return
	}

	c.JSON(http.StatusOK, userList(users))
}

// GetFollowing returns the users the named user follows.
func (h *UserHandler) GetFollowing(c *gin.Context) {
	var target models.User
	if err := h.db.Where("username = ?", c.Param("username")).First(&target).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	users, err := social.Following(h.db, target.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch following"})
		return
	}

	c.JSON(http.StatusOK, userList(users))
}

func userList(users []models.User) []gin.H {
	out := make([]gin.H, 0, len(users))
	for _, user := range users {
		out = append(out, gin.H{
			"id":       user.ID,
			"username": user.Username,
		})
	}
	return out
}
