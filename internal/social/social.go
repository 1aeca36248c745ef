// Package social maintains the like and follow relations: toggle semantics,
// aggregate counts, and the cascade that removes a user's graph with them.
package social

import (
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/emberblog/backend/internal/models"
)

// ErrSelfFollow is returned when a user attempts to follow themselves.
var ErrSelfFollow = errors.New("cannot follow self")

// toggleRelation flips the existence of a uniquely-keyed relation row and
// reports whether the row exists afterwards.
//
// The insert goes through ON CONFLICT DO NOTHING, so a duplicate create
// attempt can never violate the unique index: zero affected rows means the
// relation already existed and the toggle falls through to the delete arm.
// Two concurrent toggles from the same actor therefore resolve to one create
// and one delete instead of a constraint error.
func toggleRelation(db *gorm.DB, record interface{}, query string, args ...interface{}) (bool, error) {
	res := db.Clauses(clause.OnConflict{DoNothing: true}).Create(record)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected > 0 {
		return true, nil
	}
	if err := db.Where(query, args...).Delete(record).Error; err != nil {
		return false, err
	}
	return false, nil
}

// ToggleLike flips the like from userID on postID and returns the new state
// together with the post's current like count.
func ToggleLike(db *gorm.DB, postID, userID int) (bool, int64, error) {
	liked, err := toggleRelation(db,
		&models.Like{PostID: postID, UserID: userID},
		"post_id = ? AND user_id = ?", postID, userID)
	if err != nil {
		return false, 0, err
	}

	count, err := LikeCount(db, postID)
	if err != nil {
		return false, 0, err
	}
	return liked, count, nil
}

// FollowCounts are the follower/following totals of a single user.
type FollowCounts struct {
	Followers int64 `json:"followers"`
	Following int64 `json:"following"`
}

// ToggleFollow flips the edge from followerID to targetID. The returned
// counts are computed for the target, not the actor: the caller is
// re-rendering the target's profile stats.
func ToggleFollow(db *gorm.DB, followerID, targetID int) (bool, FollowCounts, error) {
	if followerID == targetID {
		return false, FollowCounts{}, ErrSelfFollow
	}

	following, err := toggleRelation(db,
		&models.Follow{FollowerID: followerID, TargetID: targetID},
		"follower_id = ? AND target_id = ?", followerID, targetID)
	if err != nil {
		return false, FollowCounts{}, err
	}

	counts, err := CountsFor(db, targetID)
	if err != nil {
		return false, FollowCounts{}, err
	}
	return following, counts, nil
}

// LikeCount returns the number of likes on a post.
func LikeCount(db *gorm.DB, postID int) (int64, error) {
	var count int64
	err := db.Model(&models.Like{}).Where("post_id = ?", postID).Count(&count).Error
	return count, err
}

// HasLiked reports whether userID has liked postID.
func HasLiked(db *gorm.DB, postID, userID int) (bool, error) {
	var count int64
	err := db.Model(&models.Like{}).
		Where("post_id = ? AND user_id = ?", postID, userID).
		Count(&count).Error
	return count > 0, err
}

// LikedPostIDs returns which of the given posts the viewer has liked, as a
// single batch query.
func LikedPostIDs(db *gorm.DB, userID int, postIDs []int) ([]int, error) {
	liked := []int{}
	if len(postIDs) == 0 {
		return liked, nil
	}
	err := db.Model(&models.Like{}).
		Where("user_id = ? AND post_id IN ?", userID, postIDs).
		Pluck("post_id", &liked).Error
	return liked, err
}

// CountsFor returns the follower/following totals of a user.
func CountsFor(db *gorm.DB, userID int) (FollowCounts, error) {
	var counts FollowCounts
	if err := db.Model(&models.Follow{}).Where("target_id = ?", userID).Count(&counts.Followers).Error; err != nil {
		return counts, err
	}
	err := db.Model(&models.Follow{}).Where("follower_id = ?", userID).Count(&counts.Following).Error
	return counts, err
}

// IsFollowing reports whether followerID currently follows targetID.
func IsFollowing(db *gorm.DB, followerID, targetID int) (bool, error) {
	var count int64
	err := db.Model(&models.Follow{}).
		Where("follower_id = ? AND target_id = ?", followerID, targetID).
		Count(&count).Error
	return count > 0, err
}

// Stats is a user's public statistics view.
type Stats struct {
	Posts     int64 `json:"posts"`
	Followers int64 `json:"followers"`
	Following int64 `json:"following"`
}

// ProfileStats computes the post/follower/following counts for a user.
func ProfileStats(db *gorm.DB, userID int) (Stats, error) {
	var stats Stats
	if err := db.Model(&models.Post{}).Where("author_id = ?", userID).Count(&stats.Posts).Error; err != nil {
		return stats, err
	}
	counts, err := CountsFor(db, userID)
	if err != nil {
		return stats, err
	}
	stats.Followers = counts.Followers
	stats.Following = counts.Following
	return stats, nil
}

// Followers returns the users following userID, newest first.
func Followers(db *gorm.DB, userID int) ([]models.User, error) {
	var follows []models.Follow
	err := db.Where("target_id = ?", userID).
		Preload("Follower").
		Order("created_at desc").
		Find(&follows).Error
	if err != nil {
		return nil, err
	}

	users := make([]models.User, 0, len(follows))
	for _, follow := range follows {
		users = append(users, follow.Follower)
	}
	return users, nil
}

// Following returns the users userID follows, newest first.
func Following(db *gorm.DB, userID int) ([]models.User, error) {
	var follows []models.Follow
	err := db.Where("follower_id = ?", userID).
		Preload("Target").
		Order("created_at desc").
		Find(&follows).Error
	if err != nil {
		return nil, err
	}

	users := make([]models.User, 0, len(follows))
	for _, follow := range follows {
		users = append(users, follow.Target)
	}
	return users, nil
}

// DeleteAccount removes a user and everything hanging off them: likes and
// comments on their posts, their own likes and comments, follows in both
// directions, their posts, their profile, and finally the user row itself.
// Runs in a single transaction so a failure leaves no dangling references.
func DeleteAccount(db *gorm.DB, userID int) error {
	return db.Transaction(func(tx *gorm.DB) error {
		var postIDs []int
		if err := tx.Model(&models.Post{}).Where("author_id = ?", userID).Pluck("id", &postIDs).Error; err != nil {
			return err
		}

		if len(postIDs) > 0 {
			if err := tx.Where("post_id IN ?", postIDs).Delete(&models.Like{}).Error; err != nil {
				return err
			}
			if err := tx.Where("post_id IN ?", postIDs).Delete(&models.Comment{}).Error; err != nil {
				return err
			}
		}

		if err := tx.Where("user_id = ?", userID).Delete(&models.Like{}).Error; err != nil {
			return err
		}
		if err := tx.Where("author_id = ?", userID).Delete(&models.Comment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("follower_id = ? OR target_id = ?", userID, userID).Delete(&models.Follow{}).Error; err != nil {
			return err
		}
		if err := tx.Where("author_id = ?", userID).Delete(&models.Post{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", userID).Delete(&models.Profile{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.User{}, userID).Error
	})
}

// DeletePost removes a post together with its comments and likes, atomically.
func DeletePost(db *gorm.DB, postID int) error {
	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("post_id = ?", postID).Delete(&models.Like{}).Error; err != nil {
			return err
		}
		if err := tx.Where("post_id = ?", postID).Delete(&models.Comment{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Post{}, postID).Error
	})
}
