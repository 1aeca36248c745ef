// Package feed produces the paginated, search-filtered, viewer-annotated
// post listing.
package feed

import (
	"strings"

	"gorm.io/gorm"

	"github.com/emberblog/backend/internal/models"
	"github.com/emberblog/backend/internal/social"
)

// PageSize is the fixed number of posts per feed page.
const PageSize = 10

// Page is one slice of the feed plus its pagination metadata.
type Page struct {
	Posts      []models.Post `json:"posts"`
	Number     int           `json:"page"`
	TotalPages int           `json:"total_pages"`
	TotalPosts int64         `json:"total_posts"`
	HasNext    bool          `json:"has_next"`
	HasPrev    bool          `json:"has_prev"`
}

// escapeLike neutralizes LIKE metacharacters so the query matches them as
// literal characters.
var escapeLike = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func query(db *gorm.DB, q string) *gorm.DB {
	tx := db.Model(&models.Post{})
	if q != "" {
		pattern := "%" + escapeLike.Replace(strings.ToLower(q)) + "%"
		tx = tx.Joins("JOIN users ON users.id = posts.author_id").
			Where(`LOWER(posts.title) LIKE ? ESCAPE '\' OR LOWER(posts.content) LIKE ? ESCAPE '\' OR LOWER(users.username) LIKE ? ESCAPE '\'`,
				pattern, pattern, pattern)
	}
	return tx
}

// Compose returns one page of the feed, newest posts first. A non-empty q
// keeps posts whose title, content, or author username contains it,
// case-insensitively. Out-of-range page numbers clamp to the nearest valid
// page. For an authenticated viewer the returned ids are the posts on this
// page the viewer has liked, fetched in a single batch; viewerID 0 means
// anonymous and yields an empty set.
func Compose(db *gorm.DB, q string, page, viewerID int) (Page, []int, error) {
	var total int64
	if err := query(db, q).Count(&total).Error; err != nil {
		return Page{}, nil, err
	}

	totalPages := int((total + PageSize - 1) / PageSize)
	if totalPages < 1 {
		totalPages = 1
	}
	if page < 1 {
		page = 1
	}
	if page > totalPages {
		page = totalPages
	}

	var posts []models.Post
	err := query(db, q).
		Select("posts.*").
		Preload("Author").
		Order("posts.created_at desc, posts.id asc").
		Limit(PageSize).
		Offset((page - 1) * PageSize).
		Find(&posts).Error
	if err != nil {
		return Page{}, nil, err
	}
	if posts == nil {
		posts = []models.Post{}
	}

	result := Page{
		Posts:      posts,
		Number:     page,
		TotalPages: totalPages,
		TotalPosts: total,
		HasNext:    page < totalPages,
		HasPrev:    page > 1,
	}

	likedIDs := []int{}
	if viewerID != 0 {
		ids := make([]int, 0, len(posts))
		for _, post := range posts {
			ids = append(ids, post.ID)
		}
		likedIDs, err = social.LikedPostIDs(db, viewerID, ids)
		if err != nil {
			return Page{}, nil, err
		}
	}

	return result, likedIDs, nil
}

// Random picks one post uniformly at random. Returns
// gorm.ErrRecordNotFound when there are no posts; the caller falls back to
// the unfiltered feed.
func Random(db *gorm.DB) (models.Post, error) {
	var post models.Post
	err := db.Order("random()").Take(&post).Error
	return post, err
}
