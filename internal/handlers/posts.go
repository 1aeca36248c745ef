package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/emberblog/backend/internal/feed"
	"github.com/emberblog/backend/internal/models"
	"github.com/emberblog/backend/internal/social"
)

type PostHandler struct {
	db *gorm.DB
}

func NewPostHandler(db *gorm.DB) *PostHandler {
	return &PostHandler{db: db}
}

// ListPosts returns one page of the feed, optionally filtered by ?q= and
// annotated with the ids the viewer has liked on this page.
func (h *PostHandler) ListPosts(c *gin.Context) {
	q := c.Query("q")
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	viewerID, _ := currentUserID(c)

	result, likedIDs, err := feed.Compose(h.db, q, page, viewerID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch posts"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"posts":       result.Posts,
		"liked_ids":   likedIDs,
		"q":           q,
		"page":        result.Number,
		"total_pages": result.TotalPages,
		"total_posts": result.TotalPosts,
		"has_next":    result.HasNext,
		"has_prev":    result.HasPrev,
	})
}

// GetPost returns a single post with its comments and the viewer's like state.
func (h *PostHandler) GetPost(c *gin.Context) {
	var post models.Post
	if err := h.db.Preload("Author").First(&post, c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Post not found"})
		return
	}

	var comments []models.Comment
	if err := h.db.Where("post_id = ?", post.ID).Preload("Author").Order("created_at asc").Find(&comments).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch comments"})
		return
	}

	liked := false
	if viewerID, ok := currentUserID(c); ok {
		var err error
		liked, err = social.HasLiked(h.db, post.ID, viewerID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch likes"})
			return
		}
	}

	count, err := social.LikeCount(h.db, post.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch likes"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"post":       post,
		"comments":   comments,
		"like_count": count,
		"liked":      liked,
	})
}

// ToggleLike flips the actor's like on a post and returns the fresh count.
func (h *PostHandler) ToggleLike(c *gin.Context) {
	userID, _ := currentUserID(c)

	var post models.Post
	if err := h.db.First(&post, c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Post not found"})
		return
	}

	liked, count, err := social.ToggleLike(h.db, post.ID, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to toggle like"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"liked": liked, "count": count})
}

// RandomPost redirects to a uniformly random post, or to the feed when
// there are no posts at all.
func (h *PostHandler) RandomPost(c *gin.Context) {
	post, err := feed.Random(h.db)
	if err != nil {
		c.Redirect(http.StatusFound, "/")
		return
	}
	c.Redirect(http.StatusFound, fmt.Sprintf("/post/%d/", post.ID))
}

// CreatePost creates a new post authored by the actor.
func (h *PostHandler) CreatePost(c *gin.Context) {
	var input models.CreatePostRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	authorID, _ := currentUserID(c)

	post := models.Post{
		Title:    input.Title,
		Content:  input.Content,
		Image:    input.Image,
		AuthorID: authorID,
	}

	if err := h.db.Create(&post).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create post"})
		return
	}

	h.db.Preload("Author").First(&post, post.ID)
	c.JSON(http.StatusCreated, post)
}

// UpdatePost updates an existing post, owner only.
func (h *PostHandler) UpdatePost(c *gin.Context) {
	userID, _ := currentUserID(c)

	var input struct {
		Title   string `json:"title"`
		Content string `json:"content"`
		Image   string `json:"image"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var post models.Post
	if err := h.db.First(&post, c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Post not found"})
		return
	}

	if post.AuthorID != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "You can only edit your own posts"})
		return
	}

	if input.Title != "" {
		post.Title = input.Title
	}
	if input.Content != "" {
		post.Content = input.Content
	}
	if input.Image != "" {
		post.Image = input.Image
	}

	if err := h.db.Save(&post).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update post"})
		return
	}

	h.db.Preload("Author").First(&post, post.ID)
	c.JSON(http.StatusOK, post)
}

// DeletePost deletes a post and its comments and likes, owner only.
func (h *PostHandler) DeletePost(c *gin.Context) {
	userID, _ := currentUserID(c)

	var post models.Post
	if err := h.db.First(&post, c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Post not found"})
		return
	}

	if post.AuthorID != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "You can only delete your own posts"})
		return
	}

	if err := social.DeletePost(h.db, post.ID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete post"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Post deleted successfully"})
}
