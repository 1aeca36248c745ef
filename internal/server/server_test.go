package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/emberblog/backend/internal/database"
	"github.com/emberblog/backend/internal/models"
)

func testRouter(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	t.Setenv("JWT_SECRET", "test-secret")

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, database.Migrate(db))
	return NewRouter(database.NewWithDB(db)), db
}

func doJSON(t *testing.T, router *gin.Engine, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

// register creates a user through the API and returns their token.
func register(t *testing.T, router *gin.Engine, username string) string {
	t.Helper()
	rec := doJSON(t, router, http.MethodPost, "/api/register", "", gin.H{
		"username": username,
		"email":    username + "@example.com",
		"password": "password123",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	body := decode(t, rec)
	token, _ := body["token"].(string)
	require.NotEmpty(t, token)
	return token
}

func createPost(t *testing.T, router *gin.Engine, token, title string) int {
	t.Helper()
	rec := doJSON(t, router, http.MethodPost, "/api/posts/", token, gin.H{
		"title":   title,
		"content": "content of " + title,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	body := decode(t, rec)
	return int(body["id"].(float64))
}

func TestHealthEndpoint(t *testing.T) {
	router, _ := testRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "up", body["status"])
	assert.Contains(t, body, "open_connections")
}

func TestRegisterCreatesProfile(t *testing.T) {
	router, db := testRouter(t)
	register(t, router, "alice")

	var user models.User
	require.NoError(t, db.Where("username = ?", "alice").First(&user).Error)

	var profile models.Profile
	require.NoError(t, db.Where("user_id = ?", user.ID).First(&profile).Error)
	assert.Equal(t, "alice", profile.DisplayName)
}

func TestLikeToggleEndpoint(t *testing.T) {
	router, _ := testRouter(t)
	token := register(t, router, "alice")
	postID := createPost(t, router, token, "first")

	rec := doJSON(t, router, http.MethodPost, fmt.Sprintf("/post/%d/like/", postID), token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, true, body["liked"])
	assert.EqualValues(t, 1, body["count"])

	rec = doJSON(t, router, http.MethodPost, fmt.Sprintf("/post/%d/like/", postID), token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body = decode(t, rec)
	assert.Equal(t, false, body["liked"])
	assert.EqualValues(t, 0, body["count"])
}

func TestLikeRequiresAuth(t *testing.T) {
	router, _ := testRouter(t)
	token := register(t, router, "alice")
	postID := createPost(t, router, token, "first")

	rec := doJSON(t, router, http.MethodPost, fmt.Sprintf("/post/%d/like/", postID), "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLikeMissingPostIs404(t *testing.T) {
	router, _ := testRouter(t)
	token := register(t, router, "alice")

	rec := doJSON(t, router, http.MethodPost, "/post/9999/like/", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestNonPostOnToggleRoutesForbidden(t *testing.T) {
	router, _ := testRouter(t)
	token := register(t, router, "alice")
	postID := createPost(t, router, token, "first")

	rec := doJSON(t, router, http.MethodGet, fmt.Sprintf("/post/%d/like/", postID), token, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/u/alice/follow/", token, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestSelfFollowRejected(t *testing.T) {
	router, db := testRouter(t)
	token := register(t, router, "alice")

	rec := doJSON(t, router, http.MethodPost, "/u/alice/follow/", token, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "cannot_follow_self", body["error"])

	var rows int64
	require.NoError(t, db.Model(&models.Follow{}).Count(&rows).Error)
	assert.EqualValues(t, 0, rows)
}

func TestFollowToggleEndpoint(t *testing.T) {
	router, _ := testRouter(t)
	register(t, router, "carol")
	bobToken := register(t, router, "bob")

	rec := doJSON(t, router, http.MethodPost, "/u/carol/follow/", bobToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, true, body["following"])
	assert.EqualValues(t, 1, body["followers"])

	rec = doJSON(t, router, http.MethodPost, "/u/carol/follow/", bobToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body = decode(t, rec)
	assert.Equal(t, false, body["following"])
	assert.EqualValues(t, 0, body["followers"])
}

func TestProfileViewFlags(t *testing.T) {
	router, _ := testRouter(t)
	register(t, router, "alice")
	bobToken := register(t, router, "bob")

	rec := doJSON(t, router, http.MethodGet, "/u/alice/", bobToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, false, body["is_following"])
	assert.Equal(t, false, body["is_self"])

	doJSON(t, router, http.MethodPost, "/u/alice/follow/", bobToken, nil)

	rec = doJSON(t, router, http.MethodGet, "/u/alice/", bobToken, nil)
	body = decode(t, rec)
	assert.Equal(t, true, body["is_following"])

	rec = doJSON(t, router, http.MethodGet, "/u/bob/", bobToken, nil)
	body = decode(t, rec)
	assert.Equal(t, true, body["is_self"])
	assert.Equal(t, false, body["is_following"])

	// anonymous viewers still get the public stats
	rec = doJSON(t, router, http.MethodGet, "/u/alice/", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body = decode(t, rec)
	stats := body["stats"].(map[string]interface{})
	assert.EqualValues(t, 1, stats["followers"])
}

func TestFollowersListEndpoint(t *testing.T) {
	router, _ := testRouter(t)
	register(t, router, "alice")
	bobToken := register(t, router, "bob")
	doJSON(t, router, http.MethodPost, "/u/alice/follow/", bobToken, nil)

	rec := doJSON(t, router, http.MethodGet, "/u/alice/followers/", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var list []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "bob", list[0]["username"])

	rec = doJSON(t, router, http.MethodGet, "/u/bob/following/", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "alice", list[0]["username"])
}

func TestOwnerOnlyPostMutation(t *testing.T) {
	router, _ := testRouter(t)
	aliceToken := register(t, router, "alice")
	bobToken := register(t, router, "bob")
	postID := createPost(t, router, aliceToken, "alice post")

	rec := doJSON(t, router, http.MethodPut, fmt.Sprintf("/api/posts/%d/", postID), bobToken, gin.H{"title": "hijacked"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doJSON(t, router, http.MethodDelete, fmt.Sprintf("/api/posts/%d/", postID), bobToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doJSON(t, router, http.MethodPut, fmt.Sprintf("/api/posts/%d/", postID), aliceToken, gin.H{"title": "renamed"})
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "renamed", body["title"])
}

func TestCommentOnPostEndpoint(t *testing.T) {
	router, _ := testRouter(t)
	aliceToken := register(t, router, "alice")
	bobToken := register(t, router, "bob")
	postID := createPost(t, router, aliceToken, "discussion")

	rec := doJSON(t, router, http.MethodPost, fmt.Sprintf("/post/%d/", postID), "", gin.H{"content": "anon"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, router, http.MethodPost, fmt.Sprintf("/post/%d/", postID), bobToken, gin.H{"content": "nice one"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = doJSON(t, router, http.MethodGet, fmt.Sprintf("/post/%d/", postID), "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	comments := body["comments"].([]interface{})
	require.Len(t, comments, 1)
	comment := comments[0].(map[string]interface{})
	assert.Equal(t, "nice one", comment["content"])
}

func TestFeedEndpoint(t *testing.T) {
	router, _ := testRouter(t)
	token := register(t, router, "alice")
	var lastID int
	for i := 1; i <= 12; i++ {
		lastID = createPost(t, router, token, fmt.Sprintf("Post %d", i))
	}
	doJSON(t, router, http.MethodPost, fmt.Sprintf("/post/%d/like/", lastID), token, nil)

	rec := doJSON(t, router, http.MethodGet, "/?page=1", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	posts := body["posts"].([]interface{})
	assert.Len(t, posts, 10)
	assert.EqualValues(t, 2, body["total_pages"])
	liked := body["liked_ids"].([]interface{})
	require.Len(t, liked, 1)
	assert.EqualValues(t, lastID, liked[0])

	rec = doJSON(t, router, http.MethodGet, "/?q=post+3", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body = decode(t, rec)
	assert.Len(t, body["posts"].([]interface{}), 1)
}

func TestGetPostLikeStateStorageFailure(t *testing.T) {
	router, db := testRouter(t)
	token := register(t, router, "alice")
	postID := createPost(t, router, token, "first")

	// a failing like lookup must surface as a 500, not render liked=false
	require.NoError(t, db.Migrator().DropTable(&models.Like{}))

	rec := doJSON(t, router, http.MethodGet, fmt.Sprintf("/post/%d/", postID), token, nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestProfileFollowStateStorageFailure(t *testing.T) {
	router, db := testRouter(t)
	register(t, router, "alice")
	bobToken := register(t, router, "bob")

	// a failing follow lookup must surface as a 500, not is_following=false
	require.NoError(t, db.Migrator().DropTable(&models.Follow{}))

	rec := doJSON(t, router, http.MethodGet, "/u/alice/", bobToken, nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestRandomRedirect(t *testing.T) {
	router, _ := testRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/random/", "", nil)
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))

	token := register(t, router, "alice")
	postID := createPost(t, router, token, "only one")

	rec = doJSON(t, router, http.MethodGet, "/random/", "", nil)
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, fmt.Sprintf("/post/%d/", postID), rec.Header().Get("Location"))
}

func TestProfileEditLazyCreate(t *testing.T) {
	router, db := testRouter(t)
	token := register(t, router, "alice")

	// simulate a legacy user without a profile row
	require.NoError(t, db.Where("1 = 1").Delete(&models.Profile{}).Error)

	rec := doJSON(t, router, http.MethodPut, "/profile/", token, gin.H{
		"display_name": "Alice",
		"bio":          "hello",
		"website":      "https://example.com",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, "Alice", body["display_name"])

	var count int64
	require.NoError(t, db.Model(&models.Profile{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestDeleteAccountEndpointCascades(t *testing.T) {
	router, db := testRouter(t)
	aliceToken := register(t, router, "alice")
	bobToken := register(t, router, "bob")
	postID := createPost(t, router, aliceToken, "alice post")

	doJSON(t, router, http.MethodPost, fmt.Sprintf("/post/%d/like/", postID), bobToken, nil)
	doJSON(t, router, http.MethodPost, "/u/alice/follow/", bobToken, nil)

	rec := doJSON(t, router, http.MethodDelete, "/api/me", aliceToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var users, posts, likes, follows int64
	require.NoError(t, db.Model(&models.User{}).Count(&users).Error)
	require.NoError(t, db.Model(&models.Post{}).Count(&posts).Error)
	require.NoError(t, db.Model(&models.Like{}).Count(&likes).Error)
	require.NoError(t, db.Model(&models.Follow{}).Count(&follows).Error)
	assert.EqualValues(t, 1, users)
	assert.EqualValues(t, 0, posts)
	assert.EqualValues(t, 0, likes)
	assert.EqualValues(t, 0, follows)

	rec = doJSON(t, router, http.MethodGet, "/u/alice/", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
