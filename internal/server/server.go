package server

import (
	"log"
	"net/http"
	"os"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/emberblog/backend/internal/database"
	"github.com/emberblog/backend/internal/handlers"
	"github.com/emberblog/backend/internal/middleware"
)

// NewServer creates and configures a new server. The returned Service is
// the database handle; the caller closes it after shutdown.
func NewServer() (*http.Server, database.Service) {
	dbService := database.New()
	router := NewRouter(dbService)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080" // local dev fallback
	}

	server := &http.Server{
		Addr:         "0.0.0.0:" + port,
		Handler:      router,
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	log.Printf("🚀 Server starting on port %s\n", port)

	return server, dbService
}

// NewRouter sets up all application routes
func NewRouter(svc database.Service) *gin.Engine {
	db := svc.GetDB()
	r := gin.Default()

	// CORS configuration
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:     []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * 3600,
	}))

	// A wrong method on a mutation route answers 403, not 404.
	r.HandleMethodNotAllowed = true
	r.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
	})

	// Every request carries the actor's identity when a valid token is
	// present; RequireAuth below only checks the annotation.
	r.Use(middleware.OptionalAuth())

	handler := handlers.NewHandler(db)

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		stats := svc.Health()
		code := http.StatusOK
		if stats["status"] != "up" {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, stats)
	})

	// Browser-shaped surface (public reads)
	r.GET("/", handler.Post.ListPosts)
	r.GET("/post/:id/", handler.Post.GetPost)
	r.GET("/random/", handler.Post.RandomPost)
	r.GET("/profile/", handler.User.GetOwnProfile)
	r.GET("/u/:username/", handler.User.GetUserProfile)
	r.GET("/u/:username/followers/", handler.User.GetFollowers)
	r.GET("/u/:username/following/", handler.User.GetFollowing)

	// Browser-shaped mutations (authentication required)
	authed := r.Group("")
	authed.Use(middleware.RequireAuth())
	{
		authed.POST("/post/:id/", handler.Comment.CreateComment)
		authed.POST("/post/:id/like/", handler.Post.ToggleLike)
		authed.POST("/u/:username/follow/", handler.User.ToggleFollow)
		authed.PUT("/profile/", handler.User.UpdateOwnProfile)
	}

	// API routes
	api := r.Group("/api")
	{
		// Auth routes (public)
		api.POST("/register", handler.Auth.Register)
		api.POST("/login", handler.Auth.Login)

		// Post routes (public reads)
		api.GET("/posts/", handler.Post.ListPosts)
		api.GET("/posts/:id/", handler.Post.GetPost)
		api.GET("/posts/:id/comments/", handler.Comment.ListComments)

		// Protected routes (authentication required)
		protected := api.Group("")
		protected.Use(middleware.RequireAuth())
		{
			protected.GET("/me", handler.Auth.GetMe)
			protected.DELETE("/me", handler.Auth.DeleteMe)

			protected.POST("/posts/", handler.Post.CreatePost)
			protected.PUT("/posts/:id/", handler.Post.UpdatePost)
			protected.DELETE("/posts/:id/", handler.Post.DeletePost)
			protected.POST("/posts/:id/comments/", handler.Comment.CreateComment)
		}
	}

	return r
}
