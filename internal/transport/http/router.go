package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"socialnet/internal/handler"
	"socialnet/internal/httputil"
	authmw "socialnet/internal/transport/http/middleware"
)

// RouterConfig holds the dependencies needed to create routes
type RouterConfig struct {
	AuthHandler    *handler.AuthHandler
	UserHandler    *handler.UserHandler
	FollowHandler  *handler.FollowHandler
	FeedHandler    *handler.FeedHandler
	PostHandler    *handler.PostHandler
	CommentHandler *handler.CommentHandler
	LiveHandler    *handler.LiveHandler
	RateLimiter    *authmw.RateLimiter
	JWTSecret      string
	CORSOrigins    []string
	Log            zerolog.Logger
}

// NewRouter creates and configures a new Chi router with all route groups
func NewRouter(cfg RouterConfig) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(authmw.RequestLogger(cfg.Log))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check endpoint (useful for deployment/monitoring)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Live channel authenticates from the query string itself
	r.Get("/live", cfg.LiveHandler.Serve)

	// Public routes - no authentication required
	r.Route("/auth", func(r chi.Router) {
		r.Use(cfg.RateLimiter.Middleware)
		r.Post("/register", cfg.AuthHandler.Register)
		r.Post("/sign-in", cfg.AuthHandler.SignIn)
		r.Post("/sign-out", cfg.AuthHandler.SignOut)
	})

	// Protected routes - require authentication
	r.Group(func(r chi.Router) {
		r.Use(authmw.AuthMiddleware(cfg.JWTSecret))

		// Current user endpoints
		r.Get("/me", cfg.AuthHandler.Me)

		r.Route("/users", func(r chi.Router) {
			r.Get("/", cfg.UserHandler.List)
			r.Get("/{id}", cfg.UserHandler.GetProfile)
			r.Get("/{id}/who-to-follow", cfg.UserHandler.WhoToFollow)
			r.Get("/{id}/followers", cfg.FollowHandler.GetFollowers)
			r.Get("/{id}/following", cfg.FollowHandler.GetFollowing)
			r.Get("/{id}/posts", cfg.PostHandler.GetUserPosts)
		})

		r.Get("/feed", cfg.FeedHandler.GetFeed)
		r.Get("/posts/{id}", cfg.PostHandler.GetByID)

		// Writes are rate limited per user
		r.Group(func(r chi.Router) {
			r.Use(cfg.RateLimiter.Middleware)

			r.Patch("/me", cfg.UserHandler.UpdateMe)
			r.Delete("/users/me", cfg.UserHandler.DeleteMe)

			r.Post("/users/{id}/follow", cfg.FollowHandler.Follow)
			r.Delete("/users/{id}/follow", cfg.FollowHandler.Unfollow)

			r.Post("/posts", cfg.PostHandler.Create)
			r.Put("/posts/{id}", cfg.PostHandler.Update)
			r.Delete("/posts/{id}", cfg.PostHandler.Delete)
			r.Put("/posts/{id}/like", cfg.PostHandler.ToggleLike)
			r.Post("/posts/{id}/comments", cfg.CommentHandler.CreateComment)

			r.Put("/comments/{id}", cfg.CommentHandler.Edit)
			r.Delete("/comments/{id}", cfg.CommentHandler.DeleteComment)
			r.Put("/comments/{id}/like", cfg.CommentHandler.ToggleLike)
			r.Post("/comments/{id}/replies", cfg.CommentHandler.CreateReply)

			r.Delete("/replies/{id}", cfg.CommentHandler.DeleteReply)
		})
	})

	return r
}
