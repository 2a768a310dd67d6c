package api

import (
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/chamberlink/chamberlink/internal/api/middleware"
	"github.com/chamberlink/chamberlink/internal/auth"
	"github.com/chamberlink/chamberlink/internal/handlers"
	"github.com/chamberlink/chamberlink/internal/store"
)

// RouterConfig carries the router's collaborators and knobs.
type RouterConfig struct {
	Logger             zerolog.Logger
	Handler            *handlers.Handler
	Auth               *auth.Service
	Redis              *store.RedisStore // nil disables rate limiting
	RateLimitWhitelist []string
	AllowedOrigins     []string
}

// NewRouter creates and configures the HTTP router.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Metrics middleware (first to capture all requests)
	r.Use(middleware.Metrics)

	// Security middleware (order matters!)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.MaxBodySize(16 * 1024))

	// Standard middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(chimw.Recoverer)

	if cfg.Redis != nil {
		limiter := middleware.NewRateLimiter(cfg.Redis, cfg.Logger, cfg.RateLimitWhitelist)
		r.Use(limiter.Middleware)
	}

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	h := cfg.Handler

	// Metrics endpoint (for Prometheus scraping)
	r.Handle("/metrics", promhttp.Handler())

	// Public routes (no auth required)
	r.Get("/health", h.Health)

	// Authenticated routes
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(cfg.Auth))

		r.Post("/threads", h.ResolveThread)
		r.Get("/threads", h.ListThreads)

		r.Post("/threads/{id}/messages", h.AppendMessage)
		r.Get("/threads/{id}/messages", h.ListMessages)

		r.Post("/threads/{id}/read", h.MarkRead)
		r.Get("/threads/{id}/unread", h.UnreadCount)

		r.Get("/threads/{id}/ws", h.ThreadEvents)
		r.Get("/threads/{id}/stats", h.ThreadStats)

		r.Get("/conversations", h.ListConversations)

		r.Post("/credentials", h.IssueCredential)
	})

	return r
}
