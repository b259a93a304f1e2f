// Route registration and go-chi router setup.
package api

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/clarion-chat/clarion/internal/api/handlers"
	apimiddleware "github.com/clarion-chat/clarion/internal/api/middleware"
	"github.com/clarion-chat/clarion/internal/domain/pipeline"
	"github.com/clarion-chat/clarion/internal/infra/config"
	"github.com/clarion-chat/clarion/internal/infra/knowledge"
	"github.com/clarion-chat/clarion/internal/infra/llm"
)

// Deps carries everything the router wires into handlers.
type Deps struct {
	Chat               handlers.ChatService
	Providers          *llm.Registry
	Retrievers         *knowledge.Registry
	DefaultCollections []pipeline.Selection
	RateLimit          config.RateLimitConfig
	Log                *zap.Logger
}

// NewRouter creates the chi router with all routes and middleware.
func NewRouter(deps Deps) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(apimiddleware.RequestLogger(deps.Log))
	r.Use(chimiddleware.Recoverer)

	// Unauthenticated operational endpoints.
	healthHandler := handlers.NewHealthHandler(deps.Providers, deps.Retrievers)
	r.Get("/health", healthHandler.Health)
	r.Handle("/metrics", promhttp.Handler())

	chatHandler := handlers.NewChatHandler(deps.Chat, deps.DefaultCollections)
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(apimiddleware.RateLimit(deps.RateLimit.RPS, deps.RateLimit.Burst))
		r.Post("/chat", chatHandler.Chat) // POST /api/v1/chat
	})

	return r
}
