package rest

import (
	"net/http"

	"anima-backend/infrastructure/di"
	"anima-backend/interfaces/http/rest/handlers"
	"anima-backend/interfaces/http/rest/middleware"
	"anima-backend/pkg/auth"
	pkgerrors "anima-backend/pkg/errors"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

const voterRequestsPerMinute = 10

// Router creates and configures the HTTP router
type Router struct {
	container *di.Container
}

// NewRouter creates a new router instance
func NewRouter(container *di.Container) *Router {
	return &Router{container: container}
}

// Setup configures all routes and middleware
func (rt *Router) Setup() http.Handler {
	c := rt.container
	errorHandler := pkgerrors.NewErrorHandler(c.Logger, c.Config.IsDevelopment())

	router := chi.NewRouter()

	// Global middleware
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(middleware.Logger(c.Logger))
	if c.Config.EnableMetrics {
		router.Use(middleware.Metrics(c.Metrics))
	}

	if c.Config.EnableCORS {
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{"*"},
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}

	// Health and observability
	router.Get("/health", rt.healthCheck)
	router.Get("/ready", rt.readinessCheck)
	if c.Config.EnableMetrics {
		router.Method(http.MethodGet, "/metrics", c.Metrics.Handler())
	}

	stateHandler := handlers.NewStateHandler(c.Lifecycle, c.Votes, c.Memories, errorHandler, c.Logger)
	voteHandler := handlers.NewVoteHandler(
		c.Votes,
		auth.NewVoterRateLimiter(voterRequestsPerMinute),
		errorHandler,
		c.Logger,
	)
	internalHandler := handlers.NewInternalHandler(c.Lifecycle, c.Votes, errorHandler, c.Logger)

	// Public surface
	router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RateLimit(c.IPLimiter))
		r.Get("/state", stateHandler.GetState)
		r.Get("/vote-round", voteHandler.GetRound)
		r.Post("/vote", voteHandler.CastVote)
	})

	// Privileged surface
	router.Route("/internal", func(r chi.Router) {
		r.Use(middleware.InternalAuth(c.Config.InternalSecret, c.OperatorValidator, c.Logger))
		r.Post("/vote-rounds/close", internalHandler.CloseRound)
		r.Post("/lifecycle/transition", internalHandler.Transition)
	})

	return router
}

// healthCheck handles health check requests
func (rt *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy"}`))
}

// readinessCheck reports ready once the life record is reachable
func (rt *Router) readinessCheck(w http.ResponseWriter, req *http.Request) {
	if _, err := rt.container.Lifecycle.Current(req.Context()); err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"status":"not ready"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ready"}`))
}
