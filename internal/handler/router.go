package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/doaqui/doaqui/internal/metrics"
)

// Router assembles the API routes.
type Router struct {
	productHandler *ProductHandler
	userHandler    *UserHandler
	imageHandler   *ImageHandler
	authMiddleware func(http.Handler) http.Handler
	metrics        *metrics.Metrics
	logger         zerolog.Logger
}

// RouterConfig contains configuration for the router.
type RouterConfig struct {
	ProductHandler *ProductHandler
	UserHandler    *UserHandler
	ImageHandler   *ImageHandler
	AuthMiddleware func(http.Handler) http.Handler
	Metrics        *metrics.Metrics
	Logger         zerolog.Logger
}

// NewRouter creates a new Router.
func NewRouter(config RouterConfig) *Router {
	return &Router{
		productHandler: config.ProductHandler,
		userHandler:    config.UserHandler,
		imageHandler:   config.ImageHandler,
		authMiddleware: config.AuthMiddleware,
		metrics:        config.Metrics,
		logger:         config.Logger.With().Str("component", "router").Logger(),
	}
}

// Handler returns the main HTTP handler. Browsing the catalog and reading
// images is public; everything that acts on behalf of a user requires a
// bearer token.
func (rt *Router) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(rt.metrics.HTTPMiddleware)

	// Public routes
	r.Get("/health", rt.handleHealth)
	r.Post("/users/register", rt.userHandler.Register)
	r.Post("/users/login", rt.userHandler.Login)
	r.Get("/products", rt.productHandler.Index)
	r.Get("/products/{id}", rt.productHandler.Show)
	r.Get("/images/{id}", rt.imageHandler.Serve)

	// Authenticated routes
	r.Group(func(r chi.Router) {
		r.Use(rt.authMiddleware)

		r.Post("/products", rt.productHandler.Create)
		r.Get("/products/mine", rt.productHandler.Mine)
		r.Get("/products/receiving", rt.productHandler.Receiving)
		r.Patch("/products/{id}", rt.productHandler.Update)
		r.Delete("/products/{id}", rt.productHandler.Delete)
		r.Post("/products/{id}/schedule", rt.productHandler.Schedule)
		r.Post("/products/{id}/conclude", rt.productHandler.Conclude)
		r.Post("/products/{id}/transfer", rt.productHandler.Transfer)
		r.Post("/images", rt.imageHandler.Upload)
	})

	return r
}

// handleHealth handles health check requests.
func (rt *Router) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy"}`))
}
