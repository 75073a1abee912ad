package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/liamwears/marquee/internal/middleware"
)

// RouterConfig holds everything the router wires together
type RouterConfig struct {
	Browse      *BrowseHandler
	Pages       *PageHandler
	Movies      *MovieHandler
	Health      *HealthHandler
	Sessions    *middleware.SessionMiddleware
	RateLimiter *middleware.RateLimiter
	// Metrics serves /metrics when set.
	Metrics http.Handler
	// TrustProxy takes the client IP from forwarding headers. Without it
	// the rate limiter keys on the connection's remote address.
	TrustProxy bool
	Logger     *zap.SugaredLogger
}

// NewRouter builds the HTTP handler
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	if cfg.TrustProxy {
		r.Use(chimw.RealIP)
	}
	r.Use(
		middleware.Logger(cfg.Logger),
		chimw.Recoverer,
	)

	r.Get("/health", cfg.Health.Health)
	r.Get("/movie/{id}", cfg.Pages.MovieDetail)
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics)
	}

	// Detail lookups are stateless and limited per client IP
	r.With(cfg.RateLimiter.Limit).Get("/api/movies/{id}", cfg.Movies.Get)

	// Routes below need a browsing session
	r.Group(func(r chi.Router) {
		r.Use(cfg.Sessions.Attach)

		r.Get("/", cfg.Browse.Index)

		r.Group(func(r chi.Router) {
			r.Use(cfg.RateLimiter.Limit)

			r.Get("/api/browse", cfg.Browse.Snapshot)
			r.Route("/browse", func(r chi.Router) {
				r.Get("/results", cfg.Browse.Results)
				r.Post("/query", cfg.Browse.Query)
				r.Post("/more", cfg.Browse.More)
				r.Post("/clear", cfg.Browse.Clear)
			})
		})
	})

	return r
}
