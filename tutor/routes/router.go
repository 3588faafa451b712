package routes

import (
	"net/http"
	"time"

	"tutor/tutor/config"
	"tutor/tutor/controllers"
	"tutor/tutor/middlewares"
	"tutor/tutor/utils/metrics"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type RouterDeps struct {
	Config  config.Config
	Chat    *controllers.ChatController
	Health  *controllers.HealthController
	Metrics *metrics.Metrics
}

// NewRouter builds the full HTTP surface: /metrics plus the JSON API under
// /api/v1.
func NewRouter(d RouterDeps) http.Handler {
	r := chi.NewRouter()
	// set before mounting so sub-routers inherit them
	r.NotFound(NotFound)
	r.MethodNotAllowed(MethodNotAllowed)

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middlewares.RequestLogger)
	if d.Metrics != nil {
		r.Use(d.Metrics.Middleware)
	}
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	if d.Config.CORSOrigin != "" {
		r.Use(middlewares.CORS(d.Config.CORSOrigin))
	}

	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics.Handler())
	}

	limiter := middlewares.NewRateLimiter(d.Config.RateLimitRPS, d.Config.RateLimitBurst)
	r.Route("/api/v1", func(api chi.Router) {
		HealthRoutes(api, d.Health)
		api.Mount("/chat", ChatRoutes(d.Chat, d.Config, limiter))
		TutorRoutes(api, d.Chat, d.Config)
	})
	return r
}
