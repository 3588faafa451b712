package routes

import (
	"net/http"

	"tutor/tutor/controllers"

	"github.com/go-chi/chi/v5"
)

// HealthRoutes registers GET /ping and GET /health.
func HealthRoutes(r chi.Router, ctrl *controllers.HealthController) {
	r.Get("/ping", ctrl.Ping)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		report, status := ctrl.Health(r.Context())
		writeJSON(w, status, dataBody{Success: status == http.StatusOK, Data: report})
	})
}
