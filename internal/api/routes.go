package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
)

func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.New(cors.Options{
		AllowedOrigins:   h.cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	}).Handler)

	r.Get("/healthz", h.Healthz)
	r.Get("/readyz", h.Readyz)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/properties", func(r chi.Router) {
		r.Use(Identify([]byte(h.cfg.JWTSecret)))

		r.Post("/submit", h.SubmitProperty)
		r.Post("/upload/{id}", h.UploadDocuments)
		r.Get("/", h.ListProperties)
		r.Get("/all", h.ListProperties)
		r.Get("/all-with-rejected", h.ListPropertiesWithRejected)
		r.Get("/status/{status}", h.ListPropertiesByStatus)
		r.Post("/repair-all", h.RepairAll)
		r.Post("/repair-all/async", h.StartRepairSweep)
		r.Get("/repair-all/{workflowId}", h.RepairSweepStatus)
		r.Put("/advance/{id}", h.AdvanceStatus)
		r.Post("/approve/{id}", h.ApproveProperty)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetProperty)
			r.Delete("/", h.DeleteProperty)
			r.Delete("/delete", h.DeleteProperty)
			r.Put("/trash", h.TrashProperty)
			r.Put("/undo-rejection", h.UndoRejection)
			r.Post("/repair", h.RepairProperty)
			r.Get("/download", h.DownloadDocuments)
		})
	})

	return r
}
