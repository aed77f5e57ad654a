package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mmeshcher/kiosk-system/internal/metrics"
	custommiddleware "github.com/mmeshcher/kiosk-system/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware сервиса киоска.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	r.Route("/api", func(r chi.Router) {
		r.Get("/menu", h.GetMenu)

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", h.CreateOrder)
			r.Get("/in-progress", h.GetInProgress)
			r.Get("/ready", h.GetReady)
			r.Get("/delivered", h.GetDelivered)
			r.Get("/{id}", h.GetOrder)
			r.Patch("/{id}", h.PatchOrder)
		})
	})

	r.Handle("/metrics", metrics.Handler())

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}
