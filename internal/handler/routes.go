package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/metinatakli/seatsync/internal/middleware"
	"github.com/riandyrn/otelchi"
)

const serverName = "seatwatch-status"

func Routes(logger *slog.Logger, health *HealthcheckHandler, status *StatusHandler) http.Handler {
	r := chi.NewRouter()

	r.NotFound(middleware.NotFoundHandler)
	r.MethodNotAllowed(middleware.MethodNotAllowedHandler)

	r.Use(chimiddleware.RequestID)
	r.Use(middleware.RecoverPanic(logger))
	r.Use(otelchi.Middleware(serverName, otelchi.WithChiRoutes(r)))

	r.Get("/healthcheck", health.GetHealth)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/status", status.GetStatus)
		r.Get("/seats", status.GetSeats)
		r.Get("/holds", status.GetHolds)
	})

	return r
}
