package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/PeymanNr/b2b-charge-service/internal/http/charge"
	"github.com/PeymanNr/b2b-charge-service/internal/http/credit"
	"github.com/PeymanNr/b2b-charge-service/internal/http/vendors"
)

func New(
	vendorsV1 *vendors.Handler,
	creditsV1 *credit.Handler,
	chargesV1 *charge.Handler,
) http.Handler {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE"},
		AllowedHeaders: []string{"Accept", "Content-Type", "Idempotency-Key"},
	}))

	router.Route("/api/v1", func(r chi.Router) {
		r.Route("/vendors", func(r chi.Router) {
			vendorsV1.Routes(r)
		})

		r.Route("/credit-requests", func(r chi.Router) {
			r.Use(middleware.AllowContentType("application/json"))
			creditsV1.Routes(r)
		})

		r.Route("/charges", func(r chi.Router) {
			r.Use(middleware.AllowContentType("application/json"))
			chargesV1.Routes(r)
		})
	})

	return router
}
