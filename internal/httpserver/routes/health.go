package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/linkloom/internal/httpserver/deps"
	"github.com/MrSnakeDoc/linkloom/internal/httpserver/handlers"
)

func init() {
	Register("liveness", Public, func(r chi.Router, d deps.Deps) {
		r.Get("/healthz", handlers.Healthz(d))
	})
	Register("operator", Operator, registerOperator)
}

func registerOperator(r chi.Router, d deps.Deps) {
	r.Get("/readyz", handlers.Readyz(d))
	r.Get("/infra", handlers.Infra(d))
	r.Get("/metrics", handlers.Metrics(d))
}
