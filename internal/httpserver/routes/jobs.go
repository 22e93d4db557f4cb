package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/linkloom/internal/httpserver/deps"
	"github.com/MrSnakeDoc/linkloom/internal/httpserver/handlers"
)

func init() { Register("jobs", API, registerJobs) }

func registerJobs(r chi.Router, d deps.Deps) {
	r.Route("/api/jobs", func(r chi.Router) {
		r.Post("/import", handlers.ImportJob(d))
		r.Post("/dead-links", handlers.DeadLinkJob(d))
		r.Get("/{id}", handlers.GetJob(d))
		r.Post("/{id}/stop", handlers.StopJob(d))
		r.Delete("/{id}", handlers.DeleteJob(d))
	})
}
