package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/linkloom/internal/httpserver/deps"
	"github.com/MrSnakeDoc/linkloom/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/linkloom/internal/httpserver/mw"
)

func init() { Register("sync", API, registerSync) }

func registerSync(r chi.Router, d deps.Deps) {
	r.Route("/api/sync", func(r chi.Router) {
		r.Post("/register-client", handlers.RegisterClient(d))
		r.Post("/push", handlers.Push(d))
		r.Get("/pull", handlers.Pull(d))
		r.Post("/ack", handlers.Ack(d))

		// First sync rewrites whole trees; callers are throttled per user.
		r.Route("/first", func(r chi.Router) {
			r.Use(mw.RateLimit(mw.RateLimitConfig{
				Burst:        d.SyncRateBurst,
				RefillPerMin: d.SyncRatePerMin,
				MaxEntries:   10_000,
				TrustProxy:   d.TrustProxy,
				Now:          d.TimeNow,
			}))
			r.Post("/preflight", handlers.Preflight(d))
			r.Post("/apply", handlers.Apply(d))
		})
	})
}
