package handlers

import (
	"net/http"
	"time"

	"github.com/MrSnakeDoc/linkloom/internal/httpserver/deps"
	"github.com/MrSnakeDoc/linkloom/internal/version"
)

type healthzResponse struct {
	Status        string  `json:"status"`
	Service       string  `json:"service"`
	UptimeSeconds float64 `json:"uptime_seconds"`
	Database      string  `json:"database,omitempty"`
	RuntimeMirror bool    `json:"runtime_mirror"`
	version.Info
}

// Healthz is the liveness probe. It reports configuration only and never
// touches the database or Redis.
func Healthz(d deps.Deps) http.HandlerFunc {
	var driver string
	if d.Store != nil {
		driver = d.Store.Driver()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, healthzResponse{
			Status:        "ok",
			Service:       "linkloom",
			UptimeSeconds: d.Now().Sub(d.StartTime).Round(time.Millisecond).Seconds(),
			Database:      driver,
			RuntimeMirror: d.RedisClient != nil,
			Info:          d.Build,
		})
	}
}
