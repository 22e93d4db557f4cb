package handlers

import (
	"context"
	"net/http"

	"github.com/MrSnakeDoc/linkloom/internal/httpserver/deps"
)

type componentStatus struct {
	OK         bool   `json:"ok"`
	Driver     string `json:"driver,omitempty"`
	Mode       string `json:"mode,omitempty"`
	Impact     string `json:"impact,omitempty"`
	ActiveJobs *int   `json:"active_jobs,omitempty"`
	Running    *int   `json:"running_here,omitempty"`
	Error      string `json:"error,omitempty"`
}

type infraResponse struct {
	Status     string                     `json:"status"`
	Components map[string]componentStatus `json:"components"`
}

// Infra reports the state of each backing component.
func Infra(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), probeTimeout)
		defer cancel()

		components := map[string]componentStatus{
			"database": checkDatabase(ctx, d),
			"redis":    checkRedis(ctx, d),
			"jobs":     checkJobs(ctx, d),
		}

		writeJSON(w, http.StatusOK, infraResponse{
			Status:     overallStatus(components),
			Components: components,
		})
	}
}

// overallStatus is critical without a database and degraded when an
// optional component is down.
func overallStatus(components map[string]componentStatus) string {
	if db, ok := components["database"]; ok && !db.OK {
		return "critical"
	}
	for _, c := range components {
		if !c.OK && c.Mode != "disabled" {
			return "degraded"
		}
	}
	return "ok"
}

func checkDatabase(ctx context.Context, d deps.Deps) componentStatus {
	if err := d.Store.Ping(ctx); err != nil {
		return componentStatus{OK: false, Driver: d.Store.Driver(), Error: "unreachable"}
	}
	return componentStatus{OK: true, Driver: d.Store.Driver()}
}

func checkRedis(ctx context.Context, d deps.Deps) componentStatus {
	if d.RedisClient == nil {
		return componentStatus{
			OK:     true,
			Mode:   "disabled",
			Impact: "job-progress-local-only",
		}
	}
	if err := d.RedisClient.Ping(ctx).Err(); err != nil {
		return componentStatus{
			OK:     false,
			Mode:   "degraded",
			Impact: "job-progress-local-only",
			Error:  "timeout",
		}
	}
	return componentStatus{OK: true, Mode: "mirror", Impact: "job-progress-shared"}
}

func checkJobs(ctx context.Context, d deps.Deps) componentStatus {
	running := d.Jobs.Registry().Running()
	active, err := d.Store.Q().CountActiveJobs(ctx)
	if err != nil {
		return componentStatus{OK: false, Running: &running, Error: "count failed"}
	}
	return componentStatus{OK: true, ActiveJobs: &active, Running: &running}
}
