package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/linkloom/internal/httpserver/deps"
)

// Metrics serves the prometheus registry. Without collectors it answers 404.
func Metrics(d deps.Deps) http.HandlerFunc {
	return d.Metrics.Handler().ServeHTTP
}
