package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/MrSnakeDoc/linkloom/internal/httpserver/deps"
	"github.com/MrSnakeDoc/linkloom/internal/httpserver/mw"
	"github.com/MrSnakeDoc/linkloom/internal/jobs"
	"github.com/MrSnakeDoc/linkloom/internal/logger"
	"github.com/MrSnakeDoc/linkloom/internal/store/sqlstore"
	"github.com/MrSnakeDoc/linkloom/internal/syncer"
)

const maxJSONBody = 32 << 20

type errorResponse struct {
	Detail string `json:"detail"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorResponse{Detail: detail})
}

// writeFailure maps service errors to status codes. Unknown errors are
// logged and hidden behind a generic 500.
func writeFailure(d deps.Deps, w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, syncer.ErrValidation):
		writeError(w, http.StatusBadRequest, strings.TrimPrefix(err.Error(), syncer.ErrValidation.Error()+": "))
	case errors.Is(err, syncer.ErrConfirmationFailed):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, jobs.ErrNotFound), errors.Is(err, sqlstore.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, jobs.ErrJobActive):
		writeError(w, http.StatusConflict, err.Error())
	default:
		d.Logger.Error("request failed",
			logger.String("path", r.URL.Path),
			logger.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// decodeJSON reads a JSON object body into dst. An empty body leaves dst
// untouched.
func decodeJSON(r *http.Request, dst any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxJSONBody))
	if err != nil {
		return err
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil
	}
	return json.Unmarshal(body, dst)
}

func currentUser(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, ok := mw.UserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing bearer token")
	}
	return id, ok
}

// NotFound and MethodNotAllowed keep chi's fallbacks in the {"detail"} shape.
func NotFound(w http.ResponseWriter, _ *http.Request) {
	writeError(w, http.StatusNotFound, "not found")
}

func MethodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}
