package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/MrSnakeDoc/linkloom/internal/httpserver/deps"
	"github.com/MrSnakeDoc/linkloom/internal/syncer"
)

type registerClientRequest struct {
	ClientID string `json:"client_id"`
	Platform string `json:"platform"`
}

// RegisterClient creates or refreshes the calling browser's client record.
func RegisterClient(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := currentUser(w, r)
		if !ok {
			return
		}
		var req registerClientRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		info, err := d.Sync.RegisterClient(r.Context(), userID, req.ClientID, req.Platform)
		if err != nil {
			writeFailure(d, w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, info)
	}
}

type pushRequest struct {
	ClientID   string            `json:"client_id"`
	Operations []json.RawMessage `json:"operations"`
}

// Push applies a batch of client operations. An operation that does not
// decode is kept in place as an unsupported entry so results stay aligned
// with the request.
func Push(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := currentUser(w, r)
		if !ok {
			return
		}
		var req pushRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}

		ops := make([]syncer.Operation, len(req.Operations))
		for i, raw := range req.Operations {
			if err := json.Unmarshal(raw, &ops[i]); err != nil {
				ops[i] = syncer.Operation{}
			}
		}

		res, err := d.Sync.Push(r.Context(), userID, req.ClientID, ops)
		if err != nil {
			writeFailure(d, w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

// Pull returns the events after ?since=, at most ?limit= of them.
func Pull(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := currentUser(w, r)
		if !ok {
			return
		}
		q := r.URL.Query()
		since, err := intParam(q.Get("since"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "since must be an integer")
			return
		}
		limit, err := intParam(q.Get("limit"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "limit must be an integer")
			return
		}

		res, err := d.Sync.Pull(r.Context(), userID, since, int(limit), q.Get("client_id"))
		if err != nil {
			writeFailure(d, w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func intParam(raw string) (int64, error) {
	if raw == "" {
		return 0, nil
	}
	return strconv.ParseInt(raw, 10, 64)
}

type ackRequest struct {
	ClientID string `json:"client_id"`
	Cursor   *int64 `json:"cursor"`
}

type ackResponse struct {
	Status string `json:"status"`
	Cursor int64  `json:"cursor"`
}

// Ack stores the client's cursor exactly as sent.
func Ack(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := currentUser(w, r)
		if !ok {
			return
		}
		var req ackRequest
		if err := decodeJSON(r, &req); err != nil || req.Cursor == nil {
			writeError(w, http.StatusBadRequest, "client_id and cursor are required")
			return
		}
		stored, err := d.Sync.Ack(r.Context(), userID, req.ClientID, *req.Cursor)
		if err != nil {
			writeFailure(d, w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, ackResponse{Status: "ok", Cursor: stored})
	}
}

// Preflight previews a first-sync mode and issues its confirmation token.
func Preflight(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := currentUser(w, r)
		if !ok {
			return
		}
		var req syncer.PreflightRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		res, err := d.Sync.Preflight(r.Context(), userID, req)
		if err != nil {
			writeFailure(d, w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

// Apply runs a confirmed first-sync mode.
func Apply(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := currentUser(w, r)
		if !ok {
			return
		}
		var req syncer.ApplyRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		res, err := d.Sync.Apply(r.Context(), userID, req)
		if err != nil {
			writeFailure(d, w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}
