package handlers

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/linkloom/internal/httpserver/deps"
	"github.com/MrSnakeDoc/linkloom/internal/logger"
	"github.com/MrSnakeDoc/linkloom/internal/sources"
)

const defaultMaxUpload = 20 << 20

var errUploadTooLarge = errors.New("upload too large")

// ImportJob starts an import from a multipart "file" field or a raw body.
func ImportJob(d deps.Deps) http.HandlerFunc {
	limit := d.MaxUploadBytes
	if limit <= 0 {
		limit = defaultMaxUpload
	}
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := currentUser(w, r)
		if !ok {
			return
		}

		name, data, err := readUpload(w, r, limit)
		switch {
		case errors.Is(err, errUploadTooLarge):
			writeError(w, http.StatusRequestEntityTooLarge, err.Error())
			return
		case err != nil:
			writeError(w, http.StatusBadRequest, "missing upload")
			return
		}

		entries, format, err := sources.Parse(name, data)
		if err != nil {
			writeError(w, http.StatusBadRequest, "unreadable "+format.String()+" upload")
			return
		}

		job, err := d.Jobs.StartImport(r.Context(), userID, entries)
		if err != nil {
			writeFailure(d, w, r, err)
			return
		}
		d.Logger.Info("import job queued",
			logger.JobID(job.ID),
			logger.UserID(userID),
			logger.String("format", format.String()),
			logger.Int("entries", len(entries)))
		writeJSON(w, http.StatusAccepted, job)
	}
}

func readUpload(w http.ResponseWriter, r *http.Request, limit int64) (string, []byte, error) {
	body := http.MaxBytesReader(w, r.Body, limit)
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	var (
		name string
		src  io.Reader = body
	)
	if strings.HasPrefix(mediaType, "multipart/") {
		r.Body = body
		file, header, err := r.FormFile("file")
		if err != nil {
			return "", nil, uploadErr(err)
		}
		defer file.Close()
		name, src = header.Filename, file
	}

	data, err := io.ReadAll(src)
	if err != nil {
		return "", nil, uploadErr(err)
	}
	if len(data) == 0 {
		return "", nil, errors.New("empty upload")
	}
	return name, data, nil
}

func uploadErr(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return errUploadTooLarge
	}
	return err
}

type deadLinksRequest struct {
	BookmarkIDs []int64 `json:"bookmark_ids"`
}

// DeadLinkJob starts a link check over the listed bookmarks, or all of
// them when none are listed.
func DeadLinkJob(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := currentUser(w, r)
		if !ok {
			return
		}
		var req deadLinksRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "bookmark_ids must be a list of integers")
			return
		}
		job, err := d.Jobs.StartDeadLinkCheck(r.Context(), userID, req.BookmarkIDs)
		if err != nil {
			writeFailure(d, w, r, err)
			return
		}
		writeJSON(w, http.StatusAccepted, job)
	}
}

func jobID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusNotFound, "not found")
		return 0, false
	}
	return id, true
}

// GetJob returns the job with its live progress.
func GetJob(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := currentUser(w, r)
		if !ok {
			return
		}
		id, ok := jobID(w, r)
		if !ok {
			return
		}
		details, err := d.Jobs.Details(r.Context(), userID, id)
		if err != nil {
			writeFailure(d, w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, details)
	}
}

type stopResponse struct {
	Stopped bool `json:"stopped"`
}

// StopJob asks a running job to stop. Stopping a finished job reports
// stopped=false.
func StopJob(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := currentUser(w, r)
		if !ok {
			return
		}
		id, ok := jobID(w, r)
		if !ok {
			return
		}
		stopped, err := d.Jobs.Stop(r.Context(), userID, id)
		if err != nil {
			writeFailure(d, w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, stopResponse{Stopped: stopped})
	}
}

// DeleteJob removes a finished job.
func DeleteJob(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := currentUser(w, r)
		if !ok {
			return
		}
		id, ok := jobID(w, r)
		if !ok {
			return
		}
		if err := d.Jobs.Delete(r.Context(), userID, id); err != nil {
			writeFailure(d, w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
