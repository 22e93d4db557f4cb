// Package eventlog records per-user change events and tracks how far each
// sync client has consumed them.
//
// Events are appended inside the transaction of the mutation they describe,
// so a change and its event commit or roll back together. The event id is
// the cursor: strictly increasing per store, never reused.
package eventlog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrSnakeDoc/linkloom/internal/domain"
	"github.com/MrSnakeDoc/linkloom/internal/store/sqlstore"
)

const (
	DefaultPullLimit = 200
	MaxPullLimit     = 1000
)

// ErrClientIDRequired is returned when an operation needs a client id.
var ErrClientIDRequired = errors.New("client_id is required")

// Writer appends events. *sqlstore.Queries implements it.
type Writer interface {
	AppendEvent(ctx context.Context, e *domain.SyncEvent) error
}

// Record serializes payload and appends one event through w.
func Record(ctx context.Context, w Writer, userID int64, et domain.EntityType, entityID int64, action domain.Action, payload any) (*domain.SyncEvent, error) {
	if !action.Valid() {
		return nil, fmt.Errorf("record event: unknown action %q", action)
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", et, err)
	}
	e := &domain.SyncEvent{
		UserID:     userID,
		EntityType: et,
		EntityID:   entityID,
		Action:     action,
		Payload:    raw,
		CreatedAt:  domain.Now(),
	}
	if err := w.AppendEvent(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// RecordBookmark records an event carrying the bookmark's serialized state.
func RecordBookmark(ctx context.Context, w Writer, b *domain.Bookmark, action domain.Action) error {
	_, err := Record(ctx, w, b.UserID, domain.EntityBookmark, b.ID, action, domain.SerializeBookmark(b))
	return err
}

// RecordFolder records an event carrying the folder's serialized state.
func RecordFolder(ctx context.Context, w Writer, f *domain.Folder, action domain.Action) error {
	_, err := Record(ctx, w, f.UserID, domain.EntityFolder, f.ID, action, domain.SerializeFolder(f))
	return err
}

// PullResult is one page of the change log.
type PullResult struct {
	Events  []domain.SyncEvent `json:"events"`
	Cursor  int64              `json:"cursor"`
	HasMore bool               `json:"has_more"`
}

// Service exposes the client-facing cursor operations.
type Service struct {
	store *sqlstore.Store
	now   func() time.Time
}

// NewService creates an event log service over store.
func NewService(store *sqlstore.Store) *Service {
	return &Service{store: store, now: domain.Now}
}

// RegisterClient creates the client or updates its platform.
func (s *Service) RegisterClient(ctx context.Context, userID int64, clientID, platform string) (*domain.SyncClient, error) {
	clientID = strings.TrimSpace(clientID)
	if clientID == "" {
		return nil, ErrClientIDRequired
	}
	return s.store.Q().EnsureClient(ctx, userID, clientID, domain.CleanTitle(platform), s.now())
}

// Pull returns events with id > since in ascending order. limit defaults
// to DefaultPullLimit and is capped at MaxPullLimit. A non-empty clientID
// marks the client as seen.
func (s *Service) Pull(ctx context.Context, userID, since int64, limit int, clientID string) (*PullResult, error) {
	if since < 0 {
		since = 0
	}
	if limit <= 0 {
		limit = DefaultPullLimit
	}
	if limit > MaxPullLimit {
		limit = MaxPullLimit
	}

	events, err := s.store.Q().EventsSince(ctx, userID, since, limit)
	if err != nil {
		return nil, err
	}
	if events == nil {
		events = []domain.SyncEvent{}
	}

	res := &PullResult{Events: events, Cursor: since, HasMore: len(events) == limit}
	if n := len(events); n > 0 {
		res.Cursor = events[n-1].ID
	}

	if clientID = strings.TrimSpace(clientID); clientID != "" {
		if err := s.store.Q().TouchClient(ctx, userID, clientID, s.now()); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// Ack sets the client's cursor to exactly the given value; moving it
// backwards is allowed and makes the client re-pull.
func (s *Service) Ack(ctx context.Context, userID int64, clientID string, cursor int64) (int64, error) {
	clientID = strings.TrimSpace(clientID)
	if clientID == "" {
		return 0, ErrClientIDRequired
	}
	var stored int64
	err := s.store.InTx(ctx, func(q *sqlstore.Queries) error {
		now := s.now()
		c, err := q.EnsureClient(ctx, userID, clientID, nil, now)
		if err != nil {
			return err
		}
		if err := q.SetClientCursor(ctx, c.ID, cursor, now); err != nil {
			return err
		}
		stored = cursor
		return nil
	})
	return stored, err
}

// AdvanceCursor moves the client's cursor to max(current, latest event) and
// returns the stored value. It runs on q so that it commits with the
// caller's mutations.
func AdvanceCursor(ctx context.Context, q *sqlstore.Queries, userID int64, c *domain.SyncClient, now time.Time) (int64, error) {
	latest, err := q.LatestCursor(ctx, userID)
	if err != nil {
		return 0, err
	}
	if latest < c.LastCursor {
		latest = c.LastCursor
	}
	if err := q.SetClientCursor(ctx, c.ID, latest, now); err != nil {
		return 0, err
	}
	c.LastCursor = latest
	return latest, nil
}

// ResetCursor sets the client's cursor to the latest event, even if that is
// behind its current value.
func ResetCursor(ctx context.Context, q *sqlstore.Queries, userID int64, c *domain.SyncClient, now time.Time) (int64, error) {
	latest, err := q.LatestCursor(ctx, userID)
	if err != nil {
		return 0, err
	}
	if err := q.SetClientCursor(ctx, c.ID, latest, now); err != nil {
		return 0, err
	}
	c.LastCursor = latest
	return latest, nil
}
