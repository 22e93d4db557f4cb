package sqlstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/MrSnakeDoc/linkloom/internal/domain"
)

type eventRow struct {
	ID         int64     `db:"id"`
	UserID     int64     `db:"user_id"`
	EntityType string    `db:"entity_type"`
	EntityID   int64     `db:"entity_id"`
	Action     string    `db:"action"`
	Payload    string    `db:"payload"`
	CreatedAt  time.Time `db:"created_at"`
}

// AppendEvent stores e and sets its ID, which is the new cursor value.
func (q *Queries) AppendEvent(ctx context.Context, e *domain.SyncEvent) error {
	id, err := q.insert(ctx, `INSERT INTO sync_events (user_id, entity_type, entity_id, action, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.UserID, string(e.EntityType), e.EntityID, string(e.Action), string(e.Payload), e.CreatedAt)
	if err != nil {
		return fmt.Errorf("append sync event: %w", err)
	}
	e.ID = id
	return nil
}

// EventsSince returns up to limit events of the user with id > since, ascending.
func (q *Queries) EventsSince(ctx context.Context, userID, since int64, limit int) ([]domain.SyncEvent, error) {
	var rows []eventRow
	if err := q.sel(ctx, &rows, `SELECT id, user_id, entity_type, entity_id, action, payload, created_at
		FROM sync_events WHERE user_id = ? AND id > ? ORDER BY id ASC LIMIT ?`, userID, since, limit); err != nil {
		return nil, fmt.Errorf("events since %d: %w", since, err)
	}
	out := make([]domain.SyncEvent, len(rows))
	for i, r := range rows {
		out[i] = domain.SyncEvent{
			ID:         r.ID,
			UserID:     r.UserID,
			EntityType: domain.EntityType(r.EntityType),
			EntityID:   r.EntityID,
			Action:     domain.Action(r.Action),
			Payload:    json.RawMessage(r.Payload),
			CreatedAt:  r.CreatedAt,
		}
	}
	return out, nil
}

// LatestCursor returns the highest event id of the user, or 0.
func (q *Queries) LatestCursor(ctx context.Context, userID int64) (int64, error) {
	var cursor int64
	if err := q.get(ctx, &cursor, `SELECT COALESCE(MAX(id), 0) FROM sync_events WHERE user_id = ?`, userID); err != nil {
		return 0, fmt.Errorf("latest cursor: %w", err)
	}
	return cursor, nil
}
