package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrSnakeDoc/linkloom/internal/domain"
)

const clientColumns = `id, user_id, client_id, platform, last_cursor, created_at, updated_at`

// GetClient loads a sync client by its external id.
func (q *Queries) GetClient(ctx context.Context, userID int64, clientID string) (*domain.SyncClient, error) {
	var c domain.SyncClient
	if err := q.get(ctx, &c, `SELECT `+clientColumns+` FROM sync_clients WHERE user_id = ? AND client_id = ?`, userID, clientID); err != nil {
		return nil, err
	}
	return &c, nil
}

// EnsureClient returns the client, creating it when missing. A non-empty
// platform that differs from the stored one is written.
func (q *Queries) EnsureClient(ctx context.Context, userID int64, clientID string, platform *string, now time.Time) (*domain.SyncClient, error) {
	c, err := q.GetClient(ctx, userID, clientID)
	switch {
	case errors.Is(err, ErrNotFound):
		c = &domain.SyncClient{
			UserID:    userID,
			ClientID:  clientID,
			Platform:  platform,
			CreatedAt: now,
			UpdatedAt: now,
		}
		id, err := q.insert(ctx, `INSERT INTO sync_clients (user_id, client_id, platform, last_cursor, created_at, updated_at)
			VALUES (?, ?, ?, 0, ?, ?)`, userID, clientID, platform, now, now)
		if err != nil {
			return nil, fmt.Errorf("create sync client: %w", err)
		}
		c.ID = id
		return c, nil
	case err != nil:
		return nil, fmt.Errorf("load sync client: %w", err)
	}

	if platform != nil && *platform != "" && domain.Deref(c.Platform) != *platform {
		if _, err := q.exec(ctx, `UPDATE sync_clients SET platform = ?, updated_at = ? WHERE id = ?`, *platform, now, c.ID); err != nil {
			return nil, fmt.Errorf("update client platform: %w", err)
		}
		c.Platform = platform
		c.UpdatedAt = now
	}
	return c, nil
}

// SetClientCursor stores cursor as the client's last acknowledged position.
func (q *Queries) SetClientCursor(ctx context.Context, clientRowID, cursor int64, now time.Time) error {
	if _, err := q.exec(ctx, `UPDATE sync_clients SET last_cursor = ?, updated_at = ? WHERE id = ?`, cursor, now, clientRowID); err != nil {
		return fmt.Errorf("set client cursor: %w", err)
	}
	return nil
}

// TouchClient bumps updated_at of an existing client. Unknown clients are ignored.
func (q *Queries) TouchClient(ctx context.Context, userID int64, clientID string, now time.Time) error {
	if _, err := q.exec(ctx, `UPDATE sync_clients SET updated_at = ? WHERE user_id = ? AND client_id = ?`, now, userID, clientID); err != nil {
		return fmt.Errorf("touch client: %w", err)
	}
	return nil
}
