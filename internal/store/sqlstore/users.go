package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrSnakeDoc/linkloom/internal/domain"
)

// EnsureUser returns the user with the username, creating it when missing.
func (q *Queries) EnsureUser(ctx context.Context, username string, now time.Time) (*domain.User, error) {
	var u domain.User
	err := q.get(ctx, &u, `SELECT id, username, created_at FROM users WHERE username = ?`, username)
	if err == nil {
		return &u, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	id, err := q.insert(ctx, `INSERT INTO users (username, created_at) VALUES (?, ?)`, username, now)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return &domain.User{ID: id, Username: username, CreatedAt: now}, nil
}

// CreateAPIToken stores the hash of a new token for the user.
func (q *Queries) CreateAPIToken(ctx context.Context, userID int64, name, tokenHash string, now time.Time) error {
	if _, err := q.insert(ctx, `INSERT INTO api_tokens (user_id, name, token_hash, created_at) VALUES (?, ?, ?, ?)`,
		userID, name, tokenHash, now); err != nil {
		return fmt.Errorf("create api token: %w", err)
	}
	return nil
}

// UserIDForToken resolves a non-revoked token hash to its user and records
// the use.
func (q *Queries) UserIDForToken(ctx context.Context, tokenHash string, now time.Time) (int64, error) {
	var row struct {
		ID     int64 `db:"id"`
		UserID int64 `db:"user_id"`
	}
	if err := q.get(ctx, &row, `SELECT id, user_id FROM api_tokens
		WHERE token_hash = ? AND revoked_at IS NULL`, tokenHash); err != nil {
		return 0, err
	}
	if _, err := q.exec(ctx, `UPDATE api_tokens SET last_used_at = ? WHERE id = ?`, now, row.ID); err != nil {
		return 0, fmt.Errorf("touch api token: %w", err)
	}
	return row.UserID, nil
}
