// Package sqlstoretest opens throwaway SQLite stores for tests.
package sqlstoretest

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/MrSnakeDoc/linkloom/internal/domain"
	"github.com/MrSnakeDoc/linkloom/internal/store/sqlstore"
)

// New opens a fresh SQLite store under t.TempDir and closes it on cleanup.
func New(t testing.TB) *sqlstore.Store {
	t.Helper()
	s, err := sqlstore.Open(context.Background(), sqlstore.DriverSQLite, filepath.Join(t.TempDir(), "linkloom.db"))
	if err != nil {
		t.Fatalf("open sqlite store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// User creates a user and returns its id.
func User(t testing.TB, s *sqlstore.Store, username string) int64 {
	t.Helper()
	u, err := s.Q().EnsureUser(context.Background(), username, domain.Now())
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u.ID
}

// Bookmark inserts an active bookmark for url and returns it.
func Bookmark(t testing.TB, s *sqlstore.Store, userID int64, url string, tags ...string) *domain.Bookmark {
	t.Helper()
	ctx := context.Background()
	now := domain.Now()
	b := &domain.Bookmark{
		UserID:        userID,
		URL:           url,
		NormalizedURL: domain.NormalizeURL(url),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.Q().InsertBookmark(ctx, b); err != nil {
		t.Fatalf("insert bookmark: %v", err)
	}
	if len(tags) > 0 {
		b.Tags = domain.ParseTagList(tags)
		if err := s.Q().SetBookmarkTags(ctx, userID, b.ID, b.Tags); err != nil {
			t.Fatalf("set tags: %v", err)
		}
	}
	return b
}
