package scheduler

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/linkloom/internal/content"
	"github.com/MrSnakeDoc/linkloom/internal/domain"
	"github.com/MrSnakeDoc/linkloom/internal/logger"
	redisstore "github.com/MrSnakeDoc/linkloom/internal/store/redis"
	"github.com/MrSnakeDoc/linkloom/internal/store/sqlstore"
	"github.com/MrSnakeDoc/linkloom/internal/store/sqlstore/sqlstoretest"
)

type stubChecker struct {
	mu   sync.Mutex
	urls []string
}

func (c *stubChecker) CheckLink(_ context.Context, url string) content.LinkResult {
	c.mu.Lock()
	c.urls = append(c.urls, url)
	c.mu.Unlock()
	return content.LinkResult{StatusCode: 404, FinalURL: url, Status: domain.LinkNotFound, Latency: 12 * time.Millisecond}
}

func markChecked(t *testing.T, s *sqlstore.Store, b *domain.Bookmark, at time.Time) {
	t.Helper()
	b.LinkStatus = domain.Ptr(domain.LinkAlive)
	b.LastCheckedAt = &at
	if err := s.Q().UpdateBookmark(context.Background(), b); err != nil {
		t.Fatalf("UpdateBookmark() error = %v", err)
	}
}

func TestDeadLinkSweeperSweep(t *testing.T) {
	s := sqlstoretest.New(t)
	ctx := context.Background()
	alice := sqlstoretest.User(t, s, "alice")
	bob := sqlstoretest.User(t, s, "bob")
	now := domain.Now()

	fresh := sqlstoretest.Bookmark(t, s, alice, "https://fresh.example/")
	markChecked(t, s, fresh, now.Add(-time.Hour))
	stale := sqlstoretest.Bookmark(t, s, alice, "https://stale.example/")
	markChecked(t, s, stale, now.Add(-30*24*time.Hour))
	never := sqlstoretest.Bookmark(t, s, bob, "https://never.example/")
	internal := sqlstoretest.Bookmark(t, s, bob, "http://nas.local/", "internal")

	checker := &stubChecker{}
	sweeper := NewDeadLinkSweeper(s, checker, nil, logger.New("error", false), time.Hour, 7*24*time.Hour, 10)

	visited, err := sweeper.Sweep(ctx)
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if visited != 3 {
		t.Errorf("Sweep() visited %d, want 3", visited)
	}

	want := []string{"https://never.example/", "https://stale.example/"}
	if len(checker.urls) != len(want) {
		t.Fatalf("checked %v, want %v", checker.urls, want)
	}
	for i := range want {
		if checker.urls[i] != want[i] {
			t.Errorf("checked[%d] = %s, want %s", i, checker.urls[i], want[i])
		}
	}

	got, err := s.Q().GetBookmark(ctx, bob, never.ID)
	if err != nil {
		t.Fatalf("GetBookmark() error = %v", err)
	}
	if domain.Deref(got.LinkStatus) != domain.LinkNotFound || got.LastCheckedAt == nil {
		t.Errorf("never-checked bookmark = status %v, checked %v", got.LinkStatus, got.LastCheckedAt)
	}

	checks, err := s.Q().LinkChecks(ctx, never.ID)
	if err != nil {
		t.Fatalf("LinkChecks() error = %v", err)
	}
	if len(checks) != 1 || domain.Deref(checks[0].StatusCode) != 404 || domain.Deref(checks[0].LatencyMS) != 12 {
		t.Errorf("link checks = %+v", checks)
	}

	got, err = s.Q().GetBookmark(ctx, bob, internal.ID)
	if err != nil {
		t.Fatalf("GetBookmark() error = %v", err)
	}
	if domain.Deref(got.LinkStatus) != domain.LinkNotApplic {
		t.Errorf("internal bookmark status = %v, want N/A", got.LinkStatus)
	}
}

func TestDeadLinkSweeperDefaults(t *testing.T) {
	sweeper := NewDeadLinkSweeper(nil, &stubChecker{}, nil, logger.Nop(), 0, 0, 0)
	if sweeper.interval != DefaultSweepInterval || sweeper.staleAfter != DefaultStaleAfter || sweeper.limit != DefaultSweepLimit {
		t.Errorf("defaults = %v, %v, %d", sweeper.interval, sweeper.staleAfter, sweeper.limit)
	}
}

func TestDeadLinkSweeperStartStop(t *testing.T) {
	sweeper := NewDeadLinkSweeper(nil, &stubChecker{}, nil, logger.Nop(), time.Hour, 0, 0)
	if err := sweeper.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if n := len(sweeper.cron.Entries()); n != 1 {
		t.Errorf("scheduled entries = %d, want 1", n)
	}
	sweeper.Stop()
}

func TestRecyclePurgerPurge(t *testing.T) {
	s := sqlstoretest.New(t)
	ctx := context.Background()
	uid := sqlstoretest.User(t, s, "alice")
	now := domain.Now()

	softDelete := func(b *domain.Bookmark, at time.Time) {
		b.DeletedAt, b.DeletedBy = &at, &uid
		if err := s.Q().UpdateBookmark(ctx, b); err != nil {
			t.Fatalf("UpdateBookmark() error = %v", err)
		}
	}

	old := sqlstoretest.Bookmark(t, s, uid, "https://old.example/", "x")
	softDelete(old, now.Add(-40*24*time.Hour))
	recent := sqlstoretest.Bookmark(t, s, uid, "https://recent.example/")
	softDelete(recent, now.Add(-24*time.Hour))
	active := sqlstoretest.Bookmark(t, s, uid, "https://active.example/")

	purger := NewRecyclePurger(s, logger.New("error", false), time.Hour, 30*24*time.Hour)
	n, err := purger.Purge(ctx)
	if err != nil {
		t.Fatalf("Purge() error = %v", err)
	}
	if n != 1 {
		t.Errorf("Purge() = %d, want 1", n)
	}

	if _, err := s.Q().GetBookmark(ctx, uid, old.ID); err != sqlstore.ErrNotFound {
		t.Errorf("old bookmark lookup error = %v, want ErrNotFound", err)
	}
	for _, id := range []int64{recent.ID, active.ID} {
		if _, err := s.Q().GetBookmark(ctx, uid, id); err != nil {
			t.Errorf("bookmark %d lookup error = %v", id, err)
		}
	}

	events, err := s.Q().EventsSince(ctx, uid, 0, 10)
	if err != nil {
		t.Fatalf("EventsSince() error = %v", err)
	}
	if len(events) != 1 || events[0].Action != domain.ActionPurge || events[0].EntityID != old.ID {
		t.Fatalf("events = %+v, want one purge event", events)
	}
	if string(events[0].Payload) != `{"id":`+strconv.FormatInt(old.ID, 10)+`}` {
		t.Errorf("payload = %s", events[0].Payload)
	}

	n, err = purger.Purge(ctx)
	if err != nil || n != 0 {
		t.Errorf("second Purge() = %d, %v; want 0, nil", n, err)
	}
}

func TestRuntimePrunerPrune(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	store := redisstore.NewStore(client, time.Minute)
	ctx := context.Background()

	if err := store.SaveJobRuntime(ctx, &domain.JobRuntime{JobID: 9, Status: domain.JobRunning}); err != nil {
		t.Fatalf("SaveJobRuntime() error = %v", err)
	}
	mr.FastForward(time.Hour)

	if err := NewRuntimePruner(store, logger.Nop()).Prune(ctx); err != nil {
		t.Fatalf("Prune() error = %v", err)
	}

	ids, err := store.ActiveJobIDs(ctx)
	if err != nil {
		t.Fatalf("ActiveJobIDs() error = %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("active ids = %v, want none", ids)
	}
}
