// Package syncer applies browser changes to the server copy of a user's
// bookmarks: incremental pushes merged with last-write-wins, and the
// one-time first-sync reconciliation guarded by a confirmation token.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrSnakeDoc/linkloom/internal/confirm"
	"github.com/MrSnakeDoc/linkloom/internal/domain"
	"github.com/MrSnakeDoc/linkloom/internal/eventlog"
	"github.com/MrSnakeDoc/linkloom/internal/jobs"
	"github.com/MrSnakeDoc/linkloom/internal/logger"
	"github.com/MrSnakeDoc/linkloom/internal/metrics"
	"github.com/MrSnakeDoc/linkloom/internal/store/sqlstore"
)

var (
	// ErrValidation wraps every client-fixable request error.
	ErrValidation = errors.New("validation failed")
	// ErrConfirmationFailed is the single error for a wrong phrase, an
	// unchecked confirmation or a bad token.
	ErrConfirmationFailed = errors.New("destructive confirmation failed")
)

func validation(msg string) error {
	return fmt.Errorf("%w: %s", ErrValidation, msg)
}

// EnrichmentStarter launches a background content fetch for bookmarks.
// *jobs.Manager implements it.
type EnrichmentStarter interface {
	StartEnrichment(ctx context.Context, userID int64, ids []int64) (*domain.Job, error)
}

// Options configures a Service. Fetcher, Enrichment and Metrics are optional.
type Options struct {
	Store      *sqlstore.Store
	Gate       *confirm.Gate
	Fetcher    jobs.Fetcher
	Enrichment EnrichmentStarter
	Metrics    *metrics.Metrics
	Logger     logger.Logger

	// FetchWorkers bounds concurrent content fetches during a two-way merge.
	FetchWorkers int
}

// Service implements the sync endpoints for all users.
type Service struct {
	store        *sqlstore.Store
	events       *eventlog.Service
	gate         *confirm.Gate
	fetcher      jobs.Fetcher
	enrichment   EnrichmentStarter
	metrics      *metrics.Metrics
	log          logger.Logger
	fetchWorkers int
	now          func() time.Time
}

// NewService creates the sync service from opts.
func NewService(opts Options) *Service {
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}
	log = log.Named("sync")
	workers := opts.FetchWorkers
	if workers < 1 {
		workers = 1
	}
	return &Service{
		store:        opts.Store,
		events:       eventlog.NewService(opts.Store),
		gate:         opts.Gate,
		fetcher:      opts.Fetcher,
		enrichment:   opts.Enrichment,
		metrics:      opts.Metrics,
		log:          log,
		fetchWorkers: workers,
		now:          domain.Now,
	}
}

// ClientInfo is the public view of a registered client.
type ClientInfo struct {
	ClientID   string  `json:"client_id"`
	Platform   *string `json:"platform"`
	LastCursor int64   `json:"last_cursor"`
}

// RegisterClient creates the client or updates its platform.
func (s *Service) RegisterClient(ctx context.Context, userID int64, clientID, platform string) (*ClientInfo, error) {
	c, err := s.events.RegisterClient(ctx, userID, clientID, platform)
	if errors.Is(err, eventlog.ErrClientIDRequired) {
		return nil, validation("client_id is required")
	}
	if err != nil {
		return nil, err
	}
	return &ClientInfo{ClientID: c.ClientID, Platform: c.Platform, LastCursor: c.LastCursor}, nil
}

// Pull returns one page of the user's change log.
func (s *Service) Pull(ctx context.Context, userID, since int64, limit int, clientID string) (*eventlog.PullResult, error) {
	return s.events.Pull(ctx, userID, since, limit, clientID)
}

// Ack stores the client's cursor as given.
func (s *Service) Ack(ctx context.Context, userID int64, clientID string, cursor int64) (int64, error) {
	stored, err := s.events.Ack(ctx, userID, clientID, cursor)
	if errors.Is(err, eventlog.ErrClientIDRequired) {
		return 0, validation("client_id and cursor are required")
	}
	return stored, err
}

func requireClientID(raw string) (string, error) {
	id := strings.TrimSpace(raw)
	if id == "" {
		return "", validation("client_id is required")
	}
	return id, nil
}
