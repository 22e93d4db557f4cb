package deps

import (
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/linkloom/internal/jobs"
	"github.com/MrSnakeDoc/linkloom/internal/logger"
	"github.com/MrSnakeDoc/linkloom/internal/metrics"
	"github.com/MrSnakeDoc/linkloom/internal/store/sqlstore"
	"github.com/MrSnakeDoc/linkloom/internal/syncer"
	"github.com/MrSnakeDoc/linkloom/internal/version"
)

type Deps struct {
	Logger         logger.Logger
	StartTime      time.Time
	Build          version.Info
	TimeNow        func() time.Time // for testing, defaults to time.Now
	AllowedHosts   []string         // Host headers allowed to access /api
	AllowedCIDRS   []string         // IPs allowed to access readyz/infra/metrics
	TrustProxy     bool             // true if running behind a trusted reverse proxy (e.g., cloudflared)
	SyncRateBurst  int              // token bucket size on /api/sync/first/*
	SyncRatePerMin int              // token refill per IP per minute on /api/sync/first/*
	MaxUploadBytes int64            // import upload cap
	Store          *sqlstore.Store  // bookmarks, events, jobs
	RedisClient    *redis.Client    // job runtime mirror, nil when disabled
	Sync           *syncer.Service  // sync endpoints
	Jobs           *jobs.Manager    // background jobs
	Metrics        *metrics.Metrics // prometheus collectors, may be nil
}

// Now returns d.TimeNow() or time.Now when unset.
func (d Deps) Now() time.Time {
	if d.TimeNow != nil {
		return d.TimeNow()
	}
	return time.Now()
}
