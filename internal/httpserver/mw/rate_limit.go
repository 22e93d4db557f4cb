package mw

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/MrSnakeDoc/linkloom/internal/utils"
)

// RateLimitConfig configures one token bucket per caller. Authenticated
// requests are keyed by user, others by client IP.
type RateLimitConfig struct {
	Burst        int
	RefillPerMin int
	// MaxEntries triggers an idle sweep when the table grows past it.
	MaxEntries    int
	SweepInterval time.Duration
	IdleTTL       time.Duration
	TrustProxy    bool
	Now           func() time.Time
}

type callerLimit struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

type limiterTable struct {
	cfg   RateLimitConfig
	every rate.Limit

	mu        sync.Mutex
	callers   map[string]*callerLimit
	lastSweep time.Time
}

func newLimiterTable(cfg RateLimitConfig) *limiterTable {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = time.Minute
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 15 * time.Minute
	}
	cfg.Burst = max(cfg.Burst, 1)
	cfg.RefillPerMin = max(cfg.RefillPerMin, 1)
	return &limiterTable{
		cfg:       cfg,
		every:     rate.Every(time.Minute / time.Duration(cfg.RefillPerMin)),
		callers:   make(map[string]*callerLimit, 64),
		lastSweep: cfg.Now(),
	}
}

func (t *limiterTable) limiter(key string, now time.Time) *rate.Limiter {
	t.mu.Lock()
	defer t.mu.Unlock()

	if now.Sub(t.lastSweep) >= t.cfg.SweepInterval ||
		(t.cfg.MaxEntries > 0 && len(t.callers) >= t.cfg.MaxEntries) {
		for k, c := range t.callers {
			if now.Sub(c.lastSeen) > t.cfg.IdleTTL {
				delete(t.callers, k)
			}
		}
		t.lastSweep = now
	}

	c := t.callers[key]
	if c == nil {
		c = &callerLimit{lim: rate.NewLimiter(t.every, t.cfg.Burst)}
		t.callers[key] = c
	}
	c.lastSeen = now
	return c.lim
}

// take consumes one token at now. When none is available it returns the
// whole seconds until the next one.
func (t *limiterTable) take(key string, now time.Time) (remaining int, retryAfter int, ok bool) {
	lim := t.limiter(key, now)
	res := lim.ReserveN(now, 1)
	if delay := res.DelayFrom(now); delay > 0 {
		res.CancelAt(now)
		return 0, max(int((delay+time.Second-1)/time.Second), 1), false
	}
	return int(lim.TokensAt(now)), 0, true
}

func (t *limiterTable) key(r *http.Request) string {
	if id, ok := UserID(r.Context()); ok {
		return "user:" + strconv.FormatInt(id, 10)
	}
	return "ip:" + utils.ClientIP(r, t.cfg.TrustProxy)
}

// RateLimit throttles a route group. Mount it after Authenticate so that
// users behind one address do not share a bucket.
func RateLimit(cfg RateLimitConfig) func(http.Handler) http.Handler {
	t := newLimiterTable(cfg)
	limit := strconv.Itoa(t.cfg.Burst)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			remaining, retry, ok := t.take(t.key(r), t.cfg.Now())
			w.Header().Set("X-RateLimit-Limit", limit)
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			if !ok {
				w.Header().Set("Retry-After", strconv.Itoa(retry))
				deny(w, http.StatusTooManyRequests, "too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
