package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ListenPort      string        // ex: ":8080"
	ShutdownTimeout time.Duration // ex: 10s
	RequestTimeout  time.Duration // per-request timeout (ex: 60s)

	LogLevel  string // "debug" | "info" | "warn" | "error"
	PrettyLog bool   // true => zap dev (color), false => zap prod (JSON)

	// Database
	DatabaseDriver string // "sqlite" | "postgres"
	DatabaseURL    string // sqlite file path or postgres DSN

	// Sync confirmation
	SecretKey             string        // HMAC key for first-sync confirmation tokens
	SyncConfirmTTL        time.Duration // token lifetime (default: 900s)
	ContentFetchTimeout   time.Duration // per attempt, escalated on retry
	ContentMaxBytes       int64         // response body cap
	ImportWorkers         int           // clamped 4..24
	DeadLinkWorkers       int           // clamped 2..24
	SyncEnrichmentWorkers int           // clamped 1..32

	// Scheduler
	SchedulerEnabled      bool
	DeadLinkCheckInterval time.Duration // sweep interval (default: 24h)
	DeadLinkStaleAfter    time.Duration // bookmarks checked before now-StaleAfter are swept (default: 7d)
	DeadLinkSweepLimit    int           // bookmarks per sweep (default: 50)
	RecyclePurgeAfter     time.Duration // soft-deleted age before hard delete (default: 30d)
	RecyclePurgeInterval  time.Duration // purge interval (default: 24h)

	// Redis (optional, empty address disables the job runtime mirror)
	RedisAddr           string        // ex: "localhost:6379"
	RedisUser           string        // optional
	RedisPassword       string        // optional
	RedisDB             int           // Redis DB number
	RedisDT             time.Duration // Redis dial timeout (ex: 5s)
	RedisRT             time.Duration // Redis read timeout (ex: 3s)
	RedisWT             time.Duration // Redis write timeout (ex: 3s)
	RedisMaxWait        time.Duration // max wait between retries (ex: 10s)
	RedisPingTimeout    time.Duration // timeout for each ping attempt (ex: 5s)
	RedisPoolSize       int           // Redis connection pool size
	RedisConnectTimeout time.Duration // Total time to retry connecting (ex: 30s)
	RedisRetryInterval  time.Duration // Initial wait between retries (ex: 2s, grows exponentially)
	RedisWarnThreshold  int           // warn after this many attempts
	RedisRuntimeTTL     time.Duration // lifetime of mirrored job runtime snapshots

	AllowedHosts []string // optional, restrict /api to specific Host headers
	AllowedCIDRS []string // optional, restrict /readyz, /infra and /metrics to specific IPs
	TrustProxy   bool     // true => trust X-Forwarded-For headers (e.g. cloudflared)

	SyncRateBurst  int // token bucket size on first-sync endpoints
	SyncRatePerMin int // refill rate on first-sync endpoints

	MaxUploadBytes int64 // import upload cap (default: 20MB)
}

// Load reads the configuration from the environment. A .env file in the
// working directory is applied first when present; real environment
// variables win over it.
func Load() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		// Server settings
		ListenPort:      getenv("LINKLOOM_LISTEN_PORT", ":8080"),
		ShutdownTimeout: mustDuration("LINKLOOM_SHUTDOWN_TIMEOUT", 10*time.Second),
		RequestTimeout:  mustDuration("LINKLOOM_REQUEST_TIMEOUT", 60*time.Second),

		// Logging
		LogLevel:  getenv("LINKLOOM_LOG_LEVEL", "info"),
		PrettyLog: mustBool("LINKLOOM_PRETTY_LOG", false),

		// Database
		DatabaseDriver: strings.ToLower(getenv("LINKLOOM_DATABASE_DRIVER", "sqlite")),
		DatabaseURL:    requireEnv("LINKLOOM_DATABASE_URL"),

		// Sync + jobs
		SecretKey:             requireEnv("LINKLOOM_SECRET_KEY"),
		SyncConfirmTTL:        time.Duration(getenvInt("LINKLOOM_SYNC_CONFIRM_TTL_SECONDS", 900)) * time.Second,
		ContentFetchTimeout:   mustDuration("LINKLOOM_CONTENT_FETCH_TIMEOUT", 10*time.Second),
		ContentMaxBytes:       int64(getenvInt("LINKLOOM_CONTENT_MAX_BYTES", 2_500_000)),
		ImportWorkers:         clamp(getenvInt("LINKLOOM_IMPORT_WORKERS", 16), 4, 24),
		DeadLinkWorkers:       clamp(getenvInt("LINKLOOM_DEAD_LINK_WORKERS", 16), 2, 24),
		SyncEnrichmentWorkers: clamp(getenvInt("LINKLOOM_SYNC_ENRICHMENT_WORKERS", 8), 1, 32),

		// Scheduler
		SchedulerEnabled:      mustBool("LINKLOOM_SCHEDULER_ENABLED", true),
		DeadLinkCheckInterval: mustDuration("LINKLOOM_DEAD_LINK_CHECK_INTERVAL", 24*time.Hour),
		DeadLinkStaleAfter:    mustDuration("LINKLOOM_DEAD_LINK_STALE_AFTER", 7*24*time.Hour),
		DeadLinkSweepLimit:    getenvInt("LINKLOOM_DEAD_LINK_SWEEP_LIMIT", 50),
		RecyclePurgeAfter:     mustDuration("LINKLOOM_RECYCLE_PURGE_AFTER", 30*24*time.Hour),
		RecyclePurgeInterval:  mustDuration("LINKLOOM_RECYCLE_PURGE_INTERVAL", 24*time.Hour),

		// Redis settings
		RedisAddr:           getenv("LINKLOOM_REDIS_ADDR", ""),
		RedisUser:           getenv("LINKLOOM_REDIS_USERNAME", ""),
		RedisPassword:       getenv("LINKLOOM_REDIS_PASSWORD", ""),
		RedisDB:             getenvInt("LINKLOOM_REDIS_DB", 0),
		RedisDT:             mustDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
		RedisRT:             mustDuration("REDIS_READ_TIMEOUT", 3*time.Second),
		RedisWT:             mustDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		RedisMaxWait:        mustDuration("REDIS_MAX_WAIT", 10*time.Second),
		RedisPingTimeout:    mustDuration("REDIS_PING_TIMEOUT", 5*time.Second),
		RedisPoolSize:       getenvInt("REDIS_POOL_SIZE", 10),
		RedisConnectTimeout: mustDuration("REDIS_CONNECT_TIMEOUT", 30*time.Second),
		RedisRetryInterval:  mustDuration("REDIS_RETRY_INTERVAL", 2*time.Second),
		RedisWarnThreshold:  getenvInt("REDIS_WARN_THRESHOLD", 3),
		RedisRuntimeTTL:     mustDuration("LINKLOOM_REDIS_RUNTIME_TTL", 24*time.Hour),

		// Access restrictions
		AllowedHosts: splitAndTrim(getenv("LINKLOOM_ALLOWED_HOSTS", "")),
		AllowedCIDRS: splitAndTrim(getenv("LINKLOOM_ALLOWED_CIDRS", "")),
		TrustProxy:   mustBool("LINKLOOM_TRUST_PROXY", false),

		SyncRateBurst:  getenvInt("LINKLOOM_SYNC_RATE_BURST", 10),
		SyncRatePerMin: getenvInt("LINKLOOM_SYNC_RATE_PER_MIN", 30),

		MaxUploadBytes: int64(getenvInt("LINKLOOM_MAX_UPLOAD_BYTES", 20<<20)),
	}

	validateDriver(cfg.DatabaseDriver)

	// Log config only in debug mode with redacted sensitive fields
	if cfg.LogLevel == "debug" {
		cfgCopy := *cfg
		cfgCopy.SecretKey = "***REDACTED***"
		cfgCopy.DatabaseURL = "***REDACTED***"
		cfgCopy.RedisPassword = "***REDACTED***"
		log.Printf("[DEBUG] cfg: %+v\n", cfgCopy)
	}

	return cfg
}

// LoadDatabase reads only the logging and database settings, for the
// maintenance commands that never serve traffic.
func LoadDatabase() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		LogLevel:       getenv("LINKLOOM_LOG_LEVEL", "info"),
		PrettyLog:      mustBool("LINKLOOM_PRETTY_LOG", false),
		DatabaseDriver: strings.ToLower(getenv("LINKLOOM_DATABASE_DRIVER", "sqlite")),
		DatabaseURL:    requireEnv("LINKLOOM_DATABASE_URL"),
	}
	validateDriver(cfg.DatabaseDriver)
	return cfg
}

func validateDriver(driver string) {
	switch driver {
	case "sqlite", "postgres":
	default:
		panic(fmt.Sprintf("❌ FATAL: LINKLOOM_DATABASE_DRIVER must be sqlite or postgres, got %q", driver))
	}
}

// helpers
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func requireEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		panic(fmt.Sprintf("❌ FATAL: Required environment variable %s is not set", key))
	}
	return v
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func mustBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func mustDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	raw := strings.Split(s, ",")
	parts := make([]string, 0, len(raw))
	for _, part := range raw {
		trimmed := strings.TrimSpace(part)
		// Remove surrounding quotes if present
		trimmed = strings.Trim(trimmed, `"'`)
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}
