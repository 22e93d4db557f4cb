// Package redis dials the optional Redis server that mirrors job runtime
// snapshots. LinkLoom keeps working without it, so Connect gives up after a
// bounded window instead of blocking startup forever.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/linkloom/internal/config"
	"github.com/MrSnakeDoc/linkloom/internal/logger"
)

// Options configures the client and the startup retry window.
type Options struct {
	Addr     string
	Username string
	Password string
	DB       int
	PoolSize int

	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// Window bounds all attempts. Backoff starts at FirstBackoff, doubles
	// after every failure and is capped at MaxBackoff.
	Window       time.Duration
	FirstBackoff time.Duration
	MaxBackoff   time.Duration
	PingTimeout  time.Duration
	// QuietAttempts failures are logged at warn; later ones at error.
	QuietAttempts int
}

// OptionsFromConfig maps the LINKLOOM_REDIS_* / REDIS_* settings.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Addr:          cfg.RedisAddr,
		Username:      cfg.RedisUser,
		Password:      cfg.RedisPassword,
		DB:            cfg.RedisDB,
		PoolSize:      cfg.RedisPoolSize,
		DialTimeout:   cfg.RedisDT,
		ReadTimeout:   cfg.RedisRT,
		WriteTimeout:  cfg.RedisWT,
		Window:        cfg.RedisConnectTimeout,
		FirstBackoff:  cfg.RedisRetryInterval,
		MaxBackoff:    cfg.RedisMaxWait,
		PingTimeout:   cfg.RedisPingTimeout,
		QuietAttempts: cfg.RedisWarnThreshold,
	}
}

// Validate reports the first unusable setting.
func (o Options) Validate() error {
	switch {
	case o.Addr == "":
		return errors.New("redis address is empty")
	case o.Window <= 0:
		return fmt.Errorf("redis connect window must be > 0, got %v", o.Window)
	case o.FirstBackoff <= 0:
		return fmt.Errorf("redis retry interval must be > 0, got %v", o.FirstBackoff)
	case o.MaxBackoff < o.FirstBackoff:
		return fmt.Errorf("redis max wait %v is below retry interval %v", o.MaxBackoff, o.FirstBackoff)
	case o.PingTimeout <= 0:
		return fmt.Errorf("redis ping timeout must be > 0, got %v", o.PingTimeout)
	case o.QuietAttempts < 0:
		return fmt.Errorf("redis warn threshold must be >= 0, got %d", o.QuietAttempts)
	}
	return nil
}

func (o Options) client() *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         o.Addr,
		Username:     o.Username,
		Password:     o.Password,
		DB:           o.DB,
		PoolSize:     o.PoolSize,
		DialTimeout:  o.DialTimeout,
		ReadTimeout:  o.ReadTimeout,
		WriteTimeout: o.WriteTimeout,
	})
}

// backoff yields exponentially growing waits bounded by max.
type backoff struct {
	next, max time.Duration
}

func (b *backoff) wait() time.Duration {
	d := b.next
	b.next = min(b.next*2, b.max)
	return d
}

// Connect pings until Redis answers, ctx is cancelled or the window
// elapses. The returned client is ready for the runtime mirror.
func Connect(ctx context.Context, opts Options, log logger.Logger) (*redis.Client, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	log = log.Named("redis").With(logger.String("addr", opts.Addr))

	ctx, cancel := context.WithTimeout(ctx, opts.Window)
	defer cancel()

	client := opts.client()
	start := time.Now()
	bo := backoff{next: opts.FirstBackoff, max: opts.MaxBackoff}

	log.Info("connecting to job runtime mirror", logger.Duration("window", opts.Window))
	for attempt := 1; ; attempt++ {
		err := ping(ctx, client, opts.PingTimeout)
		if err == nil {
			fields := []logger.Field{logger.Int("attempts", attempt), logger.Duration("elapsed", time.Since(start))}
			if attempt > 1 {
				log.Warn("job runtime mirror reachable after retries", fields...)
			} else {
				log.Info("job runtime mirror reachable", fields...)
			}
			return client, nil
		}

		wait := bo.wait()
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			_ = client.Close()
			log.Error("giving up on job runtime mirror",
				logger.Int("attempts", attempt), logger.Error(err))
			return nil, fmt.Errorf("redis at %s unreachable after %d attempts: %w", opts.Addr, attempt, err)
		case <-timer.C:
		}

		level := log.Warn
		if attempt > opts.QuietAttempts || remaining(ctx) < 10*time.Second {
			level = log.Error
		}
		level("job runtime mirror ping failed, retrying",
			logger.Int("attempt", attempt),
			logger.Duration("waited", wait),
			logger.Duration("remaining", remaining(ctx)),
			logger.Error(err))
	}
}

func ping(ctx context.Context, client *redis.Client, timeout time.Duration) error {
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return client.Ping(pingCtx).Err()
}

func remaining(ctx context.Context) time.Duration {
	deadline, ok := ctx.Deadline()
	if !ok {
		return 0
	}
	return time.Until(deadline)
}
