package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/linkloom/internal/config"
	"github.com/MrSnakeDoc/linkloom/internal/confirm"
	"github.com/MrSnakeDoc/linkloom/internal/content"
	"github.com/MrSnakeDoc/linkloom/internal/httpserver"
	"github.com/MrSnakeDoc/linkloom/internal/httpserver/deps"
	"github.com/MrSnakeDoc/linkloom/internal/jobs"
	"github.com/MrSnakeDoc/linkloom/internal/logger"
	"github.com/MrSnakeDoc/linkloom/internal/metrics"
	"github.com/MrSnakeDoc/linkloom/internal/redis"
	"github.com/MrSnakeDoc/linkloom/internal/scheduler"
	redisstore "github.com/MrSnakeDoc/linkloom/internal/store/redis"
	"github.com/MrSnakeDoc/linkloom/internal/store/sqlstore"
	"github.com/MrSnakeDoc/linkloom/internal/syncer"
	"github.com/MrSnakeDoc/linkloom/internal/utils"
	"github.com/MrSnakeDoc/linkloom/internal/version"
)

type App struct {
	cfg         *config.Config
	logger      logger.Logger
	server      *httpserver.Server
	store       *sqlstore.Store
	redisClient *goredis.Client
	jobs        *jobs.Manager
	stopJobs    context.CancelFunc
	sweeper     *scheduler.DeadLinkSweeper
	purger      *scheduler.RecyclePurger
}

// New wires every component from the environment. It fails when the
// database is unreachable; Redis is optional.
func New(ctx context.Context, cfg *config.Config, loggerClient logger.Logger) (*App, error) {
	store, err := sqlstore.Open(ctx, cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := store.Migrate(ctx); err != nil {
		utils.Close(store)
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	loggerClient.Info("database ready", logger.String("driver", cfg.DatabaseDriver))

	var (
		redisClient *goredis.Client
		mirror      jobs.RuntimeMirror
	)
	if cfg.RedisAddr != "" {
		redisClient, err = redis.Connect(ctx, redis.OptionsFromConfig(cfg), loggerClient)
		if err != nil {
			utils.Close(store)
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		runtimes := redisstore.NewStore(redisClient, cfg.RedisRuntimeTTL)
		if err := scheduler.NewRuntimePruner(runtimes, loggerClient).Prune(ctx); err != nil {
			loggerClient.Warn("failed to prune job runtimes on startup", logger.Error(err))
		}
		mirror = runtimes
	} else {
		loggerClient.Info("redis not configured, job progress stays in process")
	}

	m := metrics.New()
	fetcher := content.NewFetcher(cfg.ContentFetchTimeout, cfg.ContentMaxBytes)

	// Jobs outlive requests; shutdown cancels them through jobsCtx.
	jobsCtx, stopJobs := context.WithCancel(context.Background())
	manager := jobs.NewManager(jobsCtx, jobs.Options{
		Store:   store,
		Fetcher: fetcher,
		Mirror:  mirror,
		Metrics: m,
		Logger:  loggerClient,
		Workers: jobs.Workers{
			Import:     cfg.ImportWorkers,
			DeadLink:   cfg.DeadLinkWorkers,
			Enrichment: cfg.SyncEnrichmentWorkers,
		},
	})
	if _, err := manager.RecoverAbandoned(ctx); err != nil {
		loggerClient.Warn("failed to recover abandoned jobs", logger.Error(err))
	}

	syncService := syncer.NewService(syncer.Options{
		Store:        store,
		Gate:         confirm.NewGate(cfg.SecretKey, cfg.SyncConfirmTTL),
		Fetcher:      fetcher,
		Enrichment:   manager,
		Metrics:      m,
		Logger:       loggerClient,
		FetchWorkers: cfg.SyncEnrichmentWorkers,
	})

	a := &App{
		cfg:         cfg,
		logger:      loggerClient,
		store:       store,
		redisClient: redisClient,
		jobs:        manager,
		stopJobs:    stopJobs,
	}

	if cfg.SchedulerEnabled {
		a.sweeper = scheduler.NewDeadLinkSweeper(store, fetcher, m, loggerClient,
			cfg.DeadLinkCheckInterval, cfg.DeadLinkStaleAfter, cfg.DeadLinkSweepLimit)
		a.purger = scheduler.NewRecyclePurger(store, loggerClient,
			cfg.RecyclePurgeInterval, cfg.RecyclePurgeAfter)
	}

	d := deps.Deps{
		Logger:         loggerClient,
		StartTime:      time.Now(),
		Build:          version.Get(),
		TimeNow:        time.Now,
		AllowedHosts:   cfg.AllowedHosts,
		AllowedCIDRS:   cfg.AllowedCIDRS,
		TrustProxy:     cfg.TrustProxy,
		SyncRateBurst:  cfg.SyncRateBurst,
		SyncRatePerMin: cfg.SyncRatePerMin,
		MaxUploadBytes: cfg.MaxUploadBytes,
		Store:          store,
		RedisClient:    redisClient,
		Sync:           syncService,
		Jobs:           manager,
		Metrics:        m,
	}
	a.server = httpserver.New(cfg, loggerClient, d)

	return a, nil
}

// Run serves until SIGINT/SIGTERM, then shuts everything down in order:
// schedulers, HTTP server, jobs, then connections.
func (a *App) Run() error {
	a.logger.Infof("🚀 Starting %s on %s", version.Get(), a.cfg.ListenPort)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if a.sweeper != nil {
		if err := a.sweeper.Start(ctx); err != nil {
			return fmt.Errorf("failed to start dead-link sweeper: %w", err)
		}
	}
	if a.purger != nil {
		if err := a.purger.Start(ctx); err != nil {
			return fmt.Errorf("failed to start recycle purger: %w", err)
		}
	}

	errCh := make(chan error, 1)
	go func() {
		if err := a.server.Start(); err != nil {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("⏳ Shutting down gracefully...")
	case runErr = <-errCh:
	}

	a.shutdown()
	if runErr == nil {
		a.logger.Info("✅ LinkLoom stopped cleanly")
	}
	return runErr
}

func (a *App) shutdown() {
	if a.sweeper != nil {
		a.sweeper.Stop()
	}
	if a.purger != nil {
		a.purger.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := a.server.Stop(shutdownCtx); err != nil {
		a.logger.Warn("failed to stop server", logger.Error(err))
	}

	// Running jobs finish as stopped with an interruption message.
	a.stopJobs()
	a.jobs.Wait()

	if a.redisClient != nil {
		utils.CloseLogged(a.redisClient, "redis", a.logger)
	}
	utils.CloseLogged(a.store, "database", a.logger)
}
