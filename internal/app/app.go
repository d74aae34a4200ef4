package app

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/yungbote/neurobridge-delivery/internal/clients/openai"
	"github.com/yungbote/neurobridge-delivery/internal/clients/redis"
	"github.com/yungbote/neurobridge-delivery/internal/data/db"
	"github.com/yungbote/neurobridge-delivery/internal/data/repos"
	"github.com/yungbote/neurobridge-delivery/internal/delivery/comprehension"
	"github.com/yungbote/neurobridge-delivery/internal/delivery/tuning"
	httpserver "github.com/yungbote/neurobridge-delivery/internal/http"
	httpH "github.com/yungbote/neurobridge-delivery/internal/http/handlers"
	"github.com/yungbote/neurobridge-delivery/internal/observability"
	"github.com/yungbote/neurobridge-delivery/internal/pkg/logger"
	"github.com/yungbote/neurobridge-delivery/internal/platform/learnerlock"
	"github.com/yungbote/neurobridge-delivery/internal/services"
	"github.com/yungbote/neurobridge-delivery/internal/temporalx"
	"github.com/yungbote/neurobridge-delivery/internal/temporalx/temporalworker"
)

type App struct {
	Log      *logger.Logger
	Cfg      Config
	DB       *db.Service
	Repos    repos.Set
	Metrics  *observability.Metrics
	Delivery services.DeliveryService

	redis        *goredis.Client
	shutdownOtel func(context.Context) error
}

// Open connects logging, tracing and the database only.
func Open(ctx context.Context, cfg Config) (*App, error) {
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	a := &App{Log: log, Cfg: cfg}
	a.shutdownOtel = observability.InitOTel(ctx, log, cfg.Otel())

	dbs, err := db.Open(log, cfg.Database())
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("init database: %w", err)
	}
	a.DB = dbs
	a.Repos = repos.NewSet(dbs.DB(), log)
	if cfg.MetricsEnabled {
		a.Metrics = observability.NewMetrics()
	}
	return a, nil
}

// New opens the App and wires the delivery service.
func New(ctx context.Context, cfg Config) (*App, error) {
	a, err := Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if cfg.AutoMigrate {
		if err := a.DB.AutoMigrateAll(); err != nil {
			a.Close()
			return nil, fmt.Errorf("automigrate: %w", err)
		}
	}
	if err := a.wireDelivery(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) wireDelivery(ctx context.Context) error {
	a.Log.Info("Wiring delivery service...")
	tcfg, err := tuning.Load(a.Cfg.TuningFile)
	if err != nil {
		return fmt.Errorf("load tuning: %w", err)
	}

	var locker learnerlock.Locker = learnerlock.NewMemory()
	if a.Cfg.UseRedisLock() {
		rdb, err := redis.NewClient(ctx, a.Log, redis.Config{
			Addr:     a.Cfg.RedisAddr,
			Password: a.Cfg.RedisPassword,
			DB:       a.Cfg.RedisDB,
		})
		if err != nil {
			return fmt.Errorf("init redis: %w", err)
		}
		a.redis = rdb
		rl, err := learnerlock.NewRedis(a.Log, rdb, a.Cfg.Lock())
		if err != nil {
			return fmt.Errorf("init learner lock: %w", err)
		}
		locker = rl
	}

	evaluator := comprehension.Unconfigured()
	if a.Cfg.OpenAIAPIKey != "" {
		ai, err := openai.NewClient(a.Log, a.Cfg.OpenAI())
		if err != nil {
			return fmt.Errorf("init openai client: %w", err)
		}
		if evaluator, err = comprehension.NewLLMEvaluator(a.Log, ai); err != nil {
			return fmt.Errorf("init evaluator: %w", err)
		}
	} else {
		a.Log.Warn("OPENAI_API_KEY not set; answer grading unavailable")
	}

	svc, err := services.NewDeliveryService(a.Log, services.DeliveryDeps{
		Repos:     a.Repos,
		Evaluator: evaluator,
		Locker:    locker,
		Tuning:    tcfg,
		Metrics:   a.Metrics,
	})
	if err != nil {
		return fmt.Errorf("init delivery service: %w", err)
	}
	a.Delivery = svc
	return nil
}

func (a *App) router() httpserver.RouterConfig {
	return httpserver.RouterConfig{
		Log:             a.Log,
		ServiceName:     ServiceName,
		CORSOrigins:     a.Cfg.CORSOrigins,
		Metrics:         a.Metrics,
		DeliveryHandler: httpH.NewDeliveryHandler(a.Log, a.Delivery),
		HealthHandler:   httpH.NewHealthHandler(a.ping),
	}
}

func (a *App) ping(ctx context.Context) error {
	sqlDB, err := a.DB.DB().DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Serve runs the HTTP API and, unless Temporal owns the sweep, the in-process
// expiry loop. It returns when ctx ends or either side fails.
func (a *App) Serve(ctx context.Context) error {
	srv := httpserver.NewServer(a.Cfg.HTTPAddr, a.router())
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.Log.Info("HTTP listening", "addr", a.Cfg.HTTPAddr)
		return srv.Run(gctx)
	})
	if a.Cfg.Temporal().Enabled() {
		a.Log.Info("Retention sweep delegated to the Temporal worker")
	} else {
		sweeper := services.NewRetentionSweeper(a.Log, a.Delivery, a.Cfg.SweepInterval)
		g.Go(func() error { return sweeper.Run(gctx) })
	}
	return g.Wait()
}

// Worker runs the Temporal worker and cron registration, falling back to the
// in-process sweep loop when Temporal is not configured.
func (a *App) Worker(ctx context.Context) error {
	tcfg := a.Cfg.Temporal()
	if !tcfg.Enabled() {
		return services.NewRetentionSweeper(a.Log, a.Delivery, a.Cfg.SweepInterval).Run(ctx)
	}
	tc, err := temporalx.NewClient(ctx, a.Log, tcfg)
	if err != nil {
		return fmt.Errorf("init temporal client: %w", err)
	}
	defer tc.Close()
	runner, err := temporalworker.NewRunner(a.Log, tc, tcfg, a.Delivery)
	if err != nil {
		return err
	}
	return runner.Run(ctx)
}

// SweepOnce expires every check past its grace window as of now.
func (a *App) SweepOnce(ctx context.Context) (int64, error) {
	return a.Delivery.ExpireOverdueChecks(ctx, time.Time{})
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil && a.Log != nil {
			a.Log.Warn("database close failed", "error", err)
		}
	}
	if a.shutdownOtel != nil {
		_ = a.shutdownOtel(context.Background())
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
