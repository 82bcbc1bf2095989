package app

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/yungbote/studygen/internal/data/db"
	"github.com/yungbote/studygen/internal/data/repos/jobs"
	apphttp "github.com/yungbote/studygen/internal/http"
	httpH "github.com/yungbote/studygen/internal/http/handlers"
	"github.com/yungbote/studygen/internal/observability"
	"github.com/yungbote/studygen/internal/platform/logger"
	"github.com/yungbote/studygen/internal/realtime"
	"github.com/yungbote/studygen/internal/realtime/bus"
	"github.com/yungbote/studygen/internal/services"
)

// App is the development API server: storage, the job simulator, the push
// hub and the HTTP surface.
type App struct {
	Log       *logger.Logger
	Cfg       Config
	DB        *db.Service
	Hub       *realtime.SSEHub
	Bus       bus.Bus
	Metrics   *observability.Metrics
	Jobs      services.JobService
	Simulator *services.Simulator
	Server    *apphttp.Server

	otelShutdown func(context.Context) error
}

func New(ctx context.Context, log *logger.Logger, cfg Config) (*App, error) {
	otelShutdown := observability.InitOTel(ctx, log, observability.OtelConfig{
		ServiceName: "studygen",
		Environment: cfg.Environment,
	})

	dbs, err := db.NewService(log, db.Config{DatabaseURL: cfg.DatabaseURL, SQLitePath: cfg.SQLitePath})
	if err != nil {
		return nil, fmt.Errorf("init db: %w", err)
	}
	if err := dbs.AutoMigrate(); err != nil {
		_ = dbs.Close()
		return nil, fmt.Errorf("automigrate: %w", err)
	}

	metrics := observability.NewMetrics()
	hub := realtime.NewSSEHub(log).WithConnectedGauge(metrics.StreamGauge())

	var (
		emitter services.SSEEmitter = &services.HubEmitter{Hub: hub}
		sseBus  bus.Bus
	)
	if cfg.RedisAddr != "" {
		sseBus, err = bus.NewRedisBus(log, bus.RedisConfig{Addr: cfg.RedisAddr, Channel: cfg.RedisChannel})
		if err != nil {
			_ = dbs.Close()
			return nil, fmt.Errorf("init redis bus: %w", err)
		}
		emitter = &services.RedisEmitter{Bus: sseBus, Log: log}
		log.Info("Fanning out push events through redis", "addr", cfg.RedisAddr, "channel", cfg.RedisChannel)
	}

	repo := jobs.NewJobRepo(dbs.DB(), log)
	notifier := services.NewJobNotifier(emitter)
	jobService := services.NewJobService(log, repo, notifier, metrics)
	simulator := services.NewSimulator(log, repo, notifier, metrics, cfg.SimStepDelay)

	server := apphttp.NewServer(apphttp.RouterConfig{
		JobHandler:      httpH.NewJobHandler(jobService),
		RealtimeHandler: httpH.NewRealtimeHandler(log, hub),
		HealthHandler:   httpH.NewHealthHandler(dbs),
		Log:             log,
		Metrics:         metrics,
		CORSOrigins:     cfg.CORSOrigins,
		Tracing:         observability.TracingEnabled(),
		ServiceName:     "studygen",
	})

	return &App{
		Log:          log,
		Cfg:          cfg,
		DB:           dbs,
		Hub:          hub,
		Bus:          sseBus,
		Metrics:      metrics,
		Jobs:         jobService,
		Simulator:    simulator,
		Server:       server,
		otelShutdown: otelShutdown,
	}, nil
}

// Run serves HTTP and runs the simulator until ctx is done or either fails.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	if a.Bus != nil {
		if err := a.Bus.StartForwarder(gctx, a.Hub.Broadcast); err != nil {
			return fmt.Errorf("start redis forwarder: %w", err)
		}
	}

	g.Go(func() error { return a.Server.Run(gctx, a.Cfg.Addr()) })
	g.Go(func() error { return a.Simulator.Run(gctx) })

	return g.Wait()
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.Bus != nil {
		if err := a.Bus.Close(); err != nil {
			a.Log.Warn("Closing redis bus failed", "error", err)
		}
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			a.Log.Warn("Closing database failed", "error", err)
		}
	}
	if a.otelShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = a.otelShutdown(ctx)
	}
	a.Log.Sync()
}
