package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dnscp/dnscp/internal/audit"
	"github.com/dnscp/dnscp/internal/backupstore"
	"github.com/dnscp/dnscp/internal/config"
	"github.com/dnscp/dnscp/internal/eventbus"
	"github.com/dnscp/dnscp/internal/feed"
	"github.com/dnscp/dnscp/internal/health"
	"github.com/dnscp/dnscp/internal/httpapi"
	"github.com/dnscp/dnscp/internal/httpserver"
	"github.com/dnscp/dnscp/internal/logingest"
	"github.com/dnscp/dnscp/internal/notify"
	"github.com/dnscp/dnscp/internal/platform"
	"github.com/dnscp/dnscp/internal/projection"
	"github.com/dnscp/dnscp/internal/render"
	"github.com/dnscp/dnscp/internal/resolverctl"
	"github.com/dnscp/dnscp/internal/scheduler"
	"github.com/dnscp/dnscp/internal/store"
	"github.com/dnscp/dnscp/internal/telemetry"
	"github.com/dnscp/dnscp/internal/wsgateway"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: loading config: %v\n", err)
		os.Exit(1)
	}

	logger := telemetry.NewLogger(cfg.LogFormat, cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("fatal", "error", err)
		os.Exit(1)
	}
}

// run wires every component in dependency order (store, then everything
// that reads/writes through it, then the surfaces that drive them) and
// tears them down in reverse on shutdown.
func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	tracerProvider, shutdownTracer, err := telemetry.NewTracerProvider(ctx, cfg.OTLPEndpoint, "dnscp")
	if err != nil {
		return fmt.Errorf("initializing tracer: %w", err)
	}
	_ = tracerProvider
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracer(shutdownCtx); err != nil {
			logger.Error("shutting down tracer", "error", err)
		}
	}()

	db, err := platform.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer db.Close()

	if err := platform.RunMigrations(cfg.DatabaseURL, cfg.MigrationsDir); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	logger.Info("migrations applied")

	rdb, err := platform.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("connecting to redis: %w", err)
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Error("closing redis", "error", err)
		}
	}()

	metricsReg := telemetry.NewMetricsRegistry(telemetry.All()...)

	s := store.NewStore(db)

	backups, err := backupstore.NewStore(cfg.BackupRoot, cfg.BackupRetainPerType, cfg.BackupRetainDays)
	if err != nil {
		return fmt.Errorf("opening backup store: %w", err)
	}

	resolver := resolverctl.New(cfg.ResolverControlBin, cfg.ResolverCheckBin)

	notifier := notify.New(cfg.SlackBotToken, cfg.SlackAlertChannel, logger)
	if notifier.IsEnabled() {
		logger.Info("fatal-escalation notifications enabled", "channel", cfg.SlackAlertChannel)
	} else {
		logger.Info("fatal-escalation notifications disabled (SLACK_BOT_TOKEN not set)")
	}

	bus := eventbus.New(s, rdb, logger, eventbus.BatchConfig{
		MaxItems:          cfg.EventMaxBatchItems,
		MaxBytes:          cfg.EventMaxBatchBytes,
		Timeout:           time.Duration(cfg.EventBatchTimeoutMS) * time.Millisecond,
		CompressionMinLen: cfg.EventCompressionMinBytes,
		QueueCapacity:     cfg.EventQueueCapacity,
	})

	auditor := audit.NewWriter(db, logger)
	auditor.Start(ctx)
	defer auditor.Close()

	engine := projection.New(s, backups, resolver, bus, notifier, auditor, logger, projection.Config{
		BindEtc:       cfg.BindEtc,
		ReloadTimeout: 10 * time.Second,
		VerifyTimeout: 10 * time.Second,
		OptionsConfig: render.OptionsConfig{
			CacheSizeMB:      256,
			RecursionACL:     []string{"localhost", "localnets"},
			RateLimitPerSec:  0,
			DNSSECValidation: true,
			StatisticsPort:   8053,
			LogChannelPath:   "/var/log/named/query.log",
		},
	})

	tracker := health.New(s, bus, logger, health.Config{
		ProbeTimeout: time.Duration(cfg.DNSProbeTimeoutMS) * time.Millisecond,
		TotalTimeout: time.Duration(cfg.DNSProbeTotalTimeoutMS) * time.Millisecond,
		WorkerCount:  cfg.HealthWorkerCount,
	})

	pipeline := feed.New(s, engine, logger, time.Duration(cfg.FeedFetchTimeoutS)*time.Second, cfg.RPZZone)

	ingestor := logingest.New(s, bus, logger, logingest.Config{
		Path:          cfg.QueryLogPath,
		FlushInterval: time.Duration(cfg.LogFlushIntervalS) * time.Second,
		FlushBatch:    cfg.LogFlushBatch,
	})
	go func() {
		if err := ingestor.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error("query-log ingestor stopped", "error", err)
		}
	}()

	sched := scheduler.New(logger)
	if err := sched.Register(scheduler.Task{
		Name: "health_probe_tick",
		Spec: fmt.Sprintf("@every %ds", cfg.HealthProbeIntervalS),
		Fn:   tracker.ProbeAll,
	}); err != nil {
		return fmt.Errorf("registering health_probe_tick: %w", err)
	}
	if err := sched.Register(scheduler.Task{
		Name: "feed_refresh_tick",
		Spec: fmt.Sprintf("@every %ds", cfg.FeedRefreshIntervalS),
		Fn:   pipeline.RefreshAll,
	}); err != nil {
		return fmt.Errorf("registering feed_refresh_tick: %w", err)
	}
	if err := sched.Register(scheduler.Task{
		Name: "backup_prune",
		Spec: "@daily",
		Fn: func(context.Context) error {
			_, err := backups.Prune()
			return err
		},
	}); err != nil {
		return fmt.Errorf("registering backup_prune: %w", err)
	}
	sched.Start()
	defer sched.Stop()

	httpSrv := httpserver.NewServer(logger, db, metricsReg, cfg.CORSAllowedOrigins)
	api := httpapi.New(engine, tracker, pipeline, bus, s, logger)
	api.Routes(httpSrv.APIRouter)

	gateway := wsgateway.New(bus, logger, cfg.CORSAllowedOrigins)
	httpSrv.Router.Get("/ws/events", gateway.ServeHTTP)

	server := &http.Server{
		Addr:         cfg.ListenAddr(),
		Handler:      httpSrv,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("dnscpd listening", "addr", cfg.ListenAddr())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
