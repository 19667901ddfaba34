// Package app assembles the watcher daemon from its parts.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"raydium-pool-watch/internal/config"
	"raydium-pool-watch/internal/event"
	"raydium-pool-watch/internal/lifecycle"
	"raydium-pool-watch/internal/observability"
	"raydium-pool-watch/internal/reserves"
	"raydium-pool-watch/internal/scheduler"
	"raydium-pool-watch/internal/solana"
	"raydium-pool-watch/internal/storage"
	"raydium-pool-watch/internal/storage/clickhouse"
	"raydium-pool-watch/internal/storage/memory"
	"raydium-pool-watch/internal/storage/migrations"
	"raydium-pool-watch/internal/storage/postgres"
	"raydium-pool-watch/internal/token"
	"raydium-pool-watch/internal/watch"
)

// App aggregates configuration and shared dependencies for the CLI
// commands.
type App struct {
	Config  config.Config
	Logger  *zap.Logger
	started time.Time
}

// New constructs an application handle.
func New(cfg config.Config, logger *zap.Logger) *App {
	return &App{Config: cfg, Logger: logger.Named("app")}
}

type stores struct {
	pools     storage.PoolStore
	snapshots storage.SnapshotStore
	close     func()
}

// openStores builds the configured storage backend. The ClickHouse DSN,
// when set, redirects snapshots to ClickHouse regardless of backend.
func (a *App) openStores(ctx context.Context) (*stores, error) {
	s := &stores{close: func() {}}

	switch a.Config.StorageBackend {
	case "postgres":
		pool, err := postgres.NewPool(ctx, a.Config.PostgresDSN)
		if err != nil {
			return nil, err
		}
		if a.Config.Migrate {
			if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
				pool.Close()
				return nil, err
			}
		}
		s.pools = postgres.NewPoolStore(pool)
		s.snapshots = postgres.NewSnapshotStore(pool)
		s.close = pool.Close
	default:
		s.pools = memory.NewPoolStore()
		s.snapshots = memory.NewSnapshotStore()
	}

	if a.Config.ClickhouseDSN != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, a.Config.ClickhouseDSN)
		if err != nil {
			s.close()
			return nil, err
		}
		s.snapshots = clickhouse.NewSnapshotStore(conn)
		prevClose := s.close
		s.close = func() {
			conn.Close()
			prevClose()
		}
	}
	return s, nil
}

// Run executes the long-running watcher daemon.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a.started = time.Now()
	cfg := a.Config
	logger := a.Logger

	st, err := a.openStores(ctx)
	if err != nil {
		return err
	}
	defer st.close()

	rpc := solana.NewHTTPClient(cfg.RPCURL)
	resolver := token.NewResolver(rpc, token.DefaultRetryPolicy(), logger)

	channel := event.NewChannelEmitter(cfg.EventBuffer, logger)
	emitter := observability.NewCountingEmitter(event.MultiEmitter{
		event.NewLogEmitter(logger),
		channel,
	}, nil)

	trackerCfg := lifecycle.DefaultConfig()
	trackerCfg.StaleWindow = cfg.StaleWindow
	trackerCfg.ProgressTimeout = cfg.ProgressTimeout
	trackerCfg.MonitoringMaxAge = cfg.MonitoringMaxAge
	trackerCfg.MaxPending = cfg.MaxPending

	tracker := lifecycle.New(lifecycle.Options{
		Config:   trackerCfg,
		Program:  cfg.Program,
		Resolver: resolver,
		Emitter:  emitter,
		Logger:   logger,
	})

	recorder := newRecorder(tracker, st.pools, logger)
	recDone := make(chan struct{})
	go func() {
		defer close(recDone)
		recorder.run(ctx, channel.Events())
	}()

	ws, err := solana.NewWSClient(ctx, cfg.WSURL, nil, logger)
	if err != nil {
		return err
	}
	defer ws.Close()

	manager := watch.New(watch.Options{
		WS:      ws,
		Sink:    tracker,
		Program: cfg.Program,
		Logger:  logger,
		Metrics: observability.DefaultMetrics,
	})
	if err := manager.Start(ctx); err != nil {
		return err
	}
	defer manager.Stop(context.Background())

	reader := reserves.NewReader(rpc, reserves.DefaultRetryPolicy(), logger)
	monitor := reserves.NewMonitor(reserves.MonitorOptions{
		Tracker:   tracker,
		Reader:    reader,
		RPC:       rpc,
		Store:     st.snapshots,
		Logger:    logger,
		Threshold: decimal.NewFromFloat(cfg.ChangeThreshold),
	})

	sched := scheduler.New(ctx, tracker, monitor, logger)
	if err := sched.Register(cfg.PollSpec, cfg.SweepSpec); err != nil {
		return err
	}
	sched.Start()
	defer sched.Stop()

	if cfg.MetricsAddr != "" {
		go a.serveHTTP(cfg.MetricsAddr, tracker)
	}
	go tickUptime(ctx)

	logger.Info("watcher started",
		zap.String("program", cfg.Program),
		zap.String("storage", cfg.StorageBackend))

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-manager.Failed():
		observability.RecordTransportFailure()
		logger.Error("subscription transport failed", zap.Error(err))
		cancel()
		tracker.Wait()
		<-recDone
		return err
	}
	tracker.Wait()
	<-recDone
	return nil
}

// tickUptime advances the uptime counter once a second until shutdown.
func tickUptime(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			observability.TickUptime(time.Second)
		}
	}
}

// statusResponse is the JSON response for the /status endpoint.
type statusResponse struct {
	Status     string `json:"status"`
	Uptime     string `json:"uptime"`
	Tracked    int    `json:"tracked"`
	Monitoring int    `json:"monitoring"`
}

// serveHTTP exposes health, metrics, and status.
func (a *App) serveHTTP(addr string, tracker *lifecycle.Tracker) {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		resp := statusResponse{
			Status:     "running",
			Uptime:     time.Since(a.started).Round(time.Second).String(),
			Tracked:    tracker.Len(),
			Monitoring: len(tracker.MonitoredPools()),
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			a.Logger.Warn("write status", zap.Error(err))
		}
	})

	a.Logger.Info("http server listening", zap.String("addr", addr))
	if err := http.ListenAndServe(addr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
		a.Logger.Error("http server", zap.Error(err))
	}
}
