// Package main wires together the restock watcher service.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/storage"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/restockd/restockd/internal/check"
	"github.com/restockd/restockd/internal/classify"
	"github.com/restockd/restockd/internal/clock/system"
	"github.com/restockd/restockd/internal/config"
	"github.com/restockd/restockd/internal/fetch"
	"github.com/restockd/restockd/internal/id/uuid"
	"github.com/restockd/restockd/internal/logging"
	"github.com/restockd/restockd/internal/metrics"
	"github.com/restockd/restockd/internal/middleware"
	"github.com/restockd/restockd/internal/notify"
	"github.com/restockd/restockd/internal/sched"
	"github.com/restockd/restockd/internal/snapshot"
	storememory "github.com/restockd/restockd/internal/store/memory"
	storepostgres "github.com/restockd/restockd/internal/store/postgres"
	"github.com/restockd/restockd/internal/watch"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
		}
	}()
	zap.ReplaceGlobals(logger)

	metrics.Init()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, cleanup, err := buildStore(ctx, cfg)
	if err != nil {
		logger.Fatal("store init failed", zap.Error(err))
	}
	defer cleanup()

	sink, sinkClose, err := buildSink(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("notification sink init failed", zap.Error(err))
	}
	defer sinkClose()

	snapshots, err := buildSnapshots(ctx, cfg)
	if err != nil {
		logger.Fatal("snapshot store init failed", zap.Error(err))
	}

	channels, channelClose, err := buildChannels(cfg, logger)
	if err != nil {
		logger.Fatal("fetch channel init failed", zap.Error(err))
	}
	defer channelClose()

	fetcher, err := fetch.New(channels, fetch.Config{MinBodyBytes: cfg.Fetch.MinBodyBytes}, logger.Named("fetch"))
	if err != nil {
		logger.Fatal("fetcher init failed", zap.Error(err))
	}

	clock := system.New()
	orchestrator := check.New(
		store,
		fetcher,
		classify.New(),
		sink,
		snapshots,
		clock,
		logger.Named("check"),
	)

	scheduler := sched.New(store, orchestrator, sched.Config{
		Interval:    time.Duration(cfg.Scheduler.IntervalSeconds) * time.Second,
		Pace:        time.Duration(cfg.Scheduler.PaceMs) * time.Millisecond,
		WarmupDelay: time.Duration(cfg.Scheduler.WarmupSeconds) * time.Second,
	}, logger.Named("sched"))

	if err := seedWatchlist(ctx, store, cfg.Watchlist, clock, logger); err != nil {
		logger.Fatal("seed watchlist failed", zap.Error(err))
	}

	router := chi.NewRouter()
	router.Use(chimiddleware.Recoverer)
	router.Use(middleware.Metrics)
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	router.Handle("/metrics", metrics.Handler())
	router.Post("/sweep", func(w http.ResponseWriter, _ *http.Request) {
		scheduler.TriggerSweep()
		w.WriteHeader(http.StatusAccepted)
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("scheduler started",
			zap.Int("interval_seconds", cfg.Scheduler.IntervalSeconds),
			zap.Int("pace_ms", cfg.Scheduler.PaceMs))
		scheduler.Run(ctx)
	}()

	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	logger.Info("shutdown complete")
}

func buildStore(ctx context.Context, cfg config.Config) (watch.ProductStore, func(), error) {
	switch cfg.Store.Backend {
	case "postgres":
		pg, err := storepostgres.NewProductStore(ctx, storepostgres.Config{
			DSN:             cfg.DB.DSN,
			MaxConns:        int32(cfg.DB.MaxConns),
			MinConns:        int32(cfg.DB.MinConns),
			MaxConnLifetime: time.Duration(cfg.DB.MaxConnLifeMins) * time.Minute,
		})
		if err != nil {
			return nil, nil, err
		}
		return pg, pg.Close, nil
	default:
		return storememory.NewProductStore(), func() {}, nil
	}
}

func buildSink(ctx context.Context, cfg config.Config, logger *zap.Logger) (watch.NotificationSink, func(), error) {
	if cfg.PubSub.ProjectID == "" {
		return notify.NewLogSink(logger.Named("notify")), func() {}, nil
	}
	sink, err := notify.NewPubSubSink(ctx, cfg.PubSub.ProjectID, cfg.PubSub.TopicName, logger.Named("notify"))
	if err != nil {
		return nil, nil, err
	}
	closeSink := func() {
		if err := sink.Close(); err != nil {
			logger.Warn("pubsub sink close error", zap.Error(err))
		}
	}
	return sink, closeSink, nil
}

func buildSnapshots(ctx context.Context, cfg config.Config) (watch.SnapshotStore, error) {
	switch cfg.Snapshot.Backend {
	case "", "none":
		return nil, nil
	case "memory":
		return snapshot.NewMemoryStore(), nil
	case "local":
		return snapshot.NewLocalStore(cfg.Snapshot.Local)
	case "gcs":
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("create storage client: %w", err)
		}
		return snapshot.NewGCSStore(client, cfg.Snapshot.GCS)
	default:
		return nil, fmt.Errorf("unknown snapshot backend %q", cfg.Snapshot.Backend)
	}
}

func buildChannels(cfg config.Config, logger *zap.Logger) ([]fetch.Channel, func(), error) {
	direct, err := fetch.NewDirect(fetch.DirectConfig{
		UserAgent: cfg.Fetch.UserAgent,
		Timeout:   time.Duration(cfg.Fetch.TimeoutSeconds) * time.Second,
	})
	if err != nil {
		return nil, nil, err
	}
	channels := []fetch.Channel{direct}

	for _, spec := range cfg.Fetch.Mirrors {
		mirror, err := fetch.NewMirror(spec)
		if err != nil {
			return nil, nil, fmt.Errorf("mirror %q: %w", spec.Name, err)
		}
		channels = append(channels, mirror)
	}

	closeChannels := func() {}
	if cfg.Headless.Enabled {
		headless, err := fetch.NewHeadless(fetch.HeadlessConfig{
			UserAgent:         cfg.Fetch.UserAgent,
			NavigationTimeout: time.Duration(cfg.Headless.NavTimeoutSec) * time.Second,
			MaxParallel:       cfg.Headless.MaxParallel,
		})
		if err != nil {
			// The service still works through the other channels.
			logger.Warn("headless channel init failed", zap.Error(err))
		} else {
			channels = append(channels, headless)
			closeChannels = headless.Close
		}
	}
	return channels, closeChannels, nil
}

func seedWatchlist(ctx context.Context, store watch.ProductStore, items []config.WatchlistItem, clock watch.Clock, logger *zap.Logger) error {
	if len(items) == 0 {
		return nil
	}
	existing, err := store.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("list products: %w", err)
	}
	known := make(map[string]struct{}, len(existing))
	for _, product := range existing {
		known[product.URL] = struct{}{}
	}

	idGen := uuid.New()
	creator, ok := store.(interface {
		Create(ctx context.Context, product watch.Product) error
	})
	if !ok {
		return fmt.Errorf("store does not support seeding")
	}

	for _, item := range items {
		if _, dup := known[item.URL]; dup {
			continue
		}
		id, err := idGen.NewID()
		if err != nil {
			return fmt.Errorf("generate product id: %w", err)
		}
		product := watch.Product{
			ID:        id,
			Name:      item.Name,
			Brand:     item.Brand,
			URL:       item.URL,
			Status:    watch.StatusChecking,
			Evidence:  []string{},
			CreatedAt: clock.Now(),
		}
		if err := creator.Create(ctx, product); err != nil {
			return fmt.Errorf("seed %q: %w", item.Name, err)
		}
		known[item.URL] = struct{}{}
		logger.Info("watchlist product seeded",
			zap.String("product_id", id),
			zap.String("name", item.Name),
			zap.String("url", item.URL))
	}
	return nil
}
