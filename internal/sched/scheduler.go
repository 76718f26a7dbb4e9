// Package sched runs periodic and on-demand sweeps over all tracked
// products. At most one sweep is active at any time; checks inside a sweep
// run strictly sequentially with a pacing delay so third-party sites never
// see a request burst.
package sched

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/restockd/restockd/internal/metrics"
	"github.com/restockd/restockd/internal/watch"
)

// Checker runs one product's check lifecycle.
type Checker interface {
	CheckProduct(ctx context.Context, product watch.Product) error
}

// Config controls sweep cadence and pacing.
type Config struct {
	// Interval between periodic sweeps.
	Interval time.Duration
	// Pace is the delay between consecutive product checks within a sweep.
	Pace time.Duration
	// WarmupDelay schedules the first sweep shortly after start, decoupled
	// from the first interval tick.
	WarmupDelay time.Duration
}

const (
	defaultInterval = 10 * time.Minute
	defaultPace     = 2500 * time.Millisecond
	defaultWarmup   = 5 * time.Second
)

// pauser abstracts how the scheduler waits between checks.
type pauser interface {
	Pause(ctx context.Context, delay time.Duration)
}

type timerPauser struct{}

func (timerPauser) Pause(ctx context.Context, delay time.Duration) {
	if delay <= 0 {
		return
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// Scheduler owns the sweep-in-progress guard. The guard is the only shared
// mutable state in the engine and is always released on exit, error paths
// included.
type Scheduler struct {
	store    watch.ProductStore
	checker  Checker
	cfg      Config
	logger   *zap.Logger
	pause    pauser
	sweeping atomic.Bool
	trigger  chan struct{}
}

// New constructs a Scheduler with defaults applied.
func New(store watch.ProductStore, checker Checker, cfg Config, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	if cfg.Pace < 0 {
		cfg.Pace = defaultPace
	}
	if cfg.WarmupDelay <= 0 {
		cfg.WarmupDelay = defaultWarmup
	}
	return &Scheduler{
		store:   store,
		checker: checker,
		cfg:     cfg,
		logger:  logger,
		pause:   timerPauser{},
		trigger: make(chan struct{}, 1),
	}
}

// Run blocks, sweeping on the warm-up timer, the interval ticker, and
// on-demand triggers, until the context finishes.
func (s *Scheduler) Run(ctx context.Context) {
	warmup := time.NewTimer(s.cfg.WarmupDelay)
	defer warmup.Stop()
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-warmup.C:
			s.Sweep(ctx)
		case <-ticker.C:
			s.Sweep(ctx)
		case <-s.trigger:
			s.Sweep(ctx)
		}
	}
}

// TriggerSweep requests an on-demand sweep without blocking. Requests
// arriving while a trigger is already pending are dropped.
func (s *Scheduler) TriggerSweep() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

// Sweeping reports whether a sweep currently holds the guard.
func (s *Scheduler) Sweeping() bool {
	return s.sweeping.Load()
}

// Sweep checks every tracked product once, sequentially, in stored order.
// It returns false when another sweep already holds the guard; that request
// is dropped, not queued. Per-product failures are logged and counted but
// never abort the rest of the sweep.
func (s *Scheduler) Sweep(ctx context.Context) bool {
	if !s.sweeping.CompareAndSwap(false, true) {
		s.logger.Debug("sweep already in progress, dropping request")
		metrics.ObserveSweepSkipped()
		return false
	}
	defer s.sweeping.Store(false)

	start := time.Now()
	products, err := s.store.GetAll(ctx)
	if err != nil {
		s.logger.Error("sweep aborted: list products failed", zap.Error(err))
		return true
	}

	var failed int
	for i, product := range products {
		if ctx.Err() != nil {
			s.logger.Info("sweep canceled", zap.Int("checked", i))
			return true
		}
		if err := s.checkOne(ctx, product); err != nil {
			failed++
			s.logger.Warn("product check failed",
				zap.String("product_id", product.ID),
				zap.String("url", product.URL),
				zap.Error(err),
			)
		}
		if i < len(products)-1 {
			s.pause.Pause(ctx, s.cfg.Pace)
		}
	}

	metrics.ObserveSweep(time.Since(start))
	s.logger.Info("sweep completed",
		zap.Int("products", len(products)),
		zap.Int("failed", failed),
		zap.Duration("took", time.Since(start)),
	)
	return true
}

// CheckNow runs a single on-demand check outside the sweep guard. A race
// with a running sweep on the same product resolves last-write-wins; status
// fields are idempotently recomputed either way.
func (s *Scheduler) CheckNow(ctx context.Context, productID string) error {
	product, err := s.store.GetByID(ctx, productID)
	if err != nil {
		return fmt.Errorf("load product %s: %w", productID, err)
	}
	return s.checkOne(ctx, product)
}

// checkOne shields the sweep loop from a panicking checker so the guard and
// the remaining products survive.
func (s *Scheduler) checkOne(ctx context.Context, product watch.Product) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("check %s panicked: %v", product.ID, r)
		}
	}()
	return s.checker.CheckProduct(ctx, product)
}
