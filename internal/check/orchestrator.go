// Package check drives the per-product check lifecycle: mark checking,
// fetch, classify, persist, and detect restock transitions.
package check

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/restockd/restockd/internal/metrics"
	"github.com/restockd/restockd/internal/watch"
)

// Orchestrator runs one product's check attempt end to end. Fetch and
// classification failures are captured as a terminal error status and never
// escape; only storage write failures propagate to the caller.
type Orchestrator struct {
	store      watch.ProductStore
	fetcher    watch.Fetcher
	classifier watch.Classifier
	sink       watch.NotificationSink
	snapshots  watch.SnapshotStore
	clock      watch.Clock
	logger     *zap.Logger
}

// New constructs an Orchestrator. snapshots may be nil to disable raw-page
// retention.
func New(
	store watch.ProductStore,
	fetcher watch.Fetcher,
	classifier watch.Classifier,
	sink watch.NotificationSink,
	snapshots watch.SnapshotStore,
	clock watch.Clock,
	logger *zap.Logger,
) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		store:      store,
		fetcher:    fetcher,
		classifier: classifier,
		sink:       sink,
		snapshots:  snapshots,
		clock:      clock,
		logger:     logger,
	}
}

// CheckProduct executes one check attempt. Whatever happens, the product
// ends in a terminal status; the checking state is only ever observable
// while the attempt is in flight.
func (o *Orchestrator) CheckProduct(ctx context.Context, product watch.Product) (err error) {
	prev := product.Status
	start := time.Now()

	checking := watch.StatusChecking
	if updErr := o.store.Update(ctx, product.ID, watch.ProductUpdate{Status: &checking}); updErr != nil {
		return fmt.Errorf("mark checking: %w", updErr)
	}

	defer func() {
		if r := recover(); r != nil {
			o.forceErrorStatus(ctx, product.ID, fmt.Sprintf("panic: %v", r))
			err = fmt.Errorf("check %s panicked: %v", product.ID, r)
		}
	}()

	page, fetchErr := o.fetcher.Fetch(ctx, product.URL)
	now := o.clock.Now()

	if fetchErr != nil {
		o.logger.Warn("fetch failed",
			zap.String("product_id", product.ID),
			zap.String("url", product.URL),
			zap.Error(fetchErr),
		)
		outcome := watch.Classification{
			Confidence: watch.ConfidenceLow,
			Evidence:   []string{fetchErr.Error()},
		}
		metrics.ObserveCheck(string(watch.StatusError), time.Since(start))
		return o.persistOutcome(ctx, product, watch.StatusError, outcome, now)
	}

	result := o.classifier.Classify(string(page.Body), product.URL)
	status := result.Status()

	o.putSnapshot(ctx, product.ID, now, page.Body)

	if err := o.persistOutcome(ctx, product, status, result, now); err != nil {
		return err
	}

	o.logger.Debug("check completed",
		zap.String("product_id", product.ID),
		zap.String("status", string(status)),
		zap.String("confidence", string(result.Confidence)),
		zap.String("channel", page.Channel),
	)
	metrics.ObserveCheck(string(status), time.Since(start))

	// Only the out-of-stock to in-stock edge is a restock. A fresh product
	// found in stock on its first check, or an error-to-in-stock flip,
	// never notifies.
	if prev == watch.StatusOutOfStock && status == watch.StatusInStock {
		o.logger.Info("restock detected",
			zap.String("product_id", product.ID),
			zap.String("name", product.Name),
			zap.String("url", product.URL),
		)
		metrics.ObserveRestock()
		o.sink.EmitRestock(ctx, watch.RestockEvent{
			ProductID: product.ID,
			Name:      product.Name,
			Brand:     product.Brand,
			URL:       product.URL,
		})
	}
	return nil
}

// persistOutcome writes the terminal product fields and appends the check
// record. The two writes are reported together so the sweep can move on.
func (o *Orchestrator) persistOutcome(
	ctx context.Context,
	product watch.Product,
	status watch.Status,
	result watch.Classification,
	checkedAt time.Time,
) error {
	evidence := boundEvidence(result.Evidence)

	updErr := o.store.Update(ctx, product.ID, watch.ProductUpdate{
		Status:        &status,
		Confidence:    &result.Confidence,
		Evidence:      evidence,
		LastCheckedAt: &checkedAt,
	})
	if updErr != nil {
		// Last-ditch attempt so the product does not sit at checking.
		o.forceErrorStatus(ctx, product.ID, "storage write failed")
	}

	recErr := o.store.AppendCheckRecord(ctx, watch.CheckRecord{
		ProductID:  product.ID,
		Status:     status,
		Confidence: result.Confidence,
		Evidence:   evidence,
		CheckedAt:  checkedAt,
	})

	if updErr != nil || recErr != nil {
		return fmt.Errorf("persist check for %s: %w", product.ID, errors.Join(updErr, recErr))
	}
	return nil
}

func (o *Orchestrator) putSnapshot(ctx context.Context, productID string, fetchedAt time.Time, body []byte) {
	if o.snapshots == nil {
		return
	}
	if _, err := o.snapshots.PutSnapshot(ctx, productID, fetchedAt, body); err != nil {
		o.logger.Warn("snapshot write failed",
			zap.String("product_id", productID),
			zap.Error(err),
		)
	}
}

func (o *Orchestrator) forceErrorStatus(ctx context.Context, productID, reason string) {
	status := watch.StatusError
	confidence := watch.ConfidenceLow
	now := o.clock.Now()
	if err := o.store.Update(ctx, productID, watch.ProductUpdate{
		Status:        &status,
		Confidence:    &confidence,
		Evidence:      []string{reason},
		LastCheckedAt: &now,
	}); err != nil {
		o.logger.Error("force error status failed",
			zap.String("product_id", productID),
			zap.Error(err),
		)
	}
}

func boundEvidence(evidence []string) []string {
	if evidence == nil {
		return []string{}
	}
	if len(evidence) > watch.MaxEvidencePhrases {
		evidence = evidence[:watch.MaxEvidencePhrases]
	}
	return evidence
}
