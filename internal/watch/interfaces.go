package watch

import (
	"context"
	"errors"
	"time"
)

// ErrProductNotFound is returned by stores when an id has no product.
var ErrProductNotFound = errors.New("product not found")

// ProductStore persists tracked products and their check history. Update must
// be atomic per product: a concurrent GetAll never observes a partial write.
type ProductStore interface {
	GetAll(ctx context.Context) ([]Product, error)
	GetByID(ctx context.Context, id string) (Product, error)
	Update(ctx context.Context, id string, upd ProductUpdate) error
	AppendCheckRecord(ctx context.Context, rec CheckRecord) error
}

// NotificationSink receives restock events. Delivery is best-effort; sinks
// must not block the caller on confirmation.
type NotificationSink interface {
	EmitRestock(ctx context.Context, event RestockEvent)
}

// SnapshotStore retains raw page bodies for diagnostics and returns a URI.
type SnapshotStore interface {
	PutSnapshot(ctx context.Context, productID string, fetchedAt time.Time, body []byte) (string, error)
}

// Fetcher retrieves the raw HTML for a product URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (Page, error)
}

// Classifier turns page text plus its source URL into a verdict.
type Classifier interface {
	Classify(text, rawURL string) Classification
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces product IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
