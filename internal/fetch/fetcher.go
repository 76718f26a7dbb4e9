// Package fetch retrieves raw product-page HTML. A Fetcher tries a direct
// HTTP channel first, then each configured mirror channel in priority order,
// strictly sequentially. Channels are never raced in parallel: the cheapest
// and politest channel gets the first shot, and target sites never see
// duplicate concurrent requests for the same check.
package fetch

import (
	"bytes"
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/restockd/restockd/internal/metrics"
	"github.com/restockd/restockd/internal/watch"
)

// Channel is one retrieval strategy for page HTML.
type Channel interface {
	Name() string
	Fetch(ctx context.Context, url string) (watch.Page, error)
}

// DefaultMinBodyBytes rejects payloads too short to be a product page.
const DefaultMinBodyBytes = 256

// Config controls cross-channel fetch behavior.
type Config struct {
	// MinBodyBytes is the sanity floor applied to every channel's payload.
	MinBodyBytes int
}

// Fetcher implements watch.Fetcher over an ordered list of channels.
type Fetcher struct {
	channels []Channel
	minBytes int
	logger   *zap.Logger
}

// New constructs a Fetcher. The channel order is the try order.
func New(channels []Channel, cfg Config, logger *zap.Logger) (*Fetcher, error) {
	if len(channels) == 0 {
		return nil, fmt.Errorf("at least one fetch channel is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	minBytes := cfg.MinBodyBytes
	if minBytes <= 0 {
		minBytes = DefaultMinBodyBytes
	}
	return &Fetcher{
		channels: channels,
		minBytes: minBytes,
		logger:   logger,
	}, nil
}

// Fetch tries each channel in order and returns the first payload that
// passes the minimum-length check. When every channel fails, the returned
// error wraps ErrAllChannelsExhausted together with the last channel's error
// for diagnostics.
func (f *Fetcher) Fetch(ctx context.Context, url string) (watch.Page, error) {
	var lastErr error
	for _, ch := range f.channels {
		if err := ctx.Err(); err != nil {
			return watch.Page{}, fmt.Errorf("fetch canceled: %w", err)
		}

		page, err := ch.Fetch(ctx, url)
		if err != nil {
			lastErr = fmt.Errorf("channel %s: %w", ch.Name(), err)
			metrics.ObserveFetchAttempt(ch.Name(), "error")
			f.logger.Warn("fetch channel failed",
				zap.String("channel", ch.Name()),
				zap.String("url", url),
				zap.Error(err),
			)
			continue
		}

		if len(bytes.TrimSpace(page.Body)) < f.minBytes {
			lastErr = fmt.Errorf("channel %s: %w: %d bytes", ch.Name(), ErrContentInvalid, len(page.Body))
			metrics.ObserveFetchAttempt(ch.Name(), "invalid")
			f.logger.Warn("fetch channel returned short payload",
				zap.String("channel", ch.Name()),
				zap.String("url", url),
				zap.Int("bytes", len(page.Body)),
			)
			continue
		}

		page.Channel = ch.Name()
		metrics.ObserveFetchAttempt(ch.Name(), "success")
		return page, nil
	}
	return watch.Page{}, fmt.Errorf("%w: %w", ErrAllChannelsExhausted, lastErr)
}
