package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/restockd/restockd/internal/watch"
)

const (
	defaultMirrorTimeout = 18 * time.Second
	maxMirrorBodyBytes   = 4 << 20
)

// MirrorSpec describes one externally configured fallback channel. The
// endpoint is a template whose single %s verb receives the query-escaped
// target URL. Wrapped endpoints return a JSON envelope whose "contents"
// field carries the HTML.
type MirrorSpec struct {
	Name           string `mapstructure:"name"`
	Endpoint       string `mapstructure:"endpoint"`
	Wrapped        bool   `mapstructure:"wrapped"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// MirrorChannel fetches pages through a read-through mirror or proxy
// endpoint. Mirrors add overhead, so their timeout defaults higher than the
// direct channel's.
type MirrorChannel struct {
	spec    MirrorSpec
	client  *http.Client
	timeout time.Duration
}

// NewMirror constructs a channel from its descriptor.
func NewMirror(spec MirrorSpec) (*MirrorChannel, error) {
	if spec.Name == "" {
		return nil, fmt.Errorf("mirror channel name is required")
	}
	if spec.Endpoint == "" {
		return nil, fmt.Errorf("mirror channel %s: endpoint is required", spec.Name)
	}
	timeout := defaultMirrorTimeout
	if spec.TimeoutSeconds > 0 {
		timeout = time.Duration(spec.TimeoutSeconds) * time.Second
	}
	return &MirrorChannel{
		spec: spec,
		client: &http.Client{
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConnsPerHost: 2,
				IdleConnTimeout:     30 * time.Second,
			},
		},
		timeout: timeout,
	}, nil
}

// Name identifies the channel in logs, metrics, and page records.
func (c *MirrorChannel) Name() string { return c.spec.Name }

// Fetch requests the target through the mirror endpoint, bounded by the
// channel's own timeout. The timeout aborts only this attempt; the caller
// falls through to the next channel.
func (c *MirrorChannel) Fetch(ctx context.Context, rawURL string) (watch.Page, error) {
	endpoint := fmt.Sprintf(c.spec.Endpoint, url.QueryEscape(rawURL))

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return watch.Page{}, fmt.Errorf("build mirror request: %w", err)
	}
	req.Header.Set("User-Agent", DefaultUserAgent)

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return watch.Page{}, classifyErr(err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return watch.Page{}, &HTTPError{StatusCode: resp.StatusCode, Channel: c.spec.Name}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxMirrorBodyBytes))
	if err != nil {
		return watch.Page{}, classifyErr(fmt.Errorf("read mirror body: %w", err))
	}

	if c.spec.Wrapped {
		body, err = unwrap(body)
		if err != nil {
			return watch.Page{}, err
		}
	}

	return watch.Page{
		URL:        rawURL,
		FinalURL:   rawURL,
		StatusCode: resp.StatusCode,
		Body:       body,
		Duration:   time.Since(start),
	}, nil
}

func unwrap(body []byte) ([]byte, error) {
	var envelope struct {
		Contents string `json:"contents"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("%w: unwrap envelope: %v", ErrContentInvalid, err)
	}
	if envelope.Contents == "" {
		return nil, fmt.Errorf("%w: envelope has no contents", ErrContentInvalid)
	}
	return []byte(envelope.Contents), nil
}
