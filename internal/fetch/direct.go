package fetch

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/restockd/restockd/internal/watch"
)

// DefaultUserAgent is a realistic desktop browser identity; bot-shaped
// user agents get served interstitials instead of product pages.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

const defaultDirectTimeout = 10 * time.Second

// DirectConfig controls the direct HTTP channel.
type DirectConfig struct {
	UserAgent string
	Timeout   time.Duration
}

// DirectChannel fetches pages with a plain HTTP GET via a Colly collector.
// The base collector holds the shared transport; each fetch works on a clone.
type DirectChannel struct {
	base *colly.Collector
}

// NewDirect constructs the direct channel.
func NewDirect(cfg DirectConfig) (*DirectChannel, error) {
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultDirectTimeout
	}

	base := colly.NewCollector(
		colly.UserAgent(cfg.UserAgent),
	)
	// Products are re-checked every sweep.
	base.AllowURLRevisit = true
	base.WithTransport(&http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          32,
		MaxIdleConnsPerHost:   4,
		IdleConnTimeout:       30 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: cfg.Timeout,
		ForceAttemptHTTP2:     true,
	})
	base.SetRequestTimeout(cfg.Timeout)

	return &DirectChannel{base: base}, nil
}

// Name identifies the channel in logs, metrics, and page records.
func (c *DirectChannel) Name() string { return "direct" }

// Fetch retrieves the URL on a cloned collector.
func (c *DirectChannel) Fetch(ctx context.Context, rawURL string) (watch.Page, error) {
	collector := c.base.Clone()
	resultCh := make(chan directResult, 1)
	var once sync.Once
	send := func(res directResult) {
		once.Do(func() {
			resultCh <- res
		})
	}

	start := time.Now()

	collector.OnResponse(func(r *colly.Response) {
		page := watch.Page{
			URL:        rawURL,
			FinalURL:   r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Body:       append([]byte{}, r.Body...),
		}
		send(directResult{page: page})
	})

	collector.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode != 0 {
			send(directResult{err: &HTTPError{StatusCode: r.StatusCode, Channel: "direct"}})
			return
		}
		if err == nil {
			err = errors.New("unknown colly error")
		}
		send(directResult{err: classifyErr(err)})
	})

	if err := collector.Visit(rawURL); err != nil {
		// Visit is synchronous, so a non-2xx response has already gone
		// through OnError and queued a typed error. Prefer that over
		// colly's raw status-text error.
		select {
		case res := <-resultCh:
			if res.err != nil {
				return watch.Page{}, res.err
			}
		default:
		}
		return watch.Page{}, classifyErr(err)
	}
	collector.Wait()

	select {
	case res := <-resultCh:
		if err := ctx.Err(); err != nil {
			return watch.Page{}, err
		}
		res.page.Duration = time.Since(start)
		return res.page, res.err
	default:
		return watch.Page{}, errors.New("direct fetch produced no result")
	}
}

type directResult struct {
	page watch.Page
	err  error
}
