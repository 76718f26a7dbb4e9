package fetch

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/restockd/restockd/internal/watch"
)

// HeadlessConfig controls the browser-rendered fallback channel.
type HeadlessConfig struct {
	UserAgent         string
	NavigationTimeout time.Duration
	MaxParallel       int
}

// HeadlessChannel renders JS-heavy product pages with headless Chrome. It is
// the most expensive channel and belongs last in the try order.
type HeadlessChannel struct {
	cfg         HeadlessConfig
	limiter     chan struct{}
	allocator   context.Context
	allocCancel context.CancelFunc
}

// NewHeadless creates the chromedp-backed channel.
func NewHeadless(cfg HeadlessConfig) (*HeadlessChannel, error) {
	if cfg.MaxParallel < 0 {
		return nil, fmt.Errorf("max parallel must be >= 0")
	}
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = 20 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	var limiter chan struct{}
	if cfg.MaxParallel > 0 {
		limiter = make(chan struct{}, cfg.MaxParallel)
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)

	return &HeadlessChannel{
		cfg:         cfg,
		limiter:     limiter,
		allocator:   allocCtx,
		allocCancel: allocCancel,
	}, nil
}

// Close cancels the allocator context.
func (c *HeadlessChannel) Close() {
	c.allocCancel()
}

// Name identifies the channel in logs, metrics, and page records.
func (c *HeadlessChannel) Name() string { return "headless" }

// Fetch navigates with a headless browser and returns the rendered DOM.
func (c *HeadlessChannel) Fetch(ctx context.Context, rawURL string) (watch.Page, error) {
	if err := c.acquire(ctx); err != nil {
		return watch.Page{}, err
	}
	defer c.release()

	taskCtx, taskCancel := chromedp.NewContext(c.allocator)
	defer taskCancel()

	taskCtx, cancel := context.WithTimeout(taskCtx, c.cfg.NavigationTimeout)
	defer cancel()

	status := newStatusCapture()
	chromedp.ListenTarget(taskCtx, status.captureEvent)

	var (
		html     string
		finalURL string
	)
	actions := []chromedp.Action{
		c.setupAction(),
		chromedp.Navigate(rawURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(500 * time.Millisecond),
		chromedp.Location(&finalURL),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	}

	start := time.Now()
	if err := chromedp.Run(taskCtx, actions...); err != nil {
		return watch.Page{}, classifyErr(fmt.Errorf("chromedp run: %w", err))
	}

	code := status.code()
	if code == 0 {
		code = http.StatusOK
	}
	if finalURL == "" {
		finalURL = rawURL
	}
	if code < 200 || code > 299 {
		return watch.Page{}, &HTTPError{StatusCode: code, Channel: "headless"}
	}

	return watch.Page{
		URL:        rawURL,
		FinalURL:   finalURL,
		StatusCode: code,
		Body:       []byte(html),
		Duration:   time.Since(start),
	}, nil
}

func (c *HeadlessChannel) setupAction() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		if err := emulation.SetUserAgentOverride(c.cfg.UserAgent).Do(ctx); err != nil {
			return fmt.Errorf("set user-agent: %w", err)
		}
		return nil
	})
}

func (c *HeadlessChannel) acquire(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	select {
	case c.limiter <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("headless slot wait canceled: %w", ctx.Err())
	}
}

func (c *HeadlessChannel) release() {
	if c.limiter == nil {
		return
	}
	select {
	case <-c.limiter:
	default:
	}
}

// statusCapture records the status code of the main document response.
type statusCapture struct {
	mu     sync.Mutex
	status int
}

func newStatusCapture() *statusCapture {
	return &statusCapture{}
}

func (s *statusCapture) captureEvent(ev any) {
	resp, ok := ev.(*network.EventResponseReceived)
	if !ok || resp.Type != network.ResourceTypeDocument || resp.Response == nil {
		return
	}
	s.mu.Lock()
	s.status = int(resp.Response.Status)
	s.mu.Unlock()
}

func (s *statusCapture) code() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}
