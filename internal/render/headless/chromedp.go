// Package headless renders pages in headless Chrome via chromedp.
package headless

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/JakeFAU/partscout/internal/render"
)

const (
	defaultNavigationTimeout = 90 * time.Second
	defaultWaitTimeout       = 20 * time.Second
	defaultScrollPause       = 3 * time.Second
	defaultSettleDelay       = 3 * time.Second
	maxScrollsPerRound       = 3
)

// consentScript clicks the first button whose label mentions "accept".
const consentScript = `(() => {
  for (const b of document.querySelectorAll("button")) {
    if ((b.innerText || "").toLowerCase().includes("accept")) { b.click(); return true; }
  }
  return false;
})()`

const scrollScript = `(() => { window.scrollTo(0, document.body.scrollHeight); return document.body.scrollHeight; })()`

const heightScript = `document.body.scrollHeight`

// Config controls the behavior of the headless renderer.
type Config struct {
	MaxParallel       int
	UserAgent         string
	NavigationTimeout time.Duration
	WaitTimeout       time.Duration
	ScrollPause       time.Duration
	SettleDelay       time.Duration
	// Visible runs Chrome with a window, for debugging selectors.
	Visible bool
}

// Renderer implements render.Renderer using chromedp and headless Chrome.
type Renderer struct {
	cfg         Config
	logger      *zap.Logger
	limiter     chan struct{}
	allocator   context.Context
	allocCancel context.CancelFunc
	closed      atomic.Bool
}

var _ render.Renderer = (*Renderer)(nil)

// New creates a headless renderer. Chrome is started lazily on the first render.
func New(cfg Config, logger *zap.Logger) (*Renderer, error) {
	if cfg.MaxParallel < 0 {
		return nil, fmt.Errorf("max parallel must be >= 0")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	var limiter chan struct{}
	if cfg.MaxParallel > 0 {
		limiter = make(chan struct{}, cfg.MaxParallel)
	}

	headless := chromedp.Flag("headless", "new")
	if cfg.Visible {
		headless = chromedp.Flag("headless", false)
	}
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		headless,
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("start-maximized", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("enable-automation", false),
	)
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)

	return &Renderer{
		cfg:         cfg,
		logger:      logger,
		limiter:     limiter,
		allocator:   allocCtx,
		allocCancel: allocCancel,
	}, nil
}

// Name implements render.Renderer.
func (r *Renderer) Name() string {
	return "chromedp"
}

// Close shuts down the browser. Later renders fail with render.ErrRendererDisabled.
func (r *Renderer) Close() {
	r.closed.Store(true)
	r.allocCancel()
}

// Render opens req.URL in a fresh tab, runs the consent and scroll steps, and returns the DOM.
func (r *Renderer) Render(ctx context.Context, req render.Request) (render.Page, error) {
	if r.closed.Load() {
		return render.Page{}, fmt.Errorf("render %s: %w", req.URL, render.ErrRendererDisabled)
	}
	if err := r.acquire(ctx); err != nil {
		return render.Page{}, err
	}
	defer r.release()

	tabCtx, tabCancel := chromedp.NewContext(r.allocator)
	defer tabCancel()
	// Tie the tab to the caller's context without letting the caller's deadline close the browser.
	stop := context.AfterFunc(ctx, tabCancel)
	defer stop()

	timeoutCtx, cancel := context.WithTimeout(tabCtx, r.navTimeout())
	defer cancel()

	meta := newResponseMeta()
	chromedp.ListenTarget(timeoutCtx, meta.captureEvent)

	start := time.Now()
	html, finalURL, err := r.run(timeoutCtx, req)
	if err != nil {
		if ctx.Err() != nil {
			return render.Page{}, fmt.Errorf("render %s: %w", req.URL, ctx.Err())
		}
		return render.Page{}, err
	}

	status, headers, responseURL := meta.snapshotWithFallbacks(req.URL, finalURL)
	if headers == nil {
		headers = http.Header{}
	}
	return render.Page{
		URL:        responseURL,
		StatusCode: status,
		Headers:    headers,
		HTML:       []byte(html),
		Duration:   time.Since(start),
		Renderer:   r.Name(),
	}, nil
}

func (r *Renderer) run(ctx context.Context, req render.Request) (string, string, error) {
	if err := chromedp.Run(ctx,
		r.networkSetupAction(req.Headers),
		chromedp.Navigate(req.URL),
		chromedp.WaitReady("body", chromedp.ByQuery),
	); err != nil {
		return "", "", fmt.Errorf("chromedp navigate: %w", err)
	}

	if req.AcceptConsent {
		r.acceptConsent(ctx, req.URL)
	}
	for round := 0; round < req.ScrollRounds; round++ {
		r.scrollToLoad(ctx)
	}
	if req.WaitSelector != "" {
		r.waitFor(ctx, req.URL, req.WaitSelector)
	}

	var (
		html     string
		finalURL string
	)
	if err := chromedp.Run(ctx,
		chromedp.Sleep(r.settleDelay()),
		chromedp.Location(&finalURL),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	); err != nil {
		return "", "", fmt.Errorf("chromedp snapshot: %w", err)
	}
	return html, finalURL, nil
}

// acceptConsent is best effort; a page without a banner is not an error.
func (r *Renderer) acceptConsent(ctx context.Context, url string) {
	var clicked bool
	if err := chromedp.Run(ctx, chromedp.Evaluate(consentScript, &clicked)); err != nil {
		r.logger.Debug("consent click failed", zap.String("url", url), zap.Error(err))
		return
	}
	if clicked {
		r.logger.Debug("accepted consent banner", zap.String("url", url))
		_ = chromedp.Run(ctx, chromedp.Sleep(r.settleDelay()))
	}
}

// scrollToLoad scrolls to the bottom until the page height stops growing.
func (r *Renderer) scrollToLoad(ctx context.Context) {
	for i := 0; i < maxScrollsPerRound; i++ {
		var before, after int64
		err := chromedp.Run(ctx,
			chromedp.Evaluate(scrollScript, &before),
			chromedp.Sleep(r.scrollPause()),
			chromedp.Evaluate(heightScript, &after),
		)
		if err != nil {
			r.logger.Debug("scroll failed", zap.Error(err))
			if ctx.Err() != nil {
				return
			}
			continue
		}
		if after == before {
			return
		}
	}
}

// waitFor polls for selector. A timeout is logged and the snapshot is taken anyway, so an
// empty result page yields an empty record list rather than an error.
func (r *Renderer) waitFor(ctx context.Context, url, selector string) {
	waitCtx, cancel := context.WithTimeout(ctx, r.waitTimeout())
	defer cancel()
	err := chromedp.Run(waitCtx, chromedp.WaitReady(selector, chromedp.ByQuery))
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		r.logger.Debug("wait for selector failed", zap.String("url", url), zap.String("selector", selector), zap.Error(err))
		return
	}
	if err != nil {
		r.logger.Info("selector not found before timeout",
			zap.String("url", url),
			zap.String("selector", selector),
			zap.Duration("timeout", r.waitTimeout()),
		)
	}
}

func (r *Renderer) networkSetupAction(headers http.Header) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		if r.cfg.UserAgent != "" {
			if err := emulation.SetUserAgentOverride(r.cfg.UserAgent).Do(ctx); err != nil {
				return fmt.Errorf("set user-agent: %w", err)
			}
		}
		if len(headers) > 0 {
			if err := network.SetExtraHTTPHeaders(toNetworkHeaders(headers)).Do(ctx); err != nil {
				return fmt.Errorf("set extra headers: %w", err)
			}
		}
		return nil
	})
}

func (r *Renderer) acquire(ctx context.Context) error {
	if r.limiter == nil {
		return nil
	}
	select {
	case r.limiter <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("headless slot wait canceled: %w", ctx.Err())
	}
}

func (r *Renderer) release() {
	if r.limiter == nil {
		return
	}
	select {
	case <-r.limiter:
	default:
	}
}

func (r *Renderer) navTimeout() time.Duration {
	return orDuration(r.cfg.NavigationTimeout, defaultNavigationTimeout)
}

func (r *Renderer) waitTimeout() time.Duration {
	return orDuration(r.cfg.WaitTimeout, defaultWaitTimeout)
}

func (r *Renderer) scrollPause() time.Duration {
	return orDuration(r.cfg.ScrollPause, defaultScrollPause)
}

func (r *Renderer) settleDelay() time.Duration {
	return orDuration(r.cfg.SettleDelay, defaultSettleDelay)
}

func orDuration(value, def time.Duration) time.Duration {
	if value > 0 {
		return value
	}
	return def
}

type responseMeta struct {
	mu      sync.RWMutex
	status  int
	headers http.Header
	url     string
}

func newResponseMeta() *responseMeta {
	return &responseMeta{headers: http.Header{}}
}

func (m *responseMeta) capture(event *network.EventResponseReceived) {
	if event.Type != network.ResourceTypeDocument || event.Response == nil {
		return
	}
	headers := http.Header{}
	for key, value := range event.Response.Headers {
		switch v := value.(type) {
		case string:
			headers.Add(key, v)
		case []any:
			for _, entry := range v {
				headers.Add(key, fmt.Sprint(entry))
			}
		default:
			headers.Add(key, fmt.Sprint(v))
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	// Keep the first document response; later ones are iframes or redirects already followed.
	if m.status != 0 {
		return
	}
	m.status = int(event.Response.Status)
	m.headers = headers
	m.url = event.Response.URL
}

func (m *responseMeta) captureEvent(ev any) {
	if resp, ok := ev.(*network.EventResponseReceived); ok {
		m.capture(resp)
	}
}

func (m *responseMeta) snapshotWithFallbacks(requestURL, finalURL string) (int, http.Header, string) {
	m.mu.RLock()
	status, headers, url := m.status, m.headers.Clone(), m.url
	m.mu.RUnlock()

	switch {
	case finalURL != "":
		url = finalURL
	case url == "":
		url = requestURL
	}
	if status == 0 {
		status = http.StatusOK
	}
	return status, headers, url
}

func toNetworkHeaders(h http.Header) network.Headers {
	headers := network.Headers{}
	for key, values := range h {
		switch len(values) {
		case 0:
		case 1:
			headers[key] = values[0]
		default:
			headers[key] = append([]string(nil), values...)
		}
	}
	return headers
}
