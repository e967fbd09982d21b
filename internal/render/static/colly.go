// Package static renders server-side pages with a plain HTTP fetch through gocolly.
package static

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/JakeFAU/partscout/internal/render"
)

const defaultTimeout = 20 * time.Second

// Config controls collector behavior.
type Config struct {
	UserAgent     string
	RespectRobots bool
	Timeout       time.Duration
}

// Renderer implements render.Renderer with a Colly collector. It does not run scripts, so
// Request.AcceptConsent, ScrollRounds and WaitSelector are ignored.
type Renderer struct {
	cfg           Config
	baseCollector *colly.Collector
}

var _ render.Renderer = (*Renderer)(nil)

type collectorHooks interface {
	OnRequest(colly.RequestCallback)
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// New builds a Renderer.
func New(cfg Config) *Renderer {
	c := colly.NewCollector(colly.Async(false), colly.AllowURLRevisit())
	c.WithTransport(newHTTPTransport())
	return &Renderer{cfg: cfg, baseCollector: c}
}

// Name implements render.Renderer.
func (r *Renderer) Name() string {
	return "colly"
}

// Render executes a single HTTP GET.
func (r *Renderer) Render(ctx context.Context, req render.Request) (render.Page, error) {
	var (
		page     render.Page
		fetchErr error
	)
	collector := r.buildCollector()
	r.configureCollectorHooks(collector, req, time.Now(), &page, &fetchErr)

	if err := runCollector(ctx, collector, req.URL, &fetchErr); err != nil {
		return render.Page{}, err
	}
	return page, nil
}

func (r *Renderer) buildCollector() *colly.Collector {
	collector := r.baseCollector.Clone()
	if r.cfg.UserAgent != "" {
		collector.UserAgent = r.cfg.UserAgent
	}
	collector.IgnoreRobotsTxt = !r.cfg.RespectRobots
	timeout := r.cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	collector.SetRequestTimeout(timeout)
	return collector
}

func (r *Renderer) configureCollectorHooks(
	hooks collectorHooks,
	req render.Request,
	start time.Time,
	page *render.Page,
	fetchErr *error,
) {
	hooks.OnRequest(func(cr *colly.Request) {
		for key, values := range req.Headers {
			for _, v := range values {
				cr.Headers.Add(key, v)
			}
		}
	})

	hooks.OnResponse(func(resp *colly.Response) {
		headers := http.Header{}
		if resp.Headers != nil {
			headers = resp.Headers.Clone()
		}
		*page = render.Page{
			URL:        resp.Request.URL.String(),
			StatusCode: resp.StatusCode,
			Headers:    headers,
			HTML:       append([]byte(nil), resp.Body...),
			Duration:   time.Since(start),
			Renderer:   r.Name(),
		}
	})

	hooks.OnError(func(_ *colly.Response, err error) {
		*fetchErr = err
	})
}

func runCollector(ctx context.Context, collector *colly.Collector, url string, fetchErr *error) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("colly fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("colly visit failed: %w", err)
		}
		if *fetchErr != nil {
			return fmt.Errorf("colly response failed: %w", *fetchErr)
		}
		return nil
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
