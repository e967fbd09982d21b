package render

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/partscout/internal/metrics"
)

// Waiter blocks until the target URL may be fetched.
type Waiter interface {
	Wait(ctx context.Context, url string) error
}

// Instrumented wraps a Renderer with politeness waits, metrics and logging.
type Instrumented struct {
	next    Renderer
	limiter Waiter
	logger  *zap.Logger
}

// NewInstrumented decorates next. A nil limiter disables waits; a nil logger discards logs.
func NewInstrumented(next Renderer, limiter Waiter, logger *zap.Logger) *Instrumented {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Instrumented{next: next, limiter: limiter, logger: logger}
}

// Name implements Renderer.
func (r *Instrumented) Name() string {
	return r.next.Name()
}

// Render implements Renderer.
func (r *Instrumented) Render(ctx context.Context, req Request) (Page, error) {
	if r.limiter != nil {
		if err := r.limiter.Wait(ctx, req.URL); err != nil {
			return Page{}, fmt.Errorf("wait for %s: %w", metrics.SanitizeSite(req.URL), err)
		}
	}

	start := time.Now()
	page, err := r.next.Render(ctx, req)
	elapsed := time.Since(start)
	if err != nil {
		metrics.ObserveRender(r.next.Name(), "error", elapsed)
		r.logger.Warn("render failed",
			zap.String("renderer", r.next.Name()),
			zap.String("url", req.URL),
			zap.Duration("dur", elapsed),
			zap.Error(err),
		)
		return Page{}, err
	}
	if page.Renderer == "" {
		page.Renderer = r.next.Name()
	}
	metrics.ObserveRender(r.next.Name(), "ok", elapsed)
	r.logger.Debug("rendered page",
		zap.String("renderer", page.Renderer),
		zap.String("url", page.URL),
		zap.Int("status", page.StatusCode),
		zap.Int("bytes", len(page.HTML)),
		zap.Duration("dur", elapsed),
	)
	return page, nil
}
