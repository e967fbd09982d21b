package render

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Promoter decides whether a statically fetched page must be rendered in a browser.
type Promoter interface {
	ShouldPromote(page Page, req Request) bool
}

// Promoting fetches with a cheap renderer first and retries with a browser when the
// promoter judges the static HTML incomplete.
type Promoting struct {
	primary  Renderer
	fallback Renderer
	promoter Promoter
	logger   *zap.Logger
}

// NewPromoting builds a Promoting renderer. A nil logger discards logs.
func NewPromoting(primary, fallback Renderer, promoter Promoter, logger *zap.Logger) *Promoting {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Promoting{primary: primary, fallback: fallback, promoter: promoter, logger: logger}
}

// Name implements Renderer.
func (r *Promoting) Name() string {
	return r.primary.Name() + "+" + r.fallback.Name()
}

// Render implements Renderer. A primary failure is not retried: transport errors from the
// static fetch would recur in the browser.
func (r *Promoting) Render(ctx context.Context, req Request) (Page, error) {
	page, err := r.primary.Render(ctx, req)
	if err != nil {
		return Page{}, err
	}
	if !r.promoter.ShouldPromote(page, req) {
		return page, nil
	}
	r.logger.Info("promoting to browser render",
		zap.String("url", req.URL),
		zap.String("renderer", r.fallback.Name()),
	)
	promoted, err := r.fallback.Render(ctx, req)
	if err != nil {
		return Page{}, fmt.Errorf("promoted render: %w", err)
	}
	return promoted, nil
}
