// Package render turns a target URL into an HTML snapshot that the extractors can read.
package render

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// ErrRendererDisabled is returned by renderers that are not configured in this process.
var ErrRendererDisabled = errors.New("renderer disabled")

// Request describes one page to render.
type Request struct {
	URL string
	// WaitSelector is polled for after the page loads. An empty value skips the wait.
	WaitSelector string
	// AcceptConsent clicks the first button whose label contains "accept".
	AcceptConsent bool
	// ScrollRounds is the number of scroll-to-bottom rounds used to trigger lazy loading.
	ScrollRounds int
	Headers      http.Header
}

// Page is a rendered snapshot.
type Page struct {
	URL        string
	StatusCode int
	Headers    http.Header
	HTML       []byte
	Duration   time.Duration
	Renderer   string
}

// Renderer loads a page and returns its HTML after scripts have run.
type Renderer interface {
	Render(ctx context.Context, req Request) (Page, error)
	Name() string
}
