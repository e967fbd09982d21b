// Package detector decides when a statically fetched page needs a browser render.
package detector

import (
	"bytes"
	"strings"

	"github.com/JakeFAU/partscout/internal/dom"
	"github.com/JakeFAU/partscout/internal/render"
)

// Heuristic implements a handful of rule-based promotions.
type Heuristic struct {
	BodyLengthThreshold int
}

// NewHeuristic creates a new detector.
func NewHeuristic(threshold int) *Heuristic {
	if threshold == 0 {
		threshold = 2048
	}
	return &Heuristic{BodyLengthThreshold: threshold}
}

var spaMarkers = [][]byte{
	[]byte("__next"),
	[]byte("id=\"root\""),
	[]byte("id=\"app\""),
	[]byte("data-reactroot"),
}

// ShouldPromote implements render.Promoter. Non-200 pages are never promoted. A page that
// is empty or lacks the request's wait selector always is. Pages that pass the selector check
// are still promoted when short and mostly script, or when they carry an SPA mount point.
func (h *Heuristic) ShouldPromote(page render.Page, req render.Request) bool {
	if page.StatusCode != 200 {
		return false
	}
	body := page.HTML
	if len(body) == 0 {
		return true
	}
	if req.WaitSelector != "" {
		doc, err := dom.ParseBytes(body)
		if err != nil || doc.Count(req.WaitSelector) == 0 {
			return true
		}
	}
	if len(body) < h.BodyLengthThreshold && scriptDensityHigh(body) {
		return true
	}
	for _, marker := range spaMarkers {
		if bytes.Contains(body, marker) {
			return true
		}
	}
	return false
}

func scriptDensityHigh(body []byte) bool {
	lower := strings.ToLower(string(body))
	total := len(lower)
	if total == 0 {
		return false
	}

	const (
		openTag  = "<script"
		closeTag = "</script>"
	)
	scriptCoverage := 0
	searchPos := 0

	for {
		relativeStart := strings.Index(lower[searchPos:], openTag)
		if relativeStart == -1 {
			break
		}
		start := searchPos + relativeStart

		tagClose := strings.IndexByte(lower[start:], '>')
		if tagClose == -1 {
			// Malformed tag; the rest counts as script.
			scriptCoverage += total - start
			break
		}
		contentStart := start + tagClose + 1

		nextSearch := total
		if relativeEnd := strings.Index(lower[contentStart:], closeTag); relativeEnd != -1 {
			nextSearch = contentStart + relativeEnd + len(closeTag)
		}

		scriptCoverage += nextSearch - start
		searchPos = nextSearch
	}

	return scriptCoverage*100/total >= 25
}
