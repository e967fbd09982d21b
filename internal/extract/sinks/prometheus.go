package sinks

import (
	"github.com/JakeFAU/partscout/internal/extract"
	"github.com/JakeFAU/partscout/internal/metrics"
)

// MetricsObserver counts extraction outcomes in partscout_records_total.
type MetricsObserver struct{}

// NewMetricsObserver initialises the collectors and returns the observer.
func NewMetricsObserver() MetricsObserver {
	metrics.Init()
	return MetricsObserver{}
}

// Observe implements extract.Observer. Batch summaries are not counted.
func (MetricsObserver) Observe(evt extract.Event) {
	if evt.Kind == extract.EventBatchDone {
		return
	}
	metrics.ObserveRecord(string(evt.Batch), string(evt.Kind))
}
