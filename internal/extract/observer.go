package extract

// Batch names the extractor that emitted an Event.
type Batch string

// Extractor batch names.
const (
	BatchInventory Batch = "inventory"
	BatchMarket    Batch = "market"
)

// EventKind classifies a diagnostic Event.
type EventKind string

// Supported event kinds.
const (
	// EventRecordAdded fires once per record kept in the output.
	EventRecordAdded EventKind = "record_added"
	// EventRecordDropped fires when a mandatory field is missing or reading the element failed.
	EventRecordDropped EventKind = "record_dropped"
	// EventRecordSkipped fires when a sold item falls outside the price band.
	EventRecordSkipped EventKind = "record_skipped"
	// EventPriceMissing fires when an item has no price label at all.
	EventPriceMissing EventKind = "price_missing"
	// EventPriceUnparseable fires when a price label holds no usable number.
	EventPriceUnparseable EventKind = "price_unparseable"
	// EventMediaMissing fires when the thumbnail/link pair falls back to empty strings.
	EventMediaMissing EventKind = "media_missing"
	// EventBatchFailed fires when walking the batch itself failed.
	EventBatchFailed EventKind = "batch_failed"
	// EventBatchDone closes every batch and carries the kept/seen counts.
	EventBatchDone EventKind = "batch_done"
)

// Event is a diagnostic emitted while extracting a batch.
type Event struct {
	Batch Batch
	Kind  EventKind
	// Index is the 1-based position of the element in the batch; zero for batch events.
	Index int
	// Label is the record title when one was read.
	Label string
	Price float64
	Err   error
	// Kept and Seen are populated on EventBatchDone.
	Kept int
	Seen int
}

// Observer receives diagnostic events. Implementations must not block.
type Observer interface {
	Observe(evt Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(evt Event)

// Observe calls f(evt).
func (f ObserverFunc) Observe(evt Event) {
	f(evt)
}

// Observers fans an event out to every non-nil member.
type Observers []Observer

// Observe implements Observer.
func (o Observers) Observe(evt Event) {
	for _, obs := range o {
		if obs != nil {
			obs.Observe(evt)
		}
	}
}

func emit(obs Observer, evt Event) {
	if obs == nil {
		return
	}
	obs.Observe(evt)
}
