package scout

import (
	"context"
	"io"
	"time"
)

// BlobStore writes raw artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// ReportStore persists market reports.
type ReportStore interface {
	SaveReport(ctx context.Context, report MarketReport) error
	GetReport(ctx context.Context, id string) (MarketReport, error)
}

// Publisher pushes report notifications to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Hasher computes content digests for archived snapshots.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces report IDs.
type IDGenerator interface {
	NewID() (string, error)
}
