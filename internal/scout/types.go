// Package scout holds the domain types shared by the pipeline, its stores and the API.
package scout

import (
	"errors"
	"time"

	"github.com/JakeFAU/partscout/internal/extract"
	"github.com/JakeFAU/partscout/internal/source"
)

var (
	// ErrNotFound is returned by stores when a report does not exist.
	ErrNotFound = errors.New("not found")
	// ErrUnknownBranch is returned for a location that names no branch.
	ErrUnknownBranch = source.ErrUnknownBranch
	// ErrInvalidQuery is returned for a query that cannot be run as given.
	ErrInvalidQuery = errors.New("invalid query")
)

// InventoryQuery selects the branches to scrape and the vehicle filter to apply.
type InventoryQuery struct {
	Location string `json:"location"`
	Make     string `json:"make"`
	Model    string `json:"model"`
	Year     string `json:"year"`
}

// BranchFailure records a branch that could not be scraped during a multi-branch search.
type BranchFailure struct {
	Branch string `json:"branch"`
	Error  string `json:"error"`
}

// InventoryResult maps branch name to its listings.
type InventoryResult struct {
	Branches map[string][]extract.VehicleListing
	Failed   []BranchFailure
}

// MarketQuery names a vehicle or part and the inclusive price band to keep.
type MarketQuery struct {
	Vehicle  string  `json:"vehicle"`
	MinPrice float64 `json:"min_price"`
	MaxPrice float64 `json:"max_price"`
}

// Band returns the query's price band.
func (q MarketQuery) Band() extract.PriceBand {
	return extract.PriceBand{Min: q.MinPrice, Max: q.MaxPrice}
}

// MarketReport is a stored market analysis.
type MarketReport struct {
	ID           string                   `json:"id"`
	Vehicle      string                   `json:"vehicle"`
	Band         extract.PriceBand        `json:"band"`
	CreatedAt    time.Time                `json:"created_at"`
	SourceURL    string                   `json:"source_url"`
	SnapshotURI  string                   `json:"snapshot_uri,omitempty"`
	SnapshotHash string                   `json:"snapshot_hash,omitempty"`
	SoldItems    []extract.SoldItem       `json:"sold_items"`
	Analysis     []extract.AnalysisRecord `json:"analysis"`
	Summary      extract.Summary          `json:"summary"`
	Distribution []extract.PriceRange     `json:"distribution"`
}

// ReportEvent is the compact notification published for every stored report.
type ReportEvent struct {
	ReportID      string    `json:"report_id"`
	Vehicle       string    `json:"vehicle"`
	MinPrice      float64   `json:"min_price"`
	MaxPrice      float64   `json:"max_price"`
	TotalListings int       `json:"total_listings"`
	DistinctItems int       `json:"distinct_items"`
	SnapshotURI   string    `json:"snapshot_uri,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// Event builds the notification for r.
func (r MarketReport) Event() ReportEvent {
	return ReportEvent{
		ReportID:      r.ID,
		Vehicle:       r.Vehicle,
		MinPrice:      r.Band.Min,
		MaxPrice:      r.Band.Max,
		TotalListings: r.Summary.TotalListings,
		DistinctItems: r.Summary.DistinctItems,
		SnapshotURI:   r.SnapshotURI,
		CreatedAt:     r.CreatedAt,
	}
}
