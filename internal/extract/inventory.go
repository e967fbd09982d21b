package extract

import (
	"errors"
	"fmt"
	"strings"
)

// NotAvailable is the placeholder for listing fields the page did not carry.
const NotAvailable = "N/A"

var (
	// ErrMissingTitle reports a record whose mandatory title could not be read.
	ErrMissingTitle = errors.New("missing title")
	// ErrMissingLink reports an inventory card without a container or detail anchor.
	ErrMissingLink = errors.New("missing detail link")
)

// VehicleListing is one vehicle from a salvage-yard inventory page.
type VehicleListing struct {
	Title      string `json:"title"`
	ImageURL   string `json:"image_url"`
	DetailURL  string `json:"detail_url"`
	Branch     string `json:"branch"`
	DateListed string `json:"date_listed"`
	Row        string `json:"row"`
}

// Inventory turns inventory card handles into listings tagged with branch.
// Cards without a title, container or anchor are dropped; the rest keep input order.
func (x *Extractor) Inventory(handles []Element, branch string) (out []VehicleListing) {
	out = make([]VehicleListing, 0, len(handles))
	defer func() {
		if rec := recover(); rec != nil {
			emit(x.observer, Event{
				Batch: BatchInventory,
				Kind:  EventBatchFailed,
				Err:   fmt.Errorf("walk inventory batch: %v", rec),
				Seen:  len(handles),
			})
			out = []VehicleListing{}
		}
	}()

	for i, el := range handles {
		listing, err := attempt[VehicleListing](func() (VehicleListing, error) {
			return x.listing(el, branch)
		})
		if err != nil {
			emit(x.observer, Event{
				Batch: BatchInventory,
				Kind:  EventRecordDropped,
				Index: i + 1,
				Label: listing.Title,
				Err:   err,
			})
			continue
		}
		out = append(out, listing)
		emit(x.observer, Event{Batch: BatchInventory, Kind: EventRecordAdded, Index: i + 1, Label: listing.Title})
	}

	emit(x.observer, Event{Batch: BatchInventory, Kind: EventBatchDone, Kept: len(out), Seen: len(handles)})
	return out
}

func (x *Extractor) listing(el Element, branch string) (VehicleListing, error) {
	sel := x.inventory
	if el == nil {
		return VehicleListing{}, fmt.Errorf("nil handle: %w", ErrNotFound)
	}

	title := strings.TrimSpace(attrOrEmpty(el, sel.TitleAttr))
	if title == "" {
		return VehicleListing{}, ErrMissingTitle
	}
	listing := VehicleListing{
		Title:    title,
		ImageURL: attrOrEmpty(el, sel.ImageAttr),
		Branch:   branch,
	}

	container, err := Ancestor(el, sel.ContainerDepth)
	if err != nil {
		return listing, fmt.Errorf("%w: container: %w", ErrMissingLink, err)
	}
	anchor, err := container.Find(sel.Link)
	if err != nil {
		return listing, fmt.Errorf("%w: anchor: %w", ErrMissingLink, err)
	}
	// An anchor without href still yields a listing.
	listing.DetailURL = attrOrEmpty(anchor, sel.LinkAttr)

	listing.DateListed = Resolve(NotAvailable,
		TextStrategy(container, sel.Date),
		LastTextStrategy(container, sel.DateFallback),
	)
	listing.Row = Resolve(NotAvailable, TextStrategy(container, sel.Row))
	return listing, nil
}
