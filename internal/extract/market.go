package extract

import (
	"errors"
	"fmt"
)

// PriceBand is an inclusive price range.
type PriceBand struct {
	Min float64 `json:"min_price"`
	Max float64 `json:"max_price"`
}

// Contains reports whether Min <= price <= Max.
func (b PriceBand) Contains(price float64) bool {
	return b.Min <= price && price <= b.Max
}

// SoldItem is one completed auction.
type SoldItem struct {
	ItemName     string  `json:"item_name"`
	SoldPrice    float64 `json:"sold_price"`
	ThumbnailURL string  `json:"thumbnail_url"`
	ListingURL   string  `json:"listing_url"`
}

type media struct {
	thumbnail string
	link      string
}

// Market turns sold-result handles into items whose price lies inside band.
//
// A missing or unparseable price reads as 0.0 and is kept or skipped by the band like any
// other price. The observer still learns which of the two happened.
func (x *Extractor) Market(handles []Element, band PriceBand) (out []SoldItem) {
	out = make([]SoldItem, 0, len(handles))
	defer func() {
		if rec := recover(); rec != nil {
			emit(x.observer, Event{
				Batch: BatchMarket,
				Kind:  EventBatchFailed,
				Err:   fmt.Errorf("walk market batch: %v", rec),
				Seen:  len(handles),
			})
			out = []SoldItem{}
		}
	}()

	for i, el := range handles {
		idx := i + 1
		item, err := attempt[SoldItem](func() (SoldItem, error) {
			return x.soldItem(el, idx)
		})
		if err != nil {
			emit(x.observer, Event{Batch: BatchMarket, Kind: EventRecordDropped, Index: idx, Err: err})
			continue
		}
		if !band.Contains(item.SoldPrice) {
			emit(x.observer, Event{
				Batch: BatchMarket,
				Kind:  EventRecordSkipped,
				Index: idx,
				Label: item.ItemName,
				Price: item.SoldPrice,
			})
			continue
		}
		out = append(out, item)
		emit(x.observer, Event{
			Batch: BatchMarket,
			Kind:  EventRecordAdded,
			Index: idx,
			Label: item.ItemName,
			Price: item.SoldPrice,
		})
	}

	emit(x.observer, Event{Batch: BatchMarket, Kind: EventBatchDone, Kept: len(out), Seen: len(handles)})
	return out
}

func (x *Extractor) soldItem(el Element, idx int) (SoldItem, error) {
	sel := x.market
	if el == nil {
		return SoldItem{}, fmt.Errorf("nil handle: %w", ErrNotFound)
	}

	titles := make([]Strategy[string], 0, len(sel.Titles))
	for _, selector := range sel.Titles {
		titles = append(titles, TextStrategy(el, selector))
	}
	title, err := ResolveErr(titles...)
	if err != nil {
		return SoldItem{}, fmt.Errorf("%w: %w", ErrMissingTitle, err)
	}

	price, err := ResolveErr[float64](func() (float64, error) {
		text, err := TextOf(el, sel.Price)
		if err != nil {
			return 0, fmt.Errorf("%w: %w", ErrPriceMissing, err)
		}
		return ParsePrice(text)
	})
	if err != nil {
		kind := EventPriceUnparseable
		if errors.Is(err, ErrPriceMissing) {
			kind = EventPriceMissing
		}
		emit(x.observer, Event{Batch: BatchMarket, Kind: kind, Index: idx, Label: title, Err: err})
		price = 0
	}

	m, err := ResolveErr[media](func() (media, error) {
		thumb, err := AttrOf(el, sel.Thumbnail, sel.ThumbnailAttr)
		if err != nil {
			return media{}, fmt.Errorf("thumbnail: %w", err)
		}
		link, err := AttrOf(el, sel.Link, sel.LinkAttr)
		if err != nil {
			return media{}, fmt.Errorf("link: %w", err)
		}
		return media{thumbnail: thumb, link: link}, nil
	})
	if err != nil {
		emit(x.observer, Event{Batch: BatchMarket, Kind: EventMediaMissing, Index: idx, Label: title, Err: err})
		m = media{}
	}

	return SoldItem{
		ItemName:     title,
		SoldPrice:    price,
		ThumbnailURL: m.thumbnail,
		ListingURL:   m.link,
	}, nil
}
