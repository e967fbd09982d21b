package extract

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// DefaultBuckets is the bucket count Distribution uses when asked for none.
const DefaultBuckets = 10

// Summary describes an analysis list as a whole.
type Summary struct {
	MinPrice      float64 `json:"min_price"`
	MaxPrice      float64 `json:"max_price"`
	TotalListings int     `json:"total_listings"`
	DistinctItems int     `json:"distinct_items"`
}

// Summarize reports the average-price range and the number of listings behind records.
func Summarize(records []AnalysisRecord) Summary {
	if len(records) == 0 {
		return Summary{}
	}
	s := Summary{
		MinPrice:      records[0].AveragePrice,
		MaxPrice:      records[0].AveragePrice,
		DistinctItems: len(records),
	}
	for _, r := range records {
		s.MinPrice = math.Min(s.MinPrice, r.AveragePrice)
		s.MaxPrice = math.Max(s.MaxPrice, r.AveragePrice)
		s.TotalListings += r.Frequency
	}
	return s
}

// PriceRange is one histogram bucket. Bounds are rounded to whole currency units.
type PriceRange struct {
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Count int     `json:"count"`
}

// Distribution splits the average-price range of records into equal-width buckets and
// counts listings, weighted by frequency, in each. The last bucket is closed on the right.
func Distribution(records []AnalysisRecord, buckets int) []PriceRange {
	if buckets <= 0 {
		buckets = DefaultBuckets
	}
	if len(records) == 0 {
		return []PriceRange{}
	}
	summary := Summarize(records)
	width := (summary.MaxPrice - summary.MinPrice) / float64(buckets)

	out := make([]PriceRange, buckets)
	for i := range out {
		out[i].Min = roundHalfUp(summary.MinPrice + float64(i)*width)
		out[i].Max = roundHalfUp(summary.MinPrice + float64(i+1)*width)
	}
	for _, r := range records {
		idx := 0
		if width > 0 {
			idx = int(math.Floor((r.AveragePrice - summary.MinPrice) / width))
		}
		if idx >= buckets {
			idx = buckets - 1
		}
		if idx < 0 {
			idx = 0
		}
		out[idx].Count += r.Frequency
	}
	return out
}

func roundHalfUp(v float64) float64 {
	return math.Floor(v + 0.5)
}

// SortKey names an AnalysisRecord field to order by.
type SortKey string

// Supported sort keys.
const (
	SortByName      SortKey = "item_name"
	SortByPrice     SortKey = "average_price"
	SortByFrequency SortKey = "frequency"
)

// ParseSortKey accepts the JSON field names plus the short forms name, price and count.
func ParseSortKey(raw string) (SortKey, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "item_name", "name":
		return SortByName, nil
	case "average_price", "price":
		return SortByPrice, nil
	case "frequency", "count":
		return SortByFrequency, nil
	default:
		return "", fmt.Errorf("unknown sort key %q", raw)
	}
}

// SortAnalysis returns a stably sorted copy of records.
func SortAnalysis(records []AnalysisRecord, key SortKey, ascending bool) []AnalysisRecord {
	out := make([]AnalysisRecord, len(records))
	copy(out, records)
	less := func(a, b AnalysisRecord) bool {
		switch key {
		case SortByPrice:
			return a.AveragePrice < b.AveragePrice
		case SortByFrequency:
			return a.Frequency < b.Frequency
		default:
			return a.ItemName < b.ItemName
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if ascending {
			return less(out[i], out[j])
		}
		return less(out[j], out[i])
	})
	return out
}
