package extract

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrPriceMissing reports an item without a price label.
	ErrPriceMissing = errors.New("price missing")
	// ErrPriceUnparseable reports a price label with no usable number in it.
	ErrPriceUnparseable = errors.New("price unparseable")
)

// ParsePrice keeps only ASCII digits and '.' from raw and parses the remainder.
//
// "$1,234.50" parses as 1234.5. Ranges such as "$20.00 to $30.00" collapse to
// "20.0030.00" and fail with ErrPriceUnparseable.
func ParsePrice(raw string) (float64, error) {
	var b strings.Builder
	b.Grow(len(raw))
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if (c >= '0' && c <= '9') || c == '.' {
			b.WriteByte(c)
		}
	}
	cleaned := b.String()
	if cleaned == "" {
		return 0, fmt.Errorf("parse price %q: %w", raw, ErrPriceUnparseable)
	}
	value, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, fmt.Errorf("parse price %q: %w", raw, ErrPriceUnparseable)
	}
	return value, nil
}
