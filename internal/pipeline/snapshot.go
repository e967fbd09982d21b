package pipeline

import (
	"fmt"

	"github.com/JakeFAU/partscout/internal/dom"
	"github.com/JakeFAU/partscout/internal/extract"
)

// ExtractInventorySnapshot runs the inventory extractor over a saved page.
func ExtractInventorySnapshot(x *extract.Extractor, html []byte, location string) ([]extract.VehicleListing, error) {
	doc, err := dom.ParseBytes(html)
	if err != nil {
		return nil, fmt.Errorf("parse inventory snapshot: %w", err)
	}
	return x.Inventory(doc.Select(x.InventorySelectors().Item), location), nil
}

// ExtractMarketSnapshot runs the market extractor and aggregator over a saved page.
func ExtractMarketSnapshot(x *extract.Extractor, html []byte, band extract.PriceBand) (extract.MarketResult, error) {
	doc, err := dom.ParseBytes(html)
	if err != nil {
		return extract.MarketResult{}, fmt.Errorf("parse market snapshot: %w", err)
	}
	return x.MarketAnalysis(doc.Select(x.MarketSelectors().Item), band), nil
}
