package extract

// Config selects the markup each extractor reads. Zero values fall back to the defaults.
type Config struct {
	Inventory InventorySelectors
	Market    MarketSelectors
}

// Extractor runs the inventory and market extractors with a shared observer.
// It holds no per-call state and is safe for concurrent use when the observer is.
type Extractor struct {
	inventory InventorySelectors
	market    MarketSelectors
	observer  Observer
}

// New builds an Extractor. A nil observer discards diagnostics.
func New(cfg Config, observer Observer) *Extractor {
	return &Extractor{
		inventory: cfg.Inventory.WithDefaults(),
		market:    cfg.Market.WithDefaults(),
		observer:  observer,
	}
}

// InventorySelectors returns the selectors in effect for inventory extraction.
func (x *Extractor) InventorySelectors() InventorySelectors {
	return x.inventory
}

// MarketSelectors returns the selectors in effect for market extraction.
func (x *Extractor) MarketSelectors() MarketSelectors {
	return x.market
}

// MarketResult pairs the in-band sold items with their aggregation.
type MarketResult struct {
	SoldItems []SoldItem       `json:"sold_items"`
	Analysis  []AnalysisRecord `json:"analysis"`
}

// MarketAnalysis extracts the sold items inside band and aggregates them.
func (x *Extractor) MarketAnalysis(handles []Element, band PriceBand) MarketResult {
	items := x.Market(handles, band)
	return MarketResult{
		SoldItems: items,
		Analysis:  Analyze(items),
	}
}

// ExtractInventory extracts vehicle listings with the default selectors and no observer.
func ExtractInventory(handles []Element, location string) []VehicleListing {
	return New(Config{}, nil).Inventory(handles, location)
}

// ExtractAndAnalyzeMarket extracts and aggregates sold items with the default selectors
// and no observer. Both bounds are inclusive.
func ExtractAndAnalyzeMarket(handles []Element, minPrice, maxPrice float64) MarketResult {
	return New(Config{}, nil).MarketAnalysis(handles, PriceBand{Min: minPrice, Max: maxPrice})
}
