package extract

// InventorySelectors locates the fields of one salvage-yard inventory card.
//
// Item matches the image that anchors each card; the remaining selectors are evaluated
// against the card container ContainerDepth levels above the image.
type InventorySelectors struct {
	Item           string `mapstructure:"item"`
	TitleAttr      string `mapstructure:"title_attr"`
	ImageAttr      string `mapstructure:"image_attr"`
	ContainerDepth int    `mapstructure:"container_depth"`
	Link           string `mapstructure:"link"`
	LinkAttr       string `mapstructure:"link_attr"`
	Date           string `mapstructure:"date"`
	DateFallback   string `mapstructure:"date_fallback"`
	Row            string `mapstructure:"row"`
}

// MarketSelectors locates the fields of one sold-auction result.
type MarketSelectors struct {
	Item          string   `mapstructure:"item"`
	Titles        []string `mapstructure:"titles"`
	Price         string   `mapstructure:"price"`
	Thumbnail     string   `mapstructure:"thumbnail"`
	ThumbnailAttr string   `mapstructure:"thumbnail_attr"`
	Link          string   `mapstructure:"link"`
	LinkAttr      string   `mapstructure:"link_attr"`
}

// DefaultInventorySelectors matches the current inventory markup.
func DefaultInventorySelectors() InventorySelectors {
	return InventorySelectors{
		Item:           "img[data-src]",
		TitleAttr:      "alt",
		ImageAttr:      "data-src",
		ContainerDepth: 2,
		Link:           "a",
		LinkAttr:       "href",
		Date:           ".infos--date",
		DateFallback:   ".info",
		Row:            `p[class="date info"]`,
	}
}

// DefaultMarketSelectors matches the current sold-results markup.
func DefaultMarketSelectors() MarketSelectors {
	return MarketSelectors{
		Item:          "li.s-item",
		Titles:        []string{"h3.s-item__title", "div.s-item__info a"},
		Price:         ".s-item__price",
		Thumbnail:     "img.s-item__image-img",
		ThumbnailAttr: "src",
		Link:          "a.s-item__link",
		LinkAttr:      "href",
	}
}

// WithDefaults fills every empty field from DefaultInventorySelectors.
func (s InventorySelectors) WithDefaults() InventorySelectors {
	def := DefaultInventorySelectors()
	s.Item = orDefault(s.Item, def.Item)
	s.TitleAttr = orDefault(s.TitleAttr, def.TitleAttr)
	s.ImageAttr = orDefault(s.ImageAttr, def.ImageAttr)
	if s.ContainerDepth <= 0 {
		s.ContainerDepth = def.ContainerDepth
	}
	s.Link = orDefault(s.Link, def.Link)
	s.LinkAttr = orDefault(s.LinkAttr, def.LinkAttr)
	s.Date = orDefault(s.Date, def.Date)
	s.DateFallback = orDefault(s.DateFallback, def.DateFallback)
	s.Row = orDefault(s.Row, def.Row)
	return s
}

// WithDefaults fills every empty field from DefaultMarketSelectors.
func (s MarketSelectors) WithDefaults() MarketSelectors {
	def := DefaultMarketSelectors()
	s.Item = orDefault(s.Item, def.Item)
	if len(s.Titles) == 0 {
		s.Titles = def.Titles
	}
	s.Price = orDefault(s.Price, def.Price)
	s.Thumbnail = orDefault(s.Thumbnail, def.Thumbnail)
	s.ThumbnailAttr = orDefault(s.ThumbnailAttr, def.ThumbnailAttr)
	s.Link = orDefault(s.Link, def.Link)
	s.LinkAttr = orDefault(s.LinkAttr, def.LinkAttr)
	return s
}

func orDefault(value, def string) string {
	if value == "" {
		return def
	}
	return value
}
