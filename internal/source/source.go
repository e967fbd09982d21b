// Package source knows where listings live: the salvage-yard branches and the URLs that
// list their inventory or a part's sold auctions.
package source

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

// AllLocations selects every branch.
const AllLocations = "All Locations"

// Default endpoints.
const (
	DefaultInventoryURL  = "https://kennyupull.com/auto-parts/our-inventory/"
	DefaultSoldSearchURL = "https://www.ebay.com/sch/i.html"
)

// Inventory filter parameters understood by the yard's search form.
const (
	paramMake  = "input-select-brand-1621770108-auto-parts"
	paramModel = "input-select-model-661410576-auto-parts"
	paramYear  = "input-select-model_year-443917684-auto-parts"
)

// ErrUnknownBranch is returned for a location that is neither a branch nor AllLocations.
var ErrUnknownBranch = errors.New("unknown branch")

// Branch is one salvage-yard location.
type Branch struct {
	Name string `json:"name" mapstructure:"name"`
	ID   string `json:"id" mapstructure:"id"`
}

// DefaultBranches lists the yards in the order "All Locations" walks them.
func DefaultBranches() []Branch {
	return []Branch{
		{Name: "Ottawa", ID: "1457192"},
		{Name: "Gatineau", ID: "1457182"},
		{Name: "Cornwall", ID: "1576848"},
	}
}

// InventoryFilter narrows an inventory page. Empty fields are omitted.
type InventoryFilter struct {
	Make  string
	Model string
	Year  string
}

// Config configures a Catalog. Zero values select the defaults.
type Config struct {
	InventoryURL  string
	SoldSearchURL string
	Branches      []Branch
	PageSize      int
	// ItemSearchMin and ItemSearchMax bound the per-row comparison links.
	ItemSearchMin float64
	ItemSearchMax float64
}

// Catalog resolves branches and builds target URLs.
type Catalog struct {
	inventoryURL  string
	soldSearchURL string
	branches      []Branch
	pageSize      int
	itemMin       float64
	itemMax       float64
}

// New validates cfg and builds a Catalog.
func New(cfg Config) (*Catalog, error) {
	c := &Catalog{
		inventoryURL:  cfg.InventoryURL,
		soldSearchURL: cfg.SoldSearchURL,
		branches:      cfg.Branches,
		pageSize:      cfg.PageSize,
		itemMin:       cfg.ItemSearchMin,
		itemMax:       cfg.ItemSearchMax,
	}
	if c.inventoryURL == "" {
		c.inventoryURL = DefaultInventoryURL
	}
	if c.soldSearchURL == "" {
		c.soldSearchURL = DefaultSoldSearchURL
	}
	if len(c.branches) == 0 {
		c.branches = DefaultBranches()
	}
	if c.pageSize <= 0 {
		c.pageSize = 42
	}
	if c.itemMin == 0 && c.itemMax == 0 {
		c.itemMin, c.itemMax = 150, 600
	}
	for _, raw := range []string{c.inventoryURL, c.soldSearchURL} {
		if _, err := url.ParseRequestURI(raw); err != nil {
			return nil, fmt.Errorf("parse base url %q: %w", raw, err)
		}
	}
	seen := make(map[string]struct{}, len(c.branches))
	for _, b := range c.branches {
		if b.Name == "" || b.ID == "" {
			return nil, fmt.Errorf("branch %+v needs a name and an id", b)
		}
		key := strings.ToLower(b.Name)
		if _, dup := seen[key]; dup {
			return nil, fmt.Errorf("duplicate branch %q", b.Name)
		}
		seen[key] = struct{}{}
	}
	return c, nil
}

// Branches returns every branch in walk order.
func (c *Catalog) Branches() []Branch {
	return append([]Branch(nil), c.branches...)
}

// Resolve maps a location label to the branches it covers. Matching is case-insensitive;
// an empty label or AllLocations selects every branch.
func (c *Catalog) Resolve(location string) ([]Branch, error) {
	location = strings.TrimSpace(location)
	if location == "" || strings.EqualFold(location, AllLocations) {
		return c.Branches(), nil
	}
	for _, b := range c.branches {
		if strings.EqualFold(b.Name, location) {
			return []Branch{b}, nil
		}
	}
	return nil, fmt.Errorf("%q: %w", location, ErrUnknownBranch)
}

// InventoryURL lists the newest vehicles at branch, narrowed by filter.
func (c *Catalog) InventoryURL(branch Branch, filter InventoryFilter) string {
	// The yard expects the literal branch[] key first; url.Values would sort it after the filters.
	var b strings.Builder
	b.WriteString(c.inventoryURL)
	b.WriteString("?branch%5B%5D=")
	b.WriteString(url.QueryEscape(branch.ID))
	b.WriteString("&nb_items=")
	b.WriteString(strconv.Itoa(c.pageSize))
	b.WriteString("&sort=date")
	for _, p := range []struct{ key, value string }{
		{paramMake, filter.Make},
		{paramModel, filter.Model},
		{paramYear, filter.Year},
	} {
		if v := strings.TrimSpace(p.value); v != "" {
			b.WriteString("&")
			b.WriteString(p.key)
			b.WriteString("=")
			b.WriteString(url.QueryEscape(v))
		}
	}
	return b.String()
}

// SoldSearchURL lists completed, sold, used-condition auctions for vehicle. Zero bounds are
// left off the query so the search is unbounded on that side.
func (c *Catalog) SoldSearchURL(vehicle string, minPrice, maxPrice float64) string {
	var b strings.Builder
	b.WriteString(c.soldSearchURL)
	b.WriteString("?_nkw=")
	b.WriteString(keywords(vehicle))
	b.WriteString("&_sacat=0&LH_Sold=1&LH_Complete=1&LH_ItemCondition=4&_ipg=120&rt=nc")
	if minPrice != 0 {
		b.WriteString("&_udlo=" + formatPrice(minPrice))
	}
	if maxPrice != 0 {
		b.WriteString("&_udhi=" + formatPrice(maxPrice))
	}
	return b.String()
}

var punctuation = regexp.MustCompile(`[^\p{L}\p{N}\s]+`)

// ItemSearchURL links one analysed item name to its sold listings in the parts category.
func (c *Catalog) ItemSearchURL(itemName string) string {
	cleaned := punctuation.ReplaceAllString(itemName, "")
	var b strings.Builder
	b.WriteString(c.soldSearchURL)
	b.WriteString("?_nkw=")
	b.WriteString(keywords(cleaned))
	b.WriteString("&_sacat=6000&LH_Sold=1&LH_Complete=1")
	b.WriteString("&_udlo=" + formatPrice(c.itemMin))
	b.WriteString("&_udhi=" + formatPrice(c.itemMax))
	b.WriteString("&rt=nc&LH_ItemCondition=4&_ipg=240")
	return b.String()
}

// keywords escapes each word and joins them with '+'.
func keywords(text string) string {
	words := strings.Fields(text)
	for i, w := range words {
		words[i] = url.QueryEscape(w)
	}
	return strings.Join(words, "+")
}

func formatPrice(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
