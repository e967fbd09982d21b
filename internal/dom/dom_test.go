package dom

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/partscout/internal/extract"
)

const inventoryPage = `<html><head><title> Our inventory </title></head><body>
<div class="vehicle">
  <a href="https://yard.example.com/civic">details</a>
  <div class="photo"><img alt="2012 HONDA CIVIC" data-src="https://cdn.example.com/civic.jpg"></div>
  <p class="date info">Row:
     14</p>
  <span class="infos--date">2024-03-01</span>
</div>
<div class="vehicle">
  <div class="photo"><img alt="" data-src="https://cdn.example.com/blank.jpg"></div>
</div>
<div class="vehicle">
  <a href="https://yard.example.com/focus">details</a>
  <div class="photo"><img alt="2010 FORD FOCUS" data-src="https://cdn.example.com/focus.jpg"></div>
  <span class="info">Stock 88</span><span class="info">2023-11-20</span>
</div>
</body></html>`

const soldPage = `<ul>
<li class="s-item">
  <h3 class="s-item__title">Alternator</h3>
  <span class="s-item__price">$200.00</span>
  <img class="s-item__image-img" src="https://img.example.com/1.jpg">
  <a class="s-item__link" href="https://auction.example.com/1">view</a>
</li>
<li class="s-item">
  <div class="s-item__info"><a href="#">Starter</a></div>
  <span class="s-item__price">$1,80.00</span>
</li>
<li class="s-item">
  <h3 class="s-item__title">Alternator</h3>
  <span class="s-item__price">$300.00</span>
  <img class="s-item__image-img" src="https://img.example.com/3.jpg">
  <a class="s-item__link" href="https://auction.example.com/3">view</a>
</li>
<li class="s-item">
  <h3 class="s-item__title">Cheap clip</h3>
  <span class="s-item__price">$4.99</span>
</li>
</ul>`

func TestNodeNavigation(t *testing.T) {
	t.Parallel()

	doc, err := ParseString(inventoryPage)
	require.NoError(t, err)
	require.Equal(t, "Our inventory", doc.Title())

	imgs := doc.Select("img[data-src]")
	require.Len(t, imgs, 3)

	alt, err := imgs[0].Attr("alt")
	require.NoError(t, err)
	require.Equal(t, "2012 HONDA CIVIC", alt)

	_, err = imgs[0].Attr("missing")
	require.ErrorIs(t, err, extract.ErrNotFound)

	container, err := extract.Ancestor(imgs[0], 2)
	require.NoError(t, err)
	row, err := extract.TextOf(container, `p[class="date info"]`)
	require.NoError(t, err)
	require.Equal(t, "Row: 14", row)

	_, err = container.Find(".nope")
	require.ErrorIs(t, err, extract.ErrNotFound)

	all, err := container.FindAll(".nope")
	require.NoError(t, err)
	require.Empty(t, all)
}

func TestParentOfRootIsNotFound(t *testing.T) {
	t.Parallel()

	doc, err := ParseString(`<p>hi</p>`)
	require.NoError(t, err)
	html := doc.Select("html")
	require.Len(t, html, 1)
	_, err = html[0].Parent()
	require.ErrorIs(t, err, extract.ErrNotFound)
}

func TestInventoryFromSnapshot(t *testing.T) {
	t.Parallel()

	doc, err := ParseString(inventoryPage)
	require.NoError(t, err)

	got := extract.ExtractInventory(doc.Select("img[data-src]"), "Ottawa")
	require.Equal(t, []extract.VehicleListing{
		{
			Title:      "2012 HONDA CIVIC",
			ImageURL:   "https://cdn.example.com/civic.jpg",
			DetailURL:  "https://yard.example.com/civic",
			Branch:     "Ottawa",
			DateListed: "2024-03-01",
			Row:        "Row: 14",
		},
		{
			Title:      "2010 FORD FOCUS",
			ImageURL:   "https://cdn.example.com/focus.jpg",
			DetailURL:  "https://yard.example.com/focus",
			Branch:     "Ottawa",
			DateListed: "2023-11-20",
			Row:        extract.NotAvailable,
		},
	}, got)
}

func TestInventoryAnchorWithoutHref(t *testing.T) {
	t.Parallel()

	doc, err := ParseString(`<div><a name="x">View</a><div><img data-src="i.jpg" alt="2012 HONDA CIVIC"></div></div>`)
	require.NoError(t, err)

	got := extract.ExtractInventory(doc.Select("img[data-src]"), "Ottawa")
	require.Len(t, got, 1)
	require.Equal(t, "i.jpg", got[0].ImageURL)
	require.Empty(t, got[0].DetailURL)
}

func TestMarketFromSnapshot(t *testing.T) {
	t.Parallel()

	doc, err := ParseString(soldPage)
	require.NoError(t, err)
	require.Equal(t, 4, doc.Count("li.s-item"))

	got := extract.ExtractAndAnalyzeMarket(doc.Select("li.s-item"), 150, 600)
	require.Len(t, got.SoldItems, 3)
	require.Equal(t, "Starter", got.SoldItems[1].ItemName)
	require.InDelta(t, 180.0, got.SoldItems[1].SoldPrice, 1e-9)
	require.Empty(t, got.SoldItems[1].ThumbnailURL)
	require.Empty(t, got.SoldItems[1].ListingURL)
	require.Equal(t, []extract.AnalysisRecord{
		{ItemName: "Alternator", AveragePrice: 250, Frequency: 2},
		{ItemName: "Starter", AveragePrice: 180, Frequency: 1},
	}, got.Analysis)
}
