package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/partscout/internal/config"
	"github.com/JakeFAU/partscout/internal/extract"
	"github.com/JakeFAU/partscout/internal/scout"
	"github.com/JakeFAU/partscout/internal/source"
)

const reportID = "0190b6f0-7c1e-7a4e-9d53-3b0c6a1f2e4d"

type fakeService struct {
	mu        sync.Mutex
	inventory []scout.InventoryQuery
	market    []scout.MarketQuery

	inventoryResult scout.InventoryResult
	inventoryErr    error
	report          scout.MarketReport
	marketErr       error
	reports         map[string]scout.MarketReport
	panicOnMarket   bool
}

func (f *fakeService) SearchInventory(_ context.Context, q scout.InventoryQuery) (scout.InventoryResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inventory = append(f.inventory, q)
	return f.inventoryResult, f.inventoryErr
}

func (f *fakeService) AnalyzeMarket(_ context.Context, q scout.MarketQuery) (scout.MarketReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.panicOnMarket {
		panic("boom")
	}
	f.market = append(f.market, q)
	return f.report, f.marketErr
}

func (f *fakeService) GetReport(_ context.Context, id string) (scout.MarketReport, error) {
	report, ok := f.reports[id]
	if !ok {
		return scout.MarketReport{}, fmt.Errorf("get report: %w", scout.ErrNotFound)
	}
	return report, nil
}

func testConfig() config.Config {
	return config.Config{
		Server:  config.ServerConfig{Port: 8080, RequestTimeoutSeconds: 5},
		Sources: config.SourcesConfig{DefaultMinPrice: 150, DefaultMaxPrice: 600},
	}
}

func newTestServer(t *testing.T, svc *fakeService, mutate func(*config.Config)) *Server {
	t.Helper()
	cfg := testConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	catalog, err := source.New(source.Config{})
	require.NoError(t, err)
	return NewServer(svc, catalog, cfg, zap.NewNop())
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealthAndReadiness(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, &fakeService{}, nil)
	rec := serve(s, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, rec.Header().Get(RequestIDHeader))

	rec = serve(s, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = serve(s, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	unready := NewServer(nil, nil, testConfig(), nil)
	rec = serve(unready, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRequestIDIsPropagated(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, &fakeService{}, nil)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec := serve(s, req)
	require.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))
}

func TestListBranches(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, &fakeService{}, nil)
	rec := serve(s, httptest.NewRequest(http.MethodGet, "/branches", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"locations":["All Locations","Ottawa","Gatineau","Cornwall"]}`, rec.Body.String())
}

func TestSearchForm(t *testing.T) {
	t.Parallel()

	svc := &fakeService{inventoryResult: scout.InventoryResult{
		Branches: map[string][]extract.VehicleListing{
			"Ottawa": {{Title: "2012 HONDA CIVIC", Branch: "Ottawa", DateListed: "N/A", Row: "N/A"}},
		},
	}}
	s := newTestServer(t, svc, nil)

	form := url.Values{"make": {" HONDA "}, "model": {"CIVIC"}, "year": {"2012"}, "location": {"Ottawa"}}
	req := httptest.NewRequest(http.MethodPost, "/search", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := serve(s, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, []scout.InventoryQuery{{Location: "Ottawa", Make: "HONDA", Model: "CIVIC", Year: "2012"}}, svc.inventory)

	var body map[string][]extract.VehicleListing
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "2012 HONDA CIVIC", body["Ottawa"][0].Title)
	require.Empty(t, rec.Header().Get(FailedBranchesHeader))
}

func TestSearchJSON(t *testing.T) {
	t.Parallel()

	svc := &fakeService{inventoryResult: scout.InventoryResult{Branches: map[string][]extract.VehicleListing{}}}
	s := newTestServer(t, svc, nil)

	req := httptest.NewRequest(http.MethodPost, "/search", strings.NewReader(`{"make":"FORD","location":"All Locations"}`))
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	rec := serve(s, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "FORD", svc.inventory[0].Make)

	req = httptest.NewRequest(http.MethodPost, "/search", strings.NewReader(`{invalid`))
	req.Header.Set("Content-Type", "application/json")
	rec = serve(s, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSearchUnknownBranch(t *testing.T) {
	t.Parallel()

	svc := &fakeService{inventoryErr: fmt.Errorf("resolve location: %w", scout.ErrUnknownBranch)}
	s := newTestServer(t, svc, nil)

	req := httptest.NewRequest(http.MethodPost, "/search", strings.NewReader("location=Toronto"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	require.Equal(t, http.StatusBadRequest, serve(s, req).Code)

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/scrape/Toronto", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestScrapeLocationPartialFailure(t *testing.T) {
	t.Parallel()

	svc := &fakeService{inventoryResult: scout.InventoryResult{
		Branches: map[string][]extract.VehicleListing{"Ottawa": {}, "Gatineau": {}, "Cornwall": {}},
		Failed:   []scout.BranchFailure{{Branch: "Gatineau", Error: "x"}, {Branch: "Cornwall", Error: "y"}},
	}}
	s := newTestServer(t, svc, nil)

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/scrape/All%20Locations", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "All Locations", svc.inventory[0].Location)
	require.Equal(t, "Gatineau,Cornwall", rec.Header().Get(FailedBranchesHeader))
	require.JSONEq(t, `{"Ottawa":[],"Gatineau":[],"Cornwall":[]}`, rec.Body.String())
}

func TestScrapeLocationUpstreamFailure(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, &fakeService{inventoryErr: errors.New("chrome crashed")}, nil)
	rec := serve(s, httptest.NewRequest(http.MethodGet, "/scrape/Ottawa", nil))
	require.Equal(t, http.StatusBadGateway, rec.Code)

	s = newTestServer(t, &fakeService{inventoryErr: fmt.Errorf("render: %w", context.DeadlineExceeded)}, nil)
	rec = serve(s, httptest.NewRequest(http.MethodGet, "/scrape/Ottawa", nil))
	require.Equal(t, http.StatusGatewayTimeout, rec.Code)
}

func marketReport() scout.MarketReport {
	return scout.MarketReport{
		ID:        reportID,
		Vehicle:   "2012 Honda Civic",
		Band:      extract.PriceBand{Min: 150, Max: 600},
		SourceURL: "https://www.ebay.com/sch/i.html?_nkw=2012+Honda+Civic",
		SoldItems: []extract.SoldItem{
			{ItemName: "Alternator", SoldPrice: 200},
			{ItemName: "Starter", SoldPrice: 180},
			{ItemName: "Alternator", SoldPrice: 300},
		},
		Analysis: []extract.AnalysisRecord{
			{ItemName: "Alternator", AveragePrice: 250, Frequency: 2},
			{ItemName: "Starter", AveragePrice: 180, Frequency: 1},
		},
		Summary:      extract.Summary{MinPrice: 180, MaxPrice: 250, TotalListings: 3, DistinctItems: 2},
		Distribution: []extract.PriceRange{},
	}
}

func TestScrapeMarket(t *testing.T) {
	t.Parallel()

	svc := &fakeService{report: marketReport()}
	s := newTestServer(t, svc, nil)

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/scrape_ebay/2012%20Honda%20Civic?sort=price&order=asc", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, []scout.MarketQuery{{Vehicle: "2012 Honda Civic", MinPrice: 150, MaxPrice: 600}}, svc.market)

	var body struct {
		ID       string `json:"id"`
		Analysis []struct {
			ItemName     string  `json:"item_name"`
			AveragePrice float64 `json:"average_price"`
			Frequency    int     `json:"frequency"`
			SearchURL    string  `json:"search_url"`
		} `json:"analysis"`
		SoldItems []extract.SoldItem `json:"sold_items"`
		Summary   extract.Summary    `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, reportID, body.ID)
	require.Len(t, body.SoldItems, 3)
	require.Equal(t, 3, body.Summary.TotalListings)
	require.Len(t, body.Analysis, 2)
	require.Equal(t, "Starter", body.Analysis[0].ItemName)
	require.Equal(t, "Alternator", body.Analysis[1].ItemName)
	require.Equal(t, 2, body.Analysis[1].Frequency)
	require.Contains(t, body.Analysis[1].SearchURL, "_nkw=Alternator&_sacat=6000")
}

func TestScrapeMarketQueryParams(t *testing.T) {
	t.Parallel()

	svc := &fakeService{report: marketReport()}
	s := newTestServer(t, svc, nil)

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/scrape_ebay/civic?min_price=10&max_price=90.5", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, scout.MarketQuery{Vehicle: "civic", MinPrice: 10, MaxPrice: 90.5}, svc.market[0])

	for _, target := range []string{
		"/scrape_ebay/civic?min_price=cheap",
		"/scrape_ebay/civic?max_price=lots",
		"/scrape_ebay/civic?sort=color",
		"/scrape_ebay/civic?sort=name&order=sideways",
	} {
		rec := serve(s, httptest.NewRequest(http.MethodGet, target, nil))
		require.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
	require.Len(t, svc.market, 1)
}

func TestScrapeMarketErrors(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, &fakeService{marketErr: fmt.Errorf("min exceeds max: %w", scout.ErrInvalidQuery)}, nil)
	rec := serve(s, httptest.NewRequest(http.MethodGet, "/scrape_ebay/civic?min_price=700", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	s = newTestServer(t, &fakeService{marketErr: errors.New("blocked")}, nil)
	rec = serve(s, httptest.NewRequest(http.MethodGet, "/scrape_ebay/civic", nil))
	require.Equal(t, http.StatusBadGateway, rec.Code)
	require.Contains(t, rec.Body.String(), "blocked")
}

func TestPanicIsRecovered(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, &fakeService{panicOnMarket: true}, nil)
	rec := serve(s, httptest.NewRequest(http.MethodGet, "/scrape_ebay/civic", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestGetReport(t *testing.T) {
	t.Parallel()

	svc := &fakeService{reports: map[string]scout.MarketReport{reportID: marketReport()}}
	s := newTestServer(t, svc, nil)

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/v1/reports/"+reportID, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var got scout.MarketReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, reportID, got.ID)

	rec = serve(s, httptest.NewRequest(http.MethodGet, "/v1/reports/0190b6f0-7c1e-7a4e-9d53-000000000000", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(s, httptest.NewRequest(http.MethodGet, "/v1/reports/not-a-uuid", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPIKeyMiddleware(t *testing.T) {
	t.Parallel()

	svc := &fakeService{reports: map[string]scout.MarketReport{reportID: marketReport()}}
	s := newTestServer(t, svc, func(c *config.Config) {
		c.Auth = config.AuthConfig{Enabled: true, APIKey: "secret"}
	})

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/v1/reports/"+reportID, nil))
	require.Equal(t, http.StatusForbidden, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/v1/reports/"+reportID, nil)
	req.Header.Set("X-API-Key", "secret")
	require.Equal(t, http.StatusOK, serve(s, req).Code)

	rec = serve(s, httptest.NewRequest(http.MethodGet, "/v1/reports/"+reportID+"?api_key=secret", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = serve(s, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}
