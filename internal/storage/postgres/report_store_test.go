package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/partscout/internal/extract"
	"github.com/JakeFAU/partscout/internal/scout"
)

func sampleReport() scout.MarketReport {
	return scout.MarketReport{
		ID:           "0190c2a4-0000-7000-8000-000000000001",
		Vehicle:      "2012 Honda Civic",
		Band:         extract.PriceBand{Min: 150, Max: 600},
		CreatedAt:    time.Unix(1700000000, 0).UTC(),
		SourceURL:    "https://www.ebay.com/sch/i.html?_nkw=2012+Honda+Civic",
		SnapshotURI:  "memory://market/abc.html",
		SnapshotHash: "abc",
		SoldItems:    []extract.SoldItem{{ItemName: "Alternator", SoldPrice: 200}},
		Analysis:     []extract.AnalysisRecord{{ItemName: "Alternator", AveragePrice: 200, Frequency: 1}},
		Summary:      extract.Summary{MinPrice: 200, MaxPrice: 200, TotalListings: 1, DistinctItems: 1},
		Distribution: []extract.PriceRange{{Min: 200, Max: 200, Count: 1}},
	}
}

func TestSaveReportInsertsRow(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewWithPool(mock, "")
	require.NoError(t, err)

	r := sampleReport()
	mock.ExpectExec("INSERT INTO market_reports").
		WithArgs(
			r.ID, r.Vehicle, r.Band.Min, r.Band.Max, r.CreatedAt, r.SourceURL, r.SnapshotURI, r.SnapshotHash,
			[]byte(`[{"item_name":"Alternator","sold_price":200,"thumbnail_url":"","listing_url":""}]`),
			[]byte(`[{"item_name":"Alternator","average_price":200,"frequency":1}]`),
			[]byte(`{"min_price":200,"max_price":200,"total_listings":1,"distinct_items":1}`),
			[]byte(`[{"min":200,"max":200,"count":1}]`),
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.SaveReport(context.Background(), r))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveReportWrapsErrors(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewWithPool(mock, "reports")
	require.NoError(t, err)

	boom := errors.New("connection reset")
	mock.ExpectExec("INSERT INTO reports").WillReturnError(boom)
	err = store.SaveReport(context.Background(), sampleReport())
	require.ErrorIs(t, err, boom)

	require.Error(t, store.SaveReport(context.Background(), scout.MarketReport{}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetReportScansRow(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewWithPool(mock, "")
	require.NoError(t, err)

	want := sampleReport()
	rows := pgxmock.NewRows([]string{
		"id", "vehicle", "min_price", "max_price", "created_at", "source_url",
		"snapshot_uri", "snapshot_hash", "sold_items", "analysis", "summary", "distribution",
	}).AddRow(
		want.ID, want.Vehicle, want.Band.Min, want.Band.Max, want.CreatedAt, want.SourceURL,
		want.SnapshotURI, want.SnapshotHash,
		[]byte(`[{"item_name":"Alternator","sold_price":200,"thumbnail_url":"","listing_url":""}]`),
		[]byte(`[{"item_name":"Alternator","average_price":200,"frequency":1}]`),
		[]byte(`{"min_price":200,"max_price":200,"total_listings":1,"distinct_items":1}`),
		[]byte(`[{"min":200,"max":200,"count":1}]`),
	)
	mock.ExpectQuery("(?s)SELECT .+ FROM market_reports WHERE id").WithArgs(want.ID).WillReturnRows(rows)

	got, err := store.GetReport(context.Background(), want.ID)
	require.NoError(t, err)
	require.Equal(t, want, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetReportNotFound(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewWithPool(mock, "")
	require.NoError(t, err)

	mock.ExpectQuery("(?s)SELECT .+ FROM market_reports").WithArgs("missing").WillReturnError(pgx.ErrNoRows)
	_, err = store.GetReport(context.Background(), "missing")
	require.ErrorIs(t, err, scout.ErrNotFound)
}

func TestEnsureSchema(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewWithPool(mock, "")
	require.NoError(t, err)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS market_reports").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	require.NoError(t, store.EnsureSchema(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTableValidation(t *testing.T) {
	t.Parallel()

	_, err := NewWithPool(nil, "")
	require.Error(t, err)

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	_, err = NewWithPool(mock, "reports; DROP TABLE x")
	require.Error(t, err)

	_, err = New(context.Background(), Config{})
	require.Error(t, err)
}
