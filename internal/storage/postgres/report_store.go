// Package postgres persists market reports in Postgres.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/partscout/internal/scout"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

const defaultTable = "market_reports"

// Config controls the Postgres connection pool used for report rows.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type pool interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	QueryRow(context.Context, string, ...any) pgx.Row
	Close()
}

// ReportStore reads and writes report rows.
type ReportStore struct {
	pool  pool
	table string
}

// New connects a pool using cfg.
func New(ctx context.Context, cfg Config) (*ReportStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	table, err := tableName(cfg.Table)
	if err != nil {
		return nil, err
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &ReportStore{pool: p, table: table}, nil
}

// NewWithPool constructs a store from an existing pool (primarily for testing).
func NewWithPool(p pool, table string) (*ReportStore, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required")
	}
	name, err := tableName(table)
	if err != nil {
		return nil, err
	}
	return &ReportStore{pool: p, table: name}, nil
}

func tableName(table string) (string, error) {
	if table == "" {
		table = defaultTable
	}
	if !validTableName.MatchString(table) {
		return "", fmt.Errorf("invalid table name %q", table)
	}
	return table, nil
}

// Close releases the underlying pool resources.
func (s *ReportStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// EnsureSchema creates the report table when it does not exist.
func (s *ReportStore) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	id            TEXT PRIMARY KEY,
	vehicle       TEXT NOT NULL,
	min_price     DOUBLE PRECISION NOT NULL,
	max_price     DOUBLE PRECISION NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL,
	source_url    TEXT NOT NULL,
	snapshot_uri  TEXT NOT NULL DEFAULT '',
	snapshot_hash TEXT NOT NULL DEFAULT '',
	sold_items    JSONB NOT NULL,
	analysis      JSONB NOT NULL,
	summary       JSONB NOT NULL,
	distribution  JSONB NOT NULL
)`, s.table)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("create %s: %w", s.table, err)
	}
	return nil
}

// SaveReport inserts report.
func (s *ReportStore) SaveReport(ctx context.Context, report scout.MarketReport) error {
	if report.ID == "" {
		return fmt.Errorf("report id is required")
	}
	docs, err := marshalDocs(report)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	id, vehicle, min_price, max_price, created_at, source_url,
	snapshot_uri, snapshot_hash, sold_items, analysis, summary, distribution
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`, s.table)

	args := []any{
		report.ID,
		report.Vehicle,
		report.Band.Min,
		report.Band.Max,
		report.CreatedAt,
		report.SourceURL,
		report.SnapshotURI,
		report.SnapshotHash,
		docs[0], docs[1], docs[2], docs[3],
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert report %s: %w", report.ID, err)
	}
	return nil
}

// GetReport loads one report, returning scout.ErrNotFound when the id is unknown.
func (s *ReportStore) GetReport(ctx context.Context, id string) (scout.MarketReport, error) {
	query := fmt.Sprintf(`
SELECT id, vehicle, min_price, max_price, created_at, source_url,
	snapshot_uri, snapshot_hash, sold_items, analysis, summary, distribution
FROM %s WHERE id = $1`, s.table)

	var (
		report                                scout.MarketReport
		sold, analysis, summary, distribution []byte
	)
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&report.ID,
		&report.Vehicle,
		&report.Band.Min,
		&report.Band.Max,
		&report.CreatedAt,
		&report.SourceURL,
		&report.SnapshotURI,
		&report.SnapshotHash,
		&sold,
		&analysis,
		&summary,
		&distribution,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return scout.MarketReport{}, fmt.Errorf("report %s: %w", id, scout.ErrNotFound)
	}
	if err != nil {
		return scout.MarketReport{}, fmt.Errorf("select report %s: %w", id, err)
	}

	for _, doc := range []struct {
		name string
		raw  []byte
		dst  any
	}{
		{"sold_items", sold, &report.SoldItems},
		{"analysis", analysis, &report.Analysis},
		{"summary", summary, &report.Summary},
		{"distribution", distribution, &report.Distribution},
	} {
		if err := json.Unmarshal(doc.raw, doc.dst); err != nil {
			return scout.MarketReport{}, fmt.Errorf("decode %s: %w", doc.name, err)
		}
	}
	return report, nil
}

func marshalDocs(report scout.MarketReport) ([4][]byte, error) {
	var out [4][]byte
	for i, v := range []any{report.SoldItems, report.Analysis, report.Summary, report.Distribution} {
		raw, err := json.Marshal(v)
		if err != nil {
			return out, fmt.Errorf("marshal report %s: %w", report.ID, err)
		}
		out[i] = raw
	}
	return out, nil
}
