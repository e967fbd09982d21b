// Package pipeline runs the end-to-end flows: render a target page, extract records from the
// snapshot, and archive, store and announce the results.
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/partscout/internal/dom"
	"github.com/JakeFAU/partscout/internal/extract"
	"github.com/JakeFAU/partscout/internal/metrics"
	"github.com/JakeFAU/partscout/internal/render"
	"github.com/JakeFAU/partscout/internal/scout"
	"github.com/JakeFAU/partscout/internal/source"
)

// Config controls Service behavior.
type Config struct {
	ContentType string
	BlobPrefix  string
	// Topic receives a scout.ReportEvent per stored report. Empty disables publishing.
	Topic string
	// ArchiveSnapshots writes every rendered page to the blob store.
	ArchiveSnapshots bool
	// MaxParallelBranches bounds concurrent renders for "All Locations".
	MaxParallelBranches int
	// ScrollRounds is passed to the inventory renderer to trigger lazy-loaded cards.
	ScrollRounds int
	// Buckets is the number of price buckets in a report's distribution.
	Buckets int
}

// Dependencies are the collaborators a Service needs. Blobs, Reports and Publisher are optional.
type Dependencies struct {
	Catalog           *source.Catalog
	InventoryRenderer render.Renderer
	MarketRenderer    render.Renderer
	Extractor         *extract.Extractor
	Blobs             scout.BlobStore
	Reports           scout.ReportStore
	Publisher         scout.Publisher
	Hasher            scout.Hasher
	Clock             scout.Clock
	IDs               scout.IDGenerator
}

// Service runs inventory searches and market analyses.
type Service struct {
	deps   Dependencies
	cfg    Config
	logger *zap.Logger
}

// New validates deps and constructs a Service.
func New(deps Dependencies, cfg Config, logger *zap.Logger) (*Service, error) {
	switch {
	case deps.Catalog == nil:
		return nil, errors.New("catalog is required")
	case deps.InventoryRenderer == nil || deps.MarketRenderer == nil:
		return nil, errors.New("inventory and market renderers are required")
	case deps.Extractor == nil:
		return nil, errors.New("extractor is required")
	case deps.Clock == nil || deps.IDs == nil:
		return nil, errors.New("clock and id generator are required")
	case deps.Blobs != nil && cfg.ArchiveSnapshots && deps.Hasher == nil:
		return nil, errors.New("hasher is required when archiving snapshots")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ContentType == "" {
		cfg.ContentType = "text/html; charset=utf-8"
	}
	if cfg.MaxParallelBranches <= 0 {
		cfg.MaxParallelBranches = 1
	}
	if cfg.Buckets <= 0 {
		cfg.Buckets = extract.DefaultBuckets
	}
	return &Service{deps: deps, cfg: cfg, logger: logger}, nil
}

// Catalog exposes the branch and URL catalog the service was built with.
func (s *Service) Catalog() *source.Catalog {
	return s.deps.Catalog
}

// SearchInventory scrapes the branches named by q.Location.
//
// A single branch that fails is returned as an error. When several branches are searched,
// a failing branch appears with an empty list and in InventoryResult.Failed; the call only
// fails when every branch did.
func (s *Service) SearchInventory(ctx context.Context, q scout.InventoryQuery) (scout.InventoryResult, error) {
	branches, err := s.deps.Catalog.Resolve(q.Location)
	if err != nil {
		return scout.InventoryResult{}, fmt.Errorf("resolve location: %w", err)
	}
	filter := source.InventoryFilter{Make: q.Make, Model: q.Model, Year: q.Year}

	if len(branches) == 1 {
		listings, err := s.scrapeBranch(ctx, branches[0], filter)
		if err != nil {
			return scout.InventoryResult{}, err
		}
		return scout.InventoryResult{
			Branches: map[string][]extract.VehicleListing{branches[0].Name: listings},
			Failed:   []scout.BranchFailure{},
		}, nil
	}

	lists := make([][]extract.VehicleListing, len(branches))
	errs := make([]error, len(branches))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.MaxParallelBranches)
	for i, b := range branches {
		g.Go(func() error {
			lists[i], errs[i] = s.scrapeBranch(gctx, b, filter)
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return scout.InventoryResult{}, fmt.Errorf("search inventory: %w", err)
	}

	result := scout.InventoryResult{
		Branches: make(map[string][]extract.VehicleListing, len(branches)),
		Failed:   []scout.BranchFailure{},
	}
	for i, b := range branches {
		if errs[i] != nil {
			result.Branches[b.Name] = []extract.VehicleListing{}
			result.Failed = append(result.Failed, scout.BranchFailure{Branch: b.Name, Error: errs[i].Error()})
			continue
		}
		result.Branches[b.Name] = lists[i]
	}
	if len(result.Failed) == len(branches) {
		return scout.InventoryResult{}, fmt.Errorf("search inventory: every branch failed: %w", errors.Join(errs...))
	}
	return result, nil
}

func (s *Service) scrapeBranch(ctx context.Context, b source.Branch, filter source.InventoryFilter) ([]extract.VehicleListing, error) {
	sel := s.deps.Extractor.InventorySelectors()
	url := s.deps.Catalog.InventoryURL(b, filter)
	logger := s.logger.With(zap.String("branch", b.Name), zap.String("url", url))

	page, err := s.deps.InventoryRenderer.Render(ctx, render.Request{
		URL:           url,
		WaitSelector:  sel.Item,
		AcceptConsent: true,
		ScrollRounds:  s.cfg.ScrollRounds,
	})
	if err != nil {
		return nil, fmt.Errorf("render %s inventory: %w", b.Name, err)
	}
	doc, err := dom.ParseBytes(page.HTML)
	if err != nil {
		return nil, fmt.Errorf("parse %s inventory: %w", b.Name, err)
	}
	handles := doc.Select(sel.Item)
	logger.Debug("found inventory cards", zap.Int("cards", len(handles)))

	listings := s.deps.Extractor.Inventory(handles, b.Name)
	if s.cfg.ArchiveSnapshots {
		if uri, _, err := s.archive(ctx, "inventory/"+strings.ToLower(b.Name), page.HTML); err != nil {
			logger.Warn("archive snapshot failed", zap.Error(err))
		} else if uri != "" {
			logger.Debug("archived snapshot", zap.String("blob_uri", uri))
		}
	}
	logger.Info("inventory scraped", zap.Int("listings", len(listings)))
	return listings, nil
}

// AnalyzeMarket renders the sold-auction results for q, extracts the in-band items and
// builds a report. Archive, store and publish failures are logged and do not fail the call.
func (s *Service) AnalyzeMarket(ctx context.Context, q scout.MarketQuery) (scout.MarketReport, error) {
	if err := validateMarketQuery(q); err != nil {
		return scout.MarketReport{}, err
	}
	band := q.Band()
	sel := s.deps.Extractor.MarketSelectors()
	url := s.deps.Catalog.SoldSearchURL(q.Vehicle, q.MinPrice, q.MaxPrice)
	logger := s.logger.With(zap.String("vehicle", q.Vehicle), zap.String("url", url))

	page, err := s.deps.MarketRenderer.Render(ctx, render.Request{URL: url, WaitSelector: sel.Item})
	if err != nil {
		metrics.ObserveReport("render_failed")
		return scout.MarketReport{}, fmt.Errorf("render sold results: %w", err)
	}
	doc, err := dom.ParseBytes(page.HTML)
	if err != nil {
		metrics.ObserveReport("parse_failed")
		return scout.MarketReport{}, fmt.Errorf("parse sold results: %w", err)
	}
	result := s.deps.Extractor.MarketAnalysis(doc.Select(sel.Item), band)

	id, err := s.deps.IDs.NewID()
	if err != nil {
		return scout.MarketReport{}, fmt.Errorf("new report id: %w", err)
	}
	report := scout.MarketReport{
		ID:           id,
		Vehicle:      strings.TrimSpace(q.Vehicle),
		Band:         band,
		CreatedAt:    s.deps.Clock.Now(),
		SourceURL:    url,
		SoldItems:    result.SoldItems,
		Analysis:     result.Analysis,
		Summary:      extract.Summarize(result.Analysis),
		Distribution: extract.Distribution(result.Analysis, s.cfg.Buckets),
	}
	logger = logger.With(zap.String("report_id", id))

	if s.cfg.ArchiveSnapshots {
		uri, hash, err := s.archive(ctx, "market/"+id, page.HTML)
		if err != nil {
			logger.Warn("archive snapshot failed", zap.Error(err))
		}
		report.SnapshotURI, report.SnapshotHash = uri, hash
	}
	s.persist(ctx, logger, report)

	logger.Info("market analysed",
		zap.Int("sold_items", len(report.SoldItems)),
		zap.Int("distinct_items", report.Summary.DistinctItems),
	)
	return report, nil
}

func (s *Service) persist(ctx context.Context, logger *zap.Logger, report scout.MarketReport) {
	var wg sync.WaitGroup
	if s.deps.Reports != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.deps.Reports.SaveReport(ctx, report); err != nil {
				metrics.ObserveReport("store_failed")
				logger.Error("save report failed", zap.Error(err))
				return
			}
			metrics.ObserveReport("stored")
		}()
	}
	if s.deps.Publisher != nil && s.cfg.Topic != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			msgID, err := s.deps.Publisher.Publish(ctx, s.cfg.Topic, report.Event())
			if err != nil {
				logger.Error("publish report failed", zap.String("topic", s.cfg.Topic), zap.Error(err))
				return
			}
			logger.Debug("report published", zap.String("topic", s.cfg.Topic), zap.String("message_id", msgID))
		}()
	}
	wg.Wait()
}

// archive stores html under prefix/<sha256>.html. It is a no-op without a blob store.
func (s *Service) archive(ctx context.Context, prefix string, html []byte) (string, string, error) {
	if s.deps.Blobs == nil {
		return "", "", nil
	}
	hash, err := s.deps.Hasher.Hash(html)
	if err != nil {
		return "", "", fmt.Errorf("hash snapshot: %w", err)
	}
	uri, err := s.deps.Blobs.PutObject(ctx, s.blobPath(prefix, hash), s.cfg.ContentType, bytes.NewReader(html))
	if err != nil {
		return "", hash, fmt.Errorf("put snapshot: %w", err)
	}
	return uri, hash, nil
}

func (s *Service) blobPath(prefix, hash string) string {
	root := strings.Trim(s.cfg.BlobPrefix, "/")
	if root == "" {
		return fmt.Sprintf("%s/%s.html", prefix, hash)
	}
	return fmt.Sprintf("%s/%s/%s.html", root, prefix, hash)
}

// GetReport loads a stored report.
func (s *Service) GetReport(ctx context.Context, id string) (scout.MarketReport, error) {
	if s.deps.Reports == nil {
		return scout.MarketReport{}, fmt.Errorf("report store disabled: %w", scout.ErrNotFound)
	}
	report, err := s.deps.Reports.GetReport(ctx, id)
	if err != nil {
		return scout.MarketReport{}, fmt.Errorf("get report: %w", err)
	}
	return report, nil
}

func validateMarketQuery(q scout.MarketQuery) error {
	switch {
	case strings.TrimSpace(q.Vehicle) == "":
		return fmt.Errorf("vehicle is required: %w", scout.ErrInvalidQuery)
	case q.MinPrice < 0 || q.MaxPrice < 0:
		return fmt.Errorf("prices must be non-negative: %w", scout.ErrInvalidQuery)
	case math.IsNaN(q.MinPrice) || math.IsNaN(q.MaxPrice) || math.IsInf(q.MaxPrice, 0) || math.IsInf(q.MinPrice, 0):
		return fmt.Errorf("prices must be finite: %w", scout.ErrInvalidQuery)
	case q.MinPrice > q.MaxPrice:
		return fmt.Errorf("min_price %g exceeds max_price %g: %w", q.MinPrice, q.MaxPrice, scout.ErrInvalidQuery)
	}
	return nil
}
