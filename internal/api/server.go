package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/partscout/internal/config"
	"github.com/JakeFAU/partscout/internal/extract"
	"github.com/JakeFAU/partscout/internal/id/uuid"
	"github.com/JakeFAU/partscout/internal/metrics"
	"github.com/JakeFAU/partscout/internal/scout"
	"github.com/JakeFAU/partscout/internal/source"
)

// FailedBranchesHeader lists, comma separated, the branches a multi-branch search could not
// scrape. The body still carries an empty list for each of them.
const FailedBranchesHeader = "X-Failed-Branches"

// Service is the pipeline surface the handlers drive.
type Service interface {
	SearchInventory(ctx context.Context, q scout.InventoryQuery) (scout.InventoryResult, error)
	AnalyzeMarket(ctx context.Context, q scout.MarketQuery) (scout.MarketReport, error)
	GetReport(ctx context.Context, id string) (scout.MarketReport, error)
}

// Server wires HTTP handlers to the pipeline.
type Server struct {
	router  chi.Router
	svc     Service
	catalog *source.Catalog
	cfg     config.Config
	logger  *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(svc Service, catalog *source.Catalog, cfg config.Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		svc:     svc,
		catalog: catalog,
		cfg:     cfg,
		logger:  logger,
	}
	timeout := cfg.RequestTimeout()
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(metrics.Middleware)

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Group(func(r chi.Router) {
		r.Use(timeoutMiddleware(timeout))
		if cfg.Auth.Enabled {
			r.Use(apiKeyMiddleware(cfg.Auth.APIKey))
		}
		r.Get("/branches", s.listBranches)
		r.Post("/search", s.search)
		r.Get("/scrape/{location}", s.scrapeLocation)
		r.Get("/scrape_ebay/{vehicle}", s.scrapeMarket)
		r.Get("/v1/reports/{report_id}", s.getReport)
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	if s.svc == nil || s.catalog == nil {
		writeError(w, http.StatusServiceUnavailable, "pipeline not configured")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) listBranches(w http.ResponseWriter, _ *http.Request) {
	names := []string{source.AllLocations}
	for _, b := range s.catalog.Branches() {
		names = append(names, b.Name)
	}
	writeJSON(w, http.StatusOK, map[string][]string{"locations": names})
}

type searchRequest struct {
	Make     string `json:"make"`
	Model    string `json:"model"`
	Year     string `json:"year"`
	Location string `json:"location"`
}

func (s *Server) search(w http.ResponseWriter, r *http.Request) {
	req, err := decodeSearch(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.runInventory(w, r, scout.InventoryQuery{
		Location: req.Location,
		Make:     strings.TrimSpace(req.Make),
		Model:    strings.TrimSpace(req.Model),
		Year:     strings.TrimSpace(req.Year),
	}, http.StatusBadRequest)
}

func (s *Server) scrapeLocation(w http.ResponseWriter, r *http.Request) {
	s.runInventory(w, r, scout.InventoryQuery{Location: chi.URLParam(r, "location")}, http.StatusNotFound)
}

func (s *Server) runInventory(w http.ResponseWriter, r *http.Request, q scout.InventoryQuery, unknownStatus int) {
	result, err := s.svc.SearchInventory(r.Context(), q)
	if err != nil {
		if errors.Is(err, scout.ErrUnknownBranch) {
			writeError(w, unknownStatus, err.Error())
			return
		}
		s.writeFailure(w, r, "inventory search failed", err)
		return
	}
	if len(result.Failed) > 0 {
		names := make([]string, 0, len(result.Failed))
		for _, f := range result.Failed {
			names = append(names, f.Branch)
		}
		w.Header().Set(FailedBranchesHeader, strings.Join(names, ","))
	}
	writeJSON(w, http.StatusOK, result.Branches)
}

type analysisRow struct {
	extract.AnalysisRecord
	SearchURL string `json:"search_url"`
}

type marketResponse struct {
	ID           string               `json:"id"`
	Vehicle      string               `json:"vehicle"`
	Band         extract.PriceBand    `json:"band"`
	SourceURL    string               `json:"source_url"`
	SnapshotURI  string               `json:"snapshot_uri,omitempty"`
	SoldItems    []extract.SoldItem   `json:"sold_items"`
	Analysis     []analysisRow        `json:"analysis"`
	Summary      extract.Summary      `json:"summary"`
	Distribution []extract.PriceRange `json:"distribution"`
}

func (s *Server) scrapeMarket(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	minPrice, err := floatParam(query.Get("min_price"), s.cfg.Sources.DefaultMinPrice)
	if err != nil {
		writeError(w, http.StatusBadRequest, "min_price: "+err.Error())
		return
	}
	maxPrice, err := floatParam(query.Get("max_price"), s.cfg.Sources.DefaultMaxPrice)
	if err != nil {
		writeError(w, http.StatusBadRequest, "max_price: "+err.Error())
		return
	}
	var sortKey extract.SortKey
	if raw := query.Get("sort"); raw != "" {
		if sortKey, err = extract.ParseSortKey(raw); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	ascending, err := orderParam(query.Get("order"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	report, err := s.svc.AnalyzeMarket(r.Context(), scout.MarketQuery{
		Vehicle:  chi.URLParam(r, "vehicle"),
		MinPrice: minPrice,
		MaxPrice: maxPrice,
	})
	if err != nil {
		if errors.Is(err, scout.ErrInvalidQuery) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.writeFailure(w, r, "market analysis failed", err)
		return
	}

	records := report.Analysis
	if sortKey != "" {
		records = extract.SortAnalysis(records, sortKey, ascending)
	}
	rows := make([]analysisRow, 0, len(records))
	for _, rec := range records {
		rows = append(rows, analysisRow{AnalysisRecord: rec, SearchURL: s.catalog.ItemSearchURL(rec.ItemName)})
	}
	writeJSON(w, http.StatusOK, marketResponse{
		ID:           report.ID,
		Vehicle:      report.Vehicle,
		Band:         report.Band,
		SourceURL:    report.SourceURL,
		SnapshotURI:  report.SnapshotURI,
		SoldItems:    report.SoldItems,
		Analysis:     rows,
		Summary:      report.Summary,
		Distribution: report.Distribution,
	})
}

func (s *Server) getReport(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "report_id")
	if err := uuid.Validate(id); err != nil {
		writeError(w, http.StatusBadRequest, "invalid report id")
		return
	}
	report, err := s.svc.GetReport(r.Context(), id)
	if err != nil {
		if errors.Is(err, scout.ErrNotFound) {
			writeError(w, http.StatusNotFound, "report not found")
			return
		}
		s.writeFailure(w, r, "get report failed", err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// writeFailure logs err and maps it to a gateway status: the pipeline's failures are almost
// always the target site or the browser.
func (s *Server) writeFailure(w http.ResponseWriter, r *http.Request, msg string, err error) {
	s.logger.Error(msg, zap.String("request_id", RequestID(r.Context())), zap.Error(err))
	status := http.StatusBadGateway
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		status = http.StatusServiceUnavailable
	}
	writeError(w, status, err.Error())
}

func decodeSearch(r *http.Request) (searchRequest, error) {
	var req searchRequest
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return searchRequest{}, fmt.Errorf("invalid JSON")
		}
		return req, nil
	}
	if err := r.ParseForm(); err != nil {
		return searchRequest{}, fmt.Errorf("invalid form: %w", err)
	}
	req.Make = r.PostForm.Get("make")
	req.Model = r.PostForm.Get("model")
	req.Year = r.PostForm.Get("year")
	req.Location = r.PostForm.Get("location")
	return req, nil
}

func floatParam(raw string, def float64) (float64, error) {
	if strings.TrimSpace(raw) == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", raw)
	}
	return v, nil
}

func orderParam(raw string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "asc", "ascending":
		return true, nil
	case "desc", "descending":
		return false, nil
	default:
		return false, fmt.Errorf("unknown order %q", raw)
	}
}
