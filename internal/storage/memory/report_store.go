package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/JakeFAU/partscout/internal/scout"
)

// ReportStore keeps market reports in a map guarded by a RWMutex.
type ReportStore struct {
	mu      sync.RWMutex
	reports map[string]scout.MarketReport
}

// NewReportStore constructs a ReportStore.
func NewReportStore() *ReportStore {
	return &ReportStore{reports: make(map[string]scout.MarketReport)}
}

// SaveReport stores report. IDs are write-once.
func (s *ReportStore) SaveReport(_ context.Context, report scout.MarketReport) error {
	if report.ID == "" {
		return errors.New("report id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.reports[report.ID]; exists {
		return fmt.Errorf("report %s already exists", report.ID)
	}
	s.reports[report.ID] = cloneReport(report)
	return nil
}

// GetReport returns the stored report or scout.ErrNotFound.
func (s *ReportStore) GetReport(_ context.Context, id string) (scout.MarketReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	report, ok := s.reports[id]
	if !ok {
		return scout.MarketReport{}, fmt.Errorf("report %s: %w", id, scout.ErrNotFound)
	}
	return cloneReport(report), nil
}

// Len reports how many reports are stored.
func (s *ReportStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.reports)
}

func cloneReport(r scout.MarketReport) scout.MarketReport {
	r.SoldItems = append(r.SoldItems[:0:0], r.SoldItems...)
	r.Analysis = append(r.Analysis[:0:0], r.Analysis...)
	r.Distribution = append(r.Distribution[:0:0], r.Distribution...)
	return r
}
