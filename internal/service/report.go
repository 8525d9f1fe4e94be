package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"challan-ledger/internal/clients"
	"challan-ledger/internal/domain"
	"challan-ledger/internal/repository"
)

type ReportStore interface {
	Outstanding(ctx context.Context, f repository.ChallansFilter) (*repository.OutstandingSummary, error)
	StatusCounts(ctx context.Context, f repository.ChallansFilter) ([]repository.StatusCount, error)
	ClassRollups(ctx context.Context, f repository.ChallansFilter) ([]repository.ClassRollup, error)
}

type OutstandingReport struct {
	Challans     int64                          `json:"challans"`
	TotalBilled  int64                          `json:"total_billed"`
	TotalPaid    int64                          `json:"total_paid"`
	Outstanding  int64                          `json:"outstanding"`
	StatusCounts map[domain.ChallanStatus]int64 `json:"status_counts"`
}

const reportCacheTTL = 30 * time.Second

// ReportService serves the read-only aggregation view. Results may lag
// in-flight payment writes by up to the cache TTL; rollups are projections
// and never touch ledger state.
type ReportService struct {
	store ReportStore
	redis *clients.RedisClient
}

func NewReportService(store ReportStore, redis *clients.RedisClient) *ReportService {
	return &ReportService{store: store, redis: redis}
}

func (s *ReportService) Outstanding(ctx context.Context, f repository.ChallansFilter) (*OutstandingReport, error) {
	cacheKey := "reports:outstanding:" + filterKey(f)

	if cached, ok := s.fromCache(ctx, cacheKey); ok {
		var r OutstandingReport
		if err := json.Unmarshal([]byte(cached), &r); err == nil {
			return &r, nil
		}
	}

	summary, err := s.store.Outstanding(ctx, f)
	if err != nil {
		return nil, err
	}

	counts, err := s.store.StatusCounts(ctx, f)
	if err != nil {
		return nil, err
	}

	r := OutstandingReport{
		Challans:     summary.Challans,
		TotalBilled:  summary.TotalBilled,
		TotalPaid:    summary.TotalPaid,
		Outstanding:  summary.Outstanding,
		StatusCounts: make(map[domain.ChallanStatus]int64, len(counts)),
	}
	for _, sc := range counts {
		r.StatusCounts[sc.Status] = sc.Count
	}

	s.toCache(ctx, cacheKey, &r)
	return &r, nil
}

func (s *ReportService) ClassBreakdown(ctx context.Context, f repository.ChallansFilter) ([]repository.ClassRollup, error) {
	cacheKey := "reports:classes:" + filterKey(f)

	if cached, ok := s.fromCache(ctx, cacheKey); ok {
		var rollups []repository.ClassRollup
		if err := json.Unmarshal([]byte(cached), &rollups); err == nil {
			return rollups, nil
		}
	}

	rollups, err := s.store.ClassRollups(ctx, f)
	if err != nil {
		return nil, err
	}

	s.toCache(ctx, cacheKey, rollups)
	return rollups, nil
}

func (s *ReportService) fromCache(ctx context.Context, key string) (string, bool) {
	if s.redis == nil {
		return "", false
	}
	data, err := s.redis.Get(ctx, key)
	if err != nil {
		return "", false
	}
	return data, true
}

func (s *ReportService) toCache(ctx context.Context, key string, v any) {
	if s.redis == nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	_ = s.redis.Set(ctx, key, string(data), reportCacheTTL)
}

func filterKey(f repository.ChallansFilter) string {
	var student, class, status, from, to string
	if f.StudentID != nil {
		student = *f.StudentID
	}
	if f.ClassName != nil {
		class = *f.ClassName
	}
	if f.Status != nil {
		status = string(*f.Status)
	}
	if f.IssuedFrom != nil {
		from = f.IssuedFrom.Format("2006-01-02")
	}
	if f.IssuedTo != nil {
		to = f.IssuedTo.Format("2006-01-02")
	}
	return fmt.Sprintf("%s:%s:%s:%s:%s", student, class, status, from, to)
}
