package service

import (
	"context"
	"fmt"

	"backend/internal/repository"
)

// --- DTOs ---

type DashboardBucket struct {
	Key   string `json:"key"`
	Count int64  `json:"count"`
	Gross string `json:"gross"`
}

// InvoiceDashboard is the review-queue overview: how much work sits in each
// status, where it will be filed, and how big the manual triage queue is.
type InvoiceDashboard struct {
	ByStatus   []DashboardBucket `json:"by_status"`
	ByModule   []DashboardBucket `json:"by_module"`
	Unassigned int64             `json:"unassigned"`
}

// --- Interface ---

type StatisticsService interface {
	GetInvoiceDashboard(ctx context.Context) (InvoiceDashboard, error)
}

type statisticsService struct {
	statsRepo repository.StatisticsRepository
}

func NewStatisticsService(statsRepo repository.StatisticsRepository) StatisticsService {
	return &statisticsService{statsRepo: statsRepo}
}

func (s *statisticsService) GetInvoiceDashboard(ctx context.Context) (InvoiceDashboard, error) {
	byStatus, err := s.statsRepo.CountInvoicesByStatus(ctx)
	if err != nil {
		return InvoiceDashboard{}, fmt.Errorf("failed to build status breakdown: %w", err)
	}

	byModule, err := s.statsRepo.CountInvoicesByModule(ctx)
	if err != nil {
		return InvoiceDashboard{}, fmt.Errorf("failed to build module breakdown: %w", err)
	}

	unassigned, err := s.statsRepo.CountUnassignedInvoices(ctx)
	if err != nil {
		return InvoiceDashboard{}, fmt.Errorf("failed to count unassigned invoices: %w", err)
	}

	return InvoiceDashboard{
		ByStatus:   toBuckets(byStatus),
		ByModule:   toBuckets(byModule),
		Unassigned: unassigned,
	}, nil
}

func toBuckets(counts []repository.StatusCount) []DashboardBucket {
	buckets := make([]DashboardBucket, 0, len(counts))
	for _, c := range counts {
		buckets = append(buckets, DashboardBucket{Key: c.Key, Count: c.Count, Gross: c.Gross})
	}
	return buckets
}
