package service

import (
	"context"

	"github.com/avolkov/shopcore/internal/model"
)

type AnalyticsStore interface {
	GetDashboardStats(ctx context.Context) (model.DashboardStats, error)
	ListTopProducts(ctx context.Context, limit int) ([]model.TopProduct, error)
	GetRevenueSummary(ctx context.Context) (model.RevenueSummary, error)
}

// AnalyticsService serves the admin reports. Everything here is
// read-only aggregation, computed by storage in single queries.
type AnalyticsService struct {
	store AnalyticsStore
}

func NewAnalyticsService(store AnalyticsStore) *AnalyticsService {
	return &AnalyticsService{store: store}
}

func (s *AnalyticsService) DashboardStats(ctx context.Context) (model.DashboardStats, error) {
	return s.store.GetDashboardStats(ctx)
}

func (s *AnalyticsService) TopProducts(ctx context.Context, limit int) ([]model.TopProduct, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	return s.store.ListTopProducts(ctx, limit)
}

func (s *AnalyticsService) RevenueSummary(ctx context.Context) (model.RevenueSummary, error) {
	return s.store.GetRevenueSummary(ctx)
}
