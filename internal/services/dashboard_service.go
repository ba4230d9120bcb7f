package services

import (
	"fmt"

	"pixelmint_go_backend/internal/models"

	"github.com/google/uuid"
)

// ProviderSummary is the per-provider row of the dashboard view.
type ProviderSummary struct {
	Name           string  `json:"name"`
	DisplayName    string  `json:"displayName"`
	IsActive       bool    `json:"isActive"`
	IsFreeTier     bool    `json:"isFreeTier"`
	Unconstrained  bool    `json:"unconstrained"`
	UsageCount     int64   `json:"usageCount"`
	QuotaLimit     *int64  `json:"quotaLimit,omitempty"`
	Remaining      *int64  `json:"remaining,omitempty"`
	Eligible       bool    `json:"eligible"`
	CostPerRequest float64 `json:"costPerRequest"`
	CostUnit       string  `json:"costUnit,omitempty"`
}

// DashboardStats aggregates a user's generation activity with the live
// provider catalog state.
type DashboardStats struct {
	TotalGenerations int64             `json:"totalGenerations"`
	Completed        int64             `json:"completed"`
	Failed           int64             `json:"failed"`
	TotalCost        float64           `json:"totalCost"`
	ByProvider       map[string]int64  `json:"generationsByProvider"`
	Providers        []ProviderSummary `json:"providers"`
}

// DashboardService builds the stats view consumed by the dashboard page.
type DashboardService struct {
	providers ProviderStore
	history   HistoryStore
	quota     QuotaTracker
	status    StatusEvaluator
}

func NewDashboardService(providers ProviderStore, history HistoryStore, quota QuotaTracker, status StatusEvaluator) *DashboardService {
	return &DashboardService{providers: providers, history: history, quota: quota, status: status}
}

func (s *DashboardService) Stats(userID uuid.UUID) (*DashboardStats, error) {
	records, err := s.history.ListAllByUser(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load generation history: %w", err)
	}

	stats := &DashboardStats{ByProvider: make(map[string]int64)}
	for _, record := range records {
		stats.TotalGenerations++
		switch record.Status {
		case models.GenerationStatusCompleted:
			stats.Completed++
			stats.TotalCost += record.Cost
		case models.GenerationStatusFailed:
			stats.Failed++
		}
		if record.ProviderUsed != "" {
			stats.ByProvider[record.ProviderUsed]++
		}
	}

	providers, err := s.providers.List()
	if err != nil {
		return nil, fmt.Errorf("failed to load provider catalog: %w", err)
	}
	for i := range providers {
		provider := &providers[i]
		summary := ProviderSummary{
			Name:           provider.Name,
			DisplayName:    provider.DisplayName,
			IsActive:       provider.IsActive,
			Unconstrained:  provider.Unconstrained,
			UsageCount:     provider.UsageCount,
			QuotaLimit:     provider.QuotaLimit(),
			CostPerRequest: provider.CostPerRequest,
			CostUnit:       provider.CostUnit,
		}
		evaluated := s.status.Evaluate(provider)
		summary.Eligible = evaluated.Eligible
		summary.IsFreeTier = evaluated.FreeTier
		if remaining, bounded := s.quota.Remaining(provider); bounded {
			summary.Remaining = &remaining
		}
		stats.Providers = append(stats.Providers, summary)
	}
	return stats, nil
}
