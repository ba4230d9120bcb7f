package services

import (
	"context"
	"fmt"

	"pixelmint_go_backend/internal/models"
	"pixelmint_go_backend/internal/utils/broker"

	"github.com/rs/zerolog"
)

// QuotaUpdateTopic is the broker topic carrying usage snapshots after
// each recorded consumption.
const QuotaUpdateTopic = "quota_update"

// QuotaUpdate is the snapshot published after a recorded usage.
type QuotaUpdate struct {
	Provider   string `json:"provider"`
	UsageCount int64  `json:"usageCount"`
	Remaining  *int64 `json:"remaining,omitempty"`
}

// QuotaService implements QuotaTracker over the provider store. Usage is
// recorded exactly once per successful generation, never for failed or
// abandoned attempts; that discipline belongs to the orchestrator.
type QuotaService struct {
	store         ProviderStore
	messageBroker *broker.Broker
	log           zerolog.Logger
}

func NewQuotaService(store ProviderStore, messageBroker *broker.Broker, log zerolog.Logger) *QuotaService {
	return &QuotaService{store: store, messageBroker: messageBroker, log: log}
}

// Remaining computes max(limit - usage, 0). A provider without any
// configured ceiling is unbounded and reports bounded == false.
func (s *QuotaService) Remaining(p *models.ProviderConfig) (int64, bool) {
	limit := p.QuotaLimit()
	if limit == nil {
		return 0, false
	}
	remaining := *limit - p.UsageCount
	if remaining < 0 {
		remaining = 0
	}
	return remaining, true
}

// RecordUsage increments the provider's usage counter by exactly one,
// atomically with respect to concurrent callers, then publishes a quota
// snapshot for live observers. The publish is best effort.
func (s *QuotaService) RecordUsage(ctx context.Context, providerName string) error {
	if err := s.store.IncrementUsage(ctx, providerName); err != nil {
		return fmt.Errorf("failed to record usage for %s: %w", providerName, err)
	}

	if s.messageBroker != nil {
		provider, err := s.store.GetByName(providerName)
		if err != nil {
			s.log.Warn().Err(err).Str("provider", providerName).Msg("could not load provider for quota update broadcast")
			return nil
		}
		update := QuotaUpdate{Provider: provider.Name, UsageCount: provider.UsageCount}
		if remaining, bounded := s.Remaining(provider); bounded {
			update.Remaining = &remaining
		}
		s.messageBroker.Publish(QuotaUpdateTopic, update)
	}
	return nil
}
