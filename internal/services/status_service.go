package services

import (
	"pixelmint_go_backend/internal/models"
)

// StatusService implements StatusEvaluator: eligible = active AND has
// remaining quota, except for unconstrained providers which stay eligible
// while active regardless of measured usage.
type StatusService struct {
	quota QuotaTracker
}

func NewStatusService(quota QuotaTracker) *StatusService {
	return &StatusService{quota: quota}
}

func (s *StatusService) Evaluate(p *models.ProviderConfig) ProviderStatus {
	remaining, bounded := s.quota.Remaining(p)
	status := ProviderStatus{
		Remaining: remaining,
		Unbounded: !bounded,
		FreeTier:  p.IsFreeTier,
	}

	// Unconstrained providers are billed outside the quota system: free
	// tier state is fixed by configuration, eligibility only by the
	// active flag.
	if p.Unconstrained {
		status.Eligible = p.IsActive
		return status
	}

	if !bounded {
		status.Eligible = p.IsActive
		return status
	}

	if remaining == 0 {
		// A provider that has burned through its free allotment is no
		// longer free, whatever its configuration says.
		status.FreeTier = false
	}
	status.Eligible = p.IsActive && remaining > 0
	return status
}
