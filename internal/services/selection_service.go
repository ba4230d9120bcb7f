package services

import (
	"fmt"
	"sort"

	"pixelmint_go_backend/internal/models"

	"github.com/rs/zerolog"
)

// SelectionService implements ProviderSelector. Given identical
// preferences, attempted set and provider state, it always returns the
// same choice; the retry loop depends on that determinism.
type SelectionService struct {
	store  ProviderStore
	status StatusEvaluator
	rank   map[string]int
	log    zerolog.Logger
}

// NewSelectionService builds a selector with the injected global priority
// ordering. Providers absent from the ordering sort after every ranked
// one, keeping their relative catalog order.
func NewSelectionService(store ProviderStore, status StatusEvaluator, priorityOrder []string, log zerolog.Logger) *SelectionService {
	rank := make(map[string]int, len(priorityOrder))
	for i, name := range priorityOrder {
		rank[name] = i
	}
	return &SelectionService{store: store, status: status, rank: rank, log: log}
}

func (s *SelectionService) rankOf(name string) int {
	if r, ok := s.rank[name]; ok {
		return r
	}
	return len(s.rank)
}

// Select picks the next provider to try, or nil when no eligible
// candidate remains.
func (s *SelectionService) Select(prefs models.Preferences, attempted []string) (*Candidate, error) {
	active, err := s.store.ListActive()
	if err != nil {
		return nil, fmt.Errorf("failed to list active providers: %w", err)
	}

	attemptedSet := make(map[string]struct{}, len(attempted))
	for _, name := range attempted {
		attemptedSet[name] = struct{}{}
	}

	var candidates []Candidate
	for i := range active {
		provider := active[i]
		if _, tried := attemptedSet[provider.Name]; tried {
			continue
		}
		status := s.status.Evaluate(&provider)
		if !status.Eligible {
			continue
		}
		candidates = append(candidates, Candidate{Provider: provider, Status: status})
	}

	if len(candidates) == 0 {
		s.log.Debug().Strs("attempted", attempted).Msg("no eligible provider left")
		return nil, nil
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return s.rankOf(candidates[i].Provider.Name) < s.rankOf(candidates[j].Provider.Name)
	})

	// Honor an explicit preference unless the user also asked for free
	// tier and the preferred provider is not currently free; then the
	// free-tier narrowing below takes over.
	if prefs.PreferredProvider != "" && prefs.PreferredProvider != models.PreferredProviderAuto {
		for i := range candidates {
			if candidates[i].Provider.Name != prefs.PreferredProvider {
				continue
			}
			if prefs.PrioritizeFree && !candidates[i].Status.FreeTier {
				s.log.Debug().Str("preferred", prefs.PreferredProvider).Msg("preferred provider is not free tier, looking for free alternatives")
				break
			}
			return &candidates[i], nil
		}
	}

	pool := candidates
	if prefs.PrioritizeFree {
		var free []Candidate
		for i := range candidates {
			if candidates[i].Status.FreeTier {
				free = append(free, candidates[i])
			}
		}
		// Never let the free-tier filter cause total exhaustion when
		// paid alternatives exist.
		if len(free) > 0 {
			pool = free
		}
	}

	return &pool[0], nil
}
