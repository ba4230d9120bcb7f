package services_test

import (
	"testing"

	"pixelmint_go_backend/internal/models"
	"pixelmint_go_backend/internal/services"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

var testPriority = []string{"stablediffusion", "kieai", "photai", "gemini"}

func quotaOf(v int64) *int64 { return &v }

func provider(name string, usage int64, quota *int64, free, active, unconstrained bool) models.ProviderConfig {
	return models.ProviderConfig{
		Name:          name,
		DisplayName:   name,
		IsFreeTier:    free,
		IsActive:      active,
		UsageCount:    usage,
		QuotaCredits:  quota,
		Unconstrained: unconstrained,
	}
}

func newSelector(store services.ProviderStore) *services.SelectionService {
	quota := services.NewQuotaService(store, nil, zerolog.Nop())
	status := services.NewStatusService(quota)
	return services.NewSelectionService(store, status, testPriority, zerolog.Nop())
}

func autoPrefs() models.Preferences {
	return models.Preferences{PreferredProvider: models.PreferredProviderAuto, PrioritizeFree: true}
}

func TestSelectPriorityOrdering(t *testing.T) {
	mockStore := new(MockProviderStore)
	selector := newSelector(mockStore)

	t.Run("highest ranked eligible provider wins", func(t *testing.T) {
		mockStore.ExpectedCalls = nil
		mockStore.On("ListActive").Return([]models.ProviderConfig{
			provider("gemini", 0, nil, true, true, true),
			provider("photai", 0, quotaOf(25), true, true, false),
			provider("stablediffusion", 0, quotaOf(27), true, true, false),
		}, nil)

		candidate, err := selector.Select(autoPrefs(), nil)

		assert.NoError(t, err)
		assert.NotNil(t, candidate)
		assert.Equal(t, "stablediffusion", candidate.Provider.Name)
	})

	t.Run("unranked providers sort after every ranked one", func(t *testing.T) {
		mockStore.ExpectedCalls = nil
		mockStore.On("ListActive").Return([]models.ProviderConfig{
			provider("newcomer", 0, quotaOf(100), true, true, false),
			provider("photai", 0, quotaOf(25), true, true, false),
		}, nil)

		candidate, err := selector.Select(autoPrefs(), nil)

		assert.NoError(t, err)
		assert.Equal(t, "photai", candidate.Provider.Name)
	})

	t.Run("selection is deterministic for identical inputs", func(t *testing.T) {
		mockStore.ExpectedCalls = nil
		mockStore.On("ListActive").Return([]models.ProviderConfig{
			provider("kieai", 0, quotaOf(8), true, true, false),
			provider("photai", 0, quotaOf(25), true, true, false),
		}, nil)

		first, err := selector.Select(autoPrefs(), nil)
		assert.NoError(t, err)
		second, err := selector.Select(autoPrefs(), nil)
		assert.NoError(t, err)

		assert.Equal(t, first.Provider.Name, second.Provider.Name)
	})
}

func TestSelectPreferredProvider(t *testing.T) {
	mockStore := new(MockProviderStore)
	selector := newSelector(mockStore)

	t.Run("eligible preferred provider is honored over priority order", func(t *testing.T) {
		mockStore.ExpectedCalls = nil
		mockStore.On("ListActive").Return([]models.ProviderConfig{
			provider("stablediffusion", 0, quotaOf(27), true, true, false),
			provider("photai", 0, quotaOf(25), true, true, false),
		}, nil)

		prefs := models.Preferences{PreferredProvider: "photai", PrioritizeFree: true}
		candidate, err := selector.Select(prefs, nil)

		assert.NoError(t, err)
		assert.Equal(t, "photai", candidate.Provider.Name)
	})

	t.Run("non-free preferred provider is skipped when user prioritizes free tier", func(t *testing.T) {
		mockStore.ExpectedCalls = nil
		mockStore.On("ListActive").Return([]models.ProviderConfig{
			provider("stablediffusion", 0, quotaOf(27), true, true, false),
			provider("photai", 0, quotaOf(25), false, true, false),
		}, nil)

		prefs := models.Preferences{PreferredProvider: "photai", PrioritizeFree: true}
		candidate, err := selector.Select(prefs, nil)

		assert.NoError(t, err)
		assert.Equal(t, "stablediffusion", candidate.Provider.Name)
	})

	t.Run("non-free preferred provider is honored when free tier is not prioritized", func(t *testing.T) {
		mockStore.ExpectedCalls = nil
		mockStore.On("ListActive").Return([]models.ProviderConfig{
			provider("stablediffusion", 0, quotaOf(27), true, true, false),
			provider("photai", 0, quotaOf(25), false, true, false),
		}, nil)

		prefs := models.Preferences{PreferredProvider: "photai", PrioritizeFree: false}
		candidate, err := selector.Select(prefs, nil)

		assert.NoError(t, err)
		assert.Equal(t, "photai", candidate.Provider.Name)
	})

	t.Run("preferred unconstrained free provider wins on the first attempt", func(t *testing.T) {
		mockStore.ExpectedCalls = nil
		mockStore.On("ListActive").Return([]models.ProviderConfig{
			provider("stablediffusion", 0, quotaOf(27), true, true, false),
			provider("kieai", 0, quotaOf(8), true, true, false),
			provider("gemini", 300, nil, true, true, true),
		}, nil)

		prefs := models.Preferences{PreferredProvider: "gemini", PrioritizeFree: true}
		candidate, err := selector.Select(prefs, nil)

		assert.NoError(t, err)
		assert.Equal(t, "gemini", candidate.Provider.Name)
		assert.True(t, candidate.Status.FreeTier)
	})

	t.Run("exhausted preferred provider falls back to priority order", func(t *testing.T) {
		mockStore.ExpectedCalls = nil
		mockStore.On("ListActive").Return([]models.ProviderConfig{
			provider("stablediffusion", 0, quotaOf(27), true, true, false),
			provider("photai", 25, quotaOf(25), true, true, false),
		}, nil)

		prefs := models.Preferences{PreferredProvider: "photai", PrioritizeFree: true}
		candidate, err := selector.Select(prefs, nil)

		assert.NoError(t, err)
		assert.Equal(t, "stablediffusion", candidate.Provider.Name)
	})
}

func TestSelectFreeTierNarrowing(t *testing.T) {
	mockStore := new(MockProviderStore)
	selector := newSelector(mockStore)

	t.Run("free tier candidates win over higher ranked paid ones", func(t *testing.T) {
		mockStore.ExpectedCalls = nil
		mockStore.On("ListActive").Return([]models.ProviderConfig{
			provider("stablediffusion", 0, quotaOf(27), false, true, false),
			provider("photai", 0, quotaOf(25), true, true, false),
		}, nil)

		candidate, err := selector.Select(autoPrefs(), nil)

		assert.NoError(t, err)
		assert.Equal(t, "photai", candidate.Provider.Name)
	})

	t.Run("falls back to the full pool when no free candidate remains", func(t *testing.T) {
		mockStore.ExpectedCalls = nil
		mockStore.On("ListActive").Return([]models.ProviderConfig{
			provider("stablediffusion", 0, quotaOf(27), false, true, false),
			provider("photai", 25, quotaOf(25), true, true, false),
		}, nil)

		candidate, err := selector.Select(autoPrefs(), nil)

		assert.NoError(t, err)
		assert.Equal(t, "stablediffusion", candidate.Provider.Name)
	})

	t.Run("provider with zero remaining quota is no longer free tier", func(t *testing.T) {
		mockStore.ExpectedCalls = nil
		mockStore.On("ListActive").Return([]models.ProviderConfig{
			provider("kieai", 8, quotaOf(8), true, true, false),
			provider("gemini", 500, nil, true, true, true),
		}, nil)

		candidate, err := selector.Select(autoPrefs(), nil)

		assert.NoError(t, err)
		assert.Equal(t, "gemini", candidate.Provider.Name)
		assert.True(t, candidate.Status.FreeTier)
	})
}

func TestSelectEligibility(t *testing.T) {
	mockStore := new(MockProviderStore)
	selector := newSelector(mockStore)

	t.Run("attempted providers are excluded", func(t *testing.T) {
		mockStore.ExpectedCalls = nil
		mockStore.On("ListActive").Return([]models.ProviderConfig{
			provider("stablediffusion", 0, quotaOf(27), true, true, false),
			provider("kieai", 0, quotaOf(8), true, true, false),
		}, nil)

		candidate, err := selector.Select(autoPrefs(), []string{"stablediffusion"})

		assert.NoError(t, err)
		assert.Equal(t, "kieai", candidate.Provider.Name)
	})

	t.Run("inactive providers are never selected", func(t *testing.T) {
		mockStore.ExpectedCalls = nil
		mockStore.On("ListActive").Return([]models.ProviderConfig{
			provider("stablediffusion", 0, quotaOf(27), true, false, false),
			provider("kieai", 0, quotaOf(8), true, true, false),
		}, nil)

		candidate, err := selector.Select(autoPrefs(), nil)

		assert.NoError(t, err)
		assert.Equal(t, "kieai", candidate.Provider.Name)
	})

	t.Run("unconstrained provider stays eligible past any usage level", func(t *testing.T) {
		mockStore.ExpectedCalls = nil
		mockStore.On("ListActive").Return([]models.ProviderConfig{
			provider("gemini", 10000, nil, true, true, true),
		}, nil)

		candidate, err := selector.Select(autoPrefs(), nil)

		assert.NoError(t, err)
		assert.Equal(t, "gemini", candidate.Provider.Name)
		assert.True(t, candidate.Status.Unbounded)
	})

	t.Run("returns nil when every provider is exhausted or attempted", func(t *testing.T) {
		mockStore.ExpectedCalls = nil
		mockStore.On("ListActive").Return([]models.ProviderConfig{
			provider("stablediffusion", 27, quotaOf(27), true, true, false),
			provider("kieai", 0, quotaOf(8), true, true, false),
		}, nil)

		candidate, err := selector.Select(autoPrefs(), []string{"kieai"})

		assert.NoError(t, err)
		assert.Nil(t, candidate)
	})
}
