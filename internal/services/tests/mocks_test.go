package services_test

import (
	"context"
	"sync"

	"pixelmint_go_backend/internal/models"
	"pixelmint_go_backend/internal/services"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

type MockProviderStore struct {
	mock.Mock
}

func (m *MockProviderStore) List() ([]models.ProviderConfig, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ProviderConfig), args.Error(1)
}

func (m *MockProviderStore) ListActive() ([]models.ProviderConfig, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ProviderConfig), args.Error(1)
}

func (m *MockProviderStore) GetByName(name string) (*models.ProviderConfig, error) {
	args := m.Called(name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ProviderConfig), args.Error(1)
}

func (m *MockProviderStore) IncrementUsage(ctx context.Context, name string) error {
	args := m.Called(ctx, name)
	return args.Error(0)
}

func (m *MockProviderStore) AddCredits(name string, credits int64) error {
	args := m.Called(name, credits)
	return args.Error(0)
}

func (m *MockProviderStore) TouchChecked(name string) error {
	args := m.Called(name)
	return args.Error(0)
}

func (m *MockProviderStore) Update(p *models.ProviderConfig) error {
	args := m.Called(p)
	return args.Error(0)
}

type MockQuotaTracker struct {
	mock.Mock
}

func (m *MockQuotaTracker) Remaining(p *models.ProviderConfig) (int64, bool) {
	args := m.Called(p)
	return args.Get(0).(int64), args.Bool(1)
}

func (m *MockQuotaTracker) RecordUsage(ctx context.Context, providerName string) error {
	args := m.Called(ctx, providerName)
	return args.Error(0)
}

type MockSelector struct {
	mock.Mock
}

func (m *MockSelector) Select(prefs models.Preferences, attempted []string) (*services.Candidate, error) {
	args := m.Called(prefs, attempted)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.Candidate), args.Error(1)
}

type MockGenerator struct {
	mock.Mock
}

func (m *MockGenerator) Generate(ctx context.Context, providerName, prompt string, params services.GenerationParams) (string, error) {
	args := m.Called(ctx, providerName, prompt, params)
	return args.String(0), args.Error(1)
}

type MockHistoryStore struct {
	mock.Mock

	mu      sync.Mutex
	created uint
}

func (m *MockHistoryStore) Create(h *models.ImageHistory) error {
	args := m.Called(h)
	if args.Error(0) == nil {
		m.mu.Lock()
		m.created++
		h.ID = m.created
		m.mu.Unlock()
	}
	return args.Error(0)
}

func (m *MockHistoryStore) Save(h *models.ImageHistory) error {
	args := m.Called(h)
	return args.Error(0)
}

func (m *MockHistoryStore) GetByID(id uint) (*models.ImageHistory, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ImageHistory), args.Error(1)
}

func (m *MockHistoryStore) GetByIDForUser(id uint, userID uuid.UUID) (*models.ImageHistory, error) {
	args := m.Called(id, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ImageHistory), args.Error(1)
}

func (m *MockHistoryStore) ListByUser(userID uuid.UUID, page, limit int) ([]models.ImageHistory, int64, error) {
	args := m.Called(userID, page, limit)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]models.ImageHistory), args.Get(1).(int64), args.Error(2)
}

func (m *MockHistoryStore) ListAllByUser(userID uuid.UUID) ([]models.ImageHistory, error) {
	args := m.Called(userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ImageHistory), args.Error(1)
}

func (m *MockHistoryStore) Delete(id uint) error {
	args := m.Called(id)
	return args.Error(0)
}

type MockUserStore struct {
	mock.Mock
}

func (m *MockUserStore) GetByID(id uuid.UUID) (*models.User, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

type MockLogStore struct {
	mock.Mock
}

func (m *MockLogStore) AppendStep(historyID uint, step, message string) error {
	args := m.Called(historyID, step, message)
	return args.Error(0)
}

func (m *MockLogStore) ListByHistory(historyID uint) ([]models.GenerationLog, error) {
	args := m.Called(historyID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.GenerationLog), args.Error(1)
}

// countingProviderStore is a minimal in-memory ProviderStore used by the
// concurrency test; the mutex stands in for the database's atomic update.
type countingProviderStore struct {
	mu        sync.Mutex
	providers map[string]*models.ProviderConfig
}

func newCountingProviderStore(providers ...*models.ProviderConfig) *countingProviderStore {
	store := &countingProviderStore{providers: make(map[string]*models.ProviderConfig)}
	for _, p := range providers {
		store.providers[p.Name] = p
	}
	return store
}

func (s *countingProviderStore) List() ([]models.ProviderConfig, error) {
	return s.ListActive()
}

func (s *countingProviderStore) ListActive() ([]models.ProviderConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.ProviderConfig
	for _, p := range s.providers {
		out = append(out, *p)
	}
	return out, nil
}

func (s *countingProviderStore) GetByName(name string) (*models.ProviderConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *s.providers[name]
	return &copied, nil
}

func (s *countingProviderStore) IncrementUsage(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.providers[name].UsageCount++
	return nil
}

func (s *countingProviderStore) AddCredits(name string, credits int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.providers[name]
	var current int64
	if p.QuotaCredits != nil {
		current = *p.QuotaCredits
	}
	total := current + credits
	p.QuotaCredits = &total
	return nil
}

func (s *countingProviderStore) TouchChecked(string) error { return nil }

func (s *countingProviderStore) Update(*models.ProviderConfig) error { return nil }
