package services

import (
	"context"

	"pixelmint_go_backend/internal/models"

	"github.com/google/uuid"
)

// ProviderStore is the persistence boundary for the provider catalog and
// its usage counters. IncrementUsage must be atomic with respect to
// concurrent callers.
type ProviderStore interface {
	List() ([]models.ProviderConfig, error)
	ListActive() ([]models.ProviderConfig, error)
	GetByName(name string) (*models.ProviderConfig, error)
	IncrementUsage(ctx context.Context, name string) error
	AddCredits(name string, credits int64) error
	TouchChecked(name string) error
	Update(p *models.ProviderConfig) error
}

// QuotaTracker answers remaining-quota questions and records consumption.
type QuotaTracker interface {
	// Remaining returns the remaining allotment and whether a ceiling is
	// configured at all. bounded == false means unlimited.
	Remaining(p *models.ProviderConfig) (remaining int64, bounded bool)
	RecordUsage(ctx context.Context, providerName string) error
}

// ProviderStatus is the evaluated live state of one provider.
type ProviderStatus struct {
	Eligible  bool
	FreeTier  bool
	Remaining int64
	Unbounded bool
}

// StatusEvaluator derives a provider's live eligibility from catalog and
// quota state.
type StatusEvaluator interface {
	Evaluate(p *models.ProviderConfig) ProviderStatus
}

// Candidate pairs a provider with its evaluated status during selection.
type Candidate struct {
	Provider models.ProviderConfig
	Status   ProviderStatus
}

// ProviderSelector picks the next provider to try, or nil when no
// eligible provider remains.
type ProviderSelector interface {
	Select(prefs models.Preferences, attempted []string) (*Candidate, error)
}

// ImageGenerator dispatches a generation call to the adapter registered
// for the named provider. It blocks until a terminal outcome and returns
// the stored asset URL on success.
type ImageGenerator interface {
	Generate(ctx context.Context, providerName, prompt string, params GenerationParams) (string, error)
}

// HistoryStore is the persistence boundary for generation request records.
type HistoryStore interface {
	Create(h *models.ImageHistory) error
	Save(h *models.ImageHistory) error
	GetByID(id uint) (*models.ImageHistory, error)
	GetByIDForUser(id uint, userID uuid.UUID) (*models.ImageHistory, error)
	ListByUser(userID uuid.UUID, page, limit int) ([]models.ImageHistory, int64, error)
	ListAllByUser(userID uuid.UUID) ([]models.ImageHistory, error)
	Delete(id uint) error
}

// GenerationLogStore appends and reads the audit trail.
type GenerationLogStore interface {
	AppendStep(historyID uint, step, message string) error
	ListByHistory(historyID uint) ([]models.GenerationLog, error)
}

// UserStore loads users for preference lookup and ownership checks.
type UserStore interface {
	GetByID(id uuid.UUID) (*models.User, error)
}

// RemoteStatus is the optional enrichment returned by a status probe.
// The local quota tracker stays authoritative for eligibility.
type RemoteStatus struct {
	Reachable       bool   `json:"reachable"`
	Message         string `json:"message,omitempty"`
	RemoteQuotaHint *int64 `json:"remoteQuotaHint,omitempty"`
}

// StatusProbe checks a provider's remote endpoint for reachability.
type StatusProbe interface {
	CheckRemoteStatus(ctx context.Context, p *models.ProviderConfig) RemoteStatus
}

// ImageStorage persists generated assets and returns their public URL.
type ImageStorage interface {
	UploadImage(ctx context.Context, data []byte, contentType string) (string, error)
	UploadFromURL(ctx context.Context, srcURL string) (string, error)
}
