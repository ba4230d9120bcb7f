package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	apperrors "pixelmint_go_backend/internal/errors"
	"pixelmint_go_backend/internal/models"
	"pixelmint_go_backend/internal/progress"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// GenerationOrchestrator drives a generation request through the bounded
// failover loop: select a provider, delegate to its adapter, record the
// outcome, and either stop or move to the next candidate. A request's
// record always leaves the orchestrator as completed or failed, never
// pending.
type GenerationOrchestrator struct {
	users       UserStore
	history     HistoryStore
	selector    ProviderSelector
	generator   ImageGenerator
	quota       QuotaTracker
	maxAttempts int
	log         zerolog.Logger
}

func NewGenerationOrchestrator(
	users UserStore,
	history HistoryStore,
	selector ProviderSelector,
	generator ImageGenerator,
	quota QuotaTracker,
	maxAttempts int,
	log zerolog.Logger,
) *GenerationOrchestrator {
	return &GenerationOrchestrator{
		users:       users,
		history:     history,
		selector:    selector,
		generator:   generator,
		quota:       quota,
		maxAttempts: maxAttempts,
		log:         log,
	}
}

// forceFailed pushes a record that is still pending into failed state.
// Called on every exit path as a terminal-state guarantee.
func (o *GenerationOrchestrator) forceFailed(history *models.ImageHistory, message string) {
	if history == nil || history.Status != models.GenerationStatusPending {
		return
	}
	history.Status = models.GenerationStatusFailed
	if history.ErrorMessage == "" {
		history.ErrorMessage = message
	}
	if err := o.history.Save(history); err != nil {
		o.log.Error().Err(err).Uint("historyID", history.ID).Msg("failed to force pending record to failed")
	}
}

// GenerateImage runs the full failover state machine for a new request.
// The returned record is nil only for input errors (no record is created
// before the first provider selection) and unexpected pre-loop failures.
func (o *GenerationOrchestrator) GenerateImage(ctx context.Context, userID uuid.UUID, prompt string, params GenerationParams, reporter *progress.Reporter) (*models.ImageHistory, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, apperrors.New400Error("prompt is required")
	}

	// A disconnecting caller must not abort the run: the attempt completes
	// and is recorded whether or not anyone is still listening. Only the
	// stream write is skipped.
	ctx = context.WithoutCancel(ctx)

	reporter.Emit(progress.Event{Step: progress.StepStart, Message: "starting image generation"})

	user, err := o.users.GetByID(userID)
	if err != nil {
		reporter.Emit(progress.Event{Step: progress.StepUnexpectedError, Message: "user not found"})
		reporter.EndFailure(progress.EndError{Message: "internal server error", Error: "user not found"})
		return nil, apperrors.New500Error(fmt.Errorf("failed to load user %s: %w", userID, err))
	}
	reporter.Emit(progress.Event{Step: progress.StepUserFound, Message: "user loaded"})

	prefs := user.Preferences()

	var (
		history     *models.ImageHistory
		attempted   []string
		transitions []string
		lastErr     error
	)
	defer func() { o.forceFailed(history, "unexpected server error") }()

	for attempt := 1; attempt <= o.maxAttempts; attempt++ {
		reporter.Emit(progress.Event{
			Step:    progress.StepProviderSelection,
			Message: fmt.Sprintf("selecting provider (attempt %d/%d)", attempt, o.maxAttempts),
			Attempt: attempt,
		})

		candidate, err := o.selector.Select(prefs, attempted)
		if err != nil {
			reporter.Emit(progress.Event{Step: progress.StepUnexpectedError, Message: "provider selection failed", Error: err.Error()})
			reporter.EndFailure(progress.EndError{Message: "internal server error", Error: err.Error(), Attempted: attempted})
			return history, apperrors.New500Error(err)
		}
		if candidate == nil {
			// Terminal regardless of remaining attempt budget.
			lastErr = fmt.Errorf("no eligible provider available")
			reporter.Emit(progress.Event{
				Step:      progress.StepNoProvider,
				Message:   fmt.Sprintf("no provider available after %d attempt(s)", attempt),
				Attempted: attempted,
			})
			break
		}

		providerName := candidate.Provider.Name
		attempted = append(attempted, providerName)
		transitions = append(transitions, fmt.Sprintf("attempt %d: %s", attempt, providerName))

		reporter.Emit(progress.Event{
			Step:     progress.StepProviderSelected,
			Message:  fmt.Sprintf("selected provider %s", providerName),
			Provider: providerName,
			Attempt:  attempt,
		})

		if history == nil {
			history = &models.ImageHistory{
				UserID:       userID,
				Prompt:       prompt,
				Parameters:   params.Encode(),
				ProviderUsed: providerName,
				Status:       models.GenerationStatusPending,
			}
			if err := o.history.Create(history); err != nil {
				history = nil
				reporter.Emit(progress.Event{Step: progress.StepUnexpectedError, Message: "failed to create history record", Error: err.Error()})
				reporter.EndFailure(progress.EndError{Message: "internal server error", Error: err.Error(), Attempted: attempted})
				return nil, apperrors.New500Error(fmt.Errorf("failed to create history record: %w", err))
			}
			reporter.BindHistory(history.ID)
			reporter.Emit(progress.Event{Step: progress.StepHistoryCreated, Message: "history record created", Provider: providerName})
		} else {
			history.ProviderUsed = providerName
			history.Status = models.GenerationStatusPending
			history.ErrorMessage = ""
			if err := o.history.Save(history); err != nil {
				reporter.Emit(progress.Event{Step: progress.StepUnexpectedError, Message: "failed to update history record", Error: err.Error()})
				reporter.EndFailure(progress.EndError{Message: "internal server error", Error: err.Error(), Attempted: attempted, HistoryID: history.ID})
				return history, apperrors.New500Error(fmt.Errorf("failed to update history record: %w", err))
			}
			reporter.Emit(progress.Event{Step: progress.StepHistoryUpdated, Message: fmt.Sprintf("history reassigned to %s", providerName), Provider: providerName})
		}

		reporter.Emit(progress.Event{
			Step:     progress.StepGenerationStart,
			Message:  fmt.Sprintf("generating with %s", providerName),
			Provider: providerName,
			Attempt:  attempt,
		})

		assetURL, genErr := o.generator.Generate(ctx, providerName, prompt, params)
		if genErr == nil {
			o.completeSuccess(ctx, history, providerName, assetURL, reporter)
			reporter.EndSuccess(progress.EndData{
				Message:           fmt.Sprintf("image generated successfully using %s", providerName),
				HistoryID:         history.ID,
				ProviderUsed:      providerName,
				ImageURL:          assetURL,
				PreferredProvider: prefs.PreferredProvider,
				Transitions:       transitions,
			})
			return history, nil
		}

		lastErr = genErr
		o.log.Warn().Err(genErr).Str("provider", providerName).Int("attempt", attempt).Msg("generation attempt failed")

		history.Status = models.GenerationStatusFailed
		history.ErrorMessage = genErr.Error()
		if err := o.history.Save(history); err != nil {
			o.log.Error().Err(err).Uint("historyID", history.ID).Msg("failed to persist attempt failure")
		}
		reporter.Emit(progress.Event{
			Step:     progress.StepGenerationFailed,
			Message:  fmt.Sprintf("generation failed with %s", providerName),
			Provider: providerName,
			Attempt:  attempt,
			Error:    genErr.Error(),
		})

		if attempt < o.maxAttempts {
			reporter.Emit(progress.Event{Step: progress.StepRetry, Message: "preparing next attempt", Attempt: attempt + 1})
		}
	}

	// Loop exhausted without success, or no-provider exit.
	errMsg := "all providers failed"
	if lastErr != nil {
		errMsg = lastErr.Error()
	}
	var historyID uint
	if history != nil {
		historyID = history.ID
	}
	reporter.Emit(progress.Event{
		Step:      progress.StepFinalFailure,
		Message:   fmt.Sprintf("generation failed after %d attempt(s)", len(attempted)),
		Attempted: attempted,
		Error:     errMsg,
	})
	reporter.EndFailure(progress.EndError{
		Message:           fmt.Sprintf("generation failed after %d attempt(s)", len(attempted)),
		Error:             errMsg,
		Attempted:         attempted,
		HistoryID:         historyID,
		PreferredProvider: prefs.PreferredProvider,
	})

	return history, apperrors.NewExhaustedError(errMsg, lastErr)
}

// completeSuccess persists the successful outcome and records usage.
// Bookkeeping failures after a successful generation never turn the
// user-visible result into a failure; they are surfaced on the trail for
// reconciliation instead.
func (o *GenerationOrchestrator) completeSuccess(ctx context.Context, history *models.ImageHistory, providerName, assetURL string, reporter *progress.Reporter) {
	history.ImageURL = assetURL
	history.Status = models.GenerationStatusCompleted
	history.ErrorMessage = ""
	if err := o.history.Save(history); err != nil {
		o.log.Error().Err(err).Uint("historyID", history.ID).Msg("failed to persist completed record")
		reporter.Emit(progress.Event{
			Step:     progress.StepBookkeepingError,
			Message:  "failed to persist completed record",
			Provider: providerName,
			Error:    err.Error(),
		})
	}

	if err := o.quota.RecordUsage(ctx, providerName); err != nil {
		o.log.Error().Err(err).Str("provider", providerName).Msg("failed to record provider usage")
		reporter.Emit(progress.Event{
			Step:     progress.StepBookkeepingError,
			Message:  fmt.Sprintf("usage increment for %s was not applied", providerName),
			Provider: providerName,
			Error:    err.Error(),
		})
	}

	reporter.Emit(progress.Event{
		Step:     progress.StepGenerationSuccess,
		Message:  "image generated successfully",
		Provider: providerName,
		ImageURL: assetURL,
	})
}

// Regenerate re-runs a previously terminal record as a single forced
// attempt against its stored provider. There is no provider reselection;
// the record's prompt and parameters are reused and CreatedAt is reset.
func (o *GenerationOrchestrator) Regenerate(ctx context.Context, historyID uint, userID uuid.UUID, reporter *progress.Reporter) (*models.ImageHistory, error) {
	ctx = context.WithoutCancel(ctx)

	history, err := o.history.GetByIDForUser(historyID, userID)
	if err != nil {
		return nil, apperrors.New404Error("history record not found")
	}
	reporter.BindHistory(history.ID)
	defer func() { o.forceFailed(history, "unexpected server error") }()

	reporter.Emit(progress.Event{
		Step:     progress.StepRegeneration,
		Message:  fmt.Sprintf("regeneration requested with %s", history.ProviderUsed),
		Provider: history.ProviderUsed,
	})

	history.Status = models.GenerationStatusPending
	history.ErrorMessage = ""
	if err := o.history.Save(history); err != nil {
		reporter.Emit(progress.Event{Step: progress.StepUnexpectedError, Message: "failed to reset history record", Error: err.Error()})
		reporter.EndFailure(progress.EndError{Message: "internal server error", Error: err.Error(), HistoryID: history.ID})
		return history, apperrors.New500Error(fmt.Errorf("failed to reset history record: %w", err))
	}

	params := DecodeParams(history.Parameters)
	reporter.Emit(progress.Event{
		Step:     progress.StepGenerationStart,
		Message:  fmt.Sprintf("generating with %s", history.ProviderUsed),
		Provider: history.ProviderUsed,
		Attempt:  1,
	})

	assetURL, genErr := o.generator.Generate(ctx, history.ProviderUsed, history.Prompt, params)
	if genErr != nil {
		history.Status = models.GenerationStatusFailed
		history.ErrorMessage = genErr.Error()
		if err := o.history.Save(history); err != nil {
			o.log.Error().Err(err).Uint("historyID", history.ID).Msg("failed to persist regeneration failure")
		}
		reporter.Emit(progress.Event{
			Step:     progress.StepGenerationFailed,
			Message:  fmt.Sprintf("regeneration failed with %s", history.ProviderUsed),
			Provider: history.ProviderUsed,
			Error:    genErr.Error(),
		})
		reporter.EndFailure(progress.EndError{
			Message:   "regeneration failed",
			Error:     genErr.Error(),
			Attempted: []string{history.ProviderUsed},
			HistoryID: history.ID,
		})
		return history, fmt.Errorf("regeneration failed: %w", genErr)
	}

	history.CreatedAt = time.Now().UTC()
	o.completeSuccess(ctx, history, history.ProviderUsed, assetURL, reporter)
	reporter.EndSuccess(progress.EndData{
		Message:      fmt.Sprintf("image regenerated successfully using %s", history.ProviderUsed),
		HistoryID:    history.ID,
		ProviderUsed: history.ProviderUsed,
		ImageURL:     assetURL,
	})
	return history, nil
}
