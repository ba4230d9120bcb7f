package progress

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// SchemaVersion identifies the event wire shape. Bump when fields change
// meaning so stream consumers can dispatch on it.
const SchemaVersion = 1

// Step is the closed set of progress step kinds. Consumers can switch on
// it exhaustively; there are no open-ended payload maps.
type Step string

const (
	StepStart             Step = "start"
	StepUserFound         Step = "user_found"
	StepProviderSelection Step = "provider_selection"
	StepProviderSelected  Step = "provider_selected"
	StepHistoryCreated    Step = "history_created"
	StepHistoryUpdated    Step = "history_updated"
	StepGenerationStart   Step = "generation_start"
	StepGenerationSuccess Step = "generation_success"
	StepGenerationFailed  Step = "generation_failed"
	StepRetry             Step = "retry"
	StepNoProvider        Step = "no_provider"
	StepFinalFailure      Step = "final_failure"
	StepRegeneration      Step = "regeneration"
	StepBookkeepingError  Step = "bookkeeping_error"
	StepUnexpectedError   Step = "unexpected_error"
	StepEnd               Step = "end"
)

// Event is one entry of the ordered progress sequence for a generation
// request. Exactly one event per request carries Step == StepEnd.
type Event struct {
	Schema    int       `json:"schema"`
	Step      Step      `json:"step"`
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message,omitempty"`
	HistoryID uint      `json:"historyId,omitempty"`
	Provider  string    `json:"provider,omitempty"`
	Attempt   int       `json:"attempt,omitempty"`
	Attempted []string  `json:"attemptedProviders,omitempty"`
	ImageURL  string    `json:"imageUrl,omitempty"`
	Error     string    `json:"error,omitempty"`

	// End payload, present iff Step == StepEnd.
	Success *bool     `json:"success,omitempty"`
	Data    *EndData  `json:"data,omitempty"`
	Failure *EndError `json:"errorDetail,omitempty"`
}

// EndData is the terminal payload of a successful request.
type EndData struct {
	Message           string   `json:"message"`
	HistoryID         uint     `json:"historyId"`
	ProviderUsed      string   `json:"providerUsed"`
	ImageURL          string   `json:"imageUrl"`
	PreferredProvider string   `json:"preferredProvider,omitempty"`
	Transitions       []string `json:"providerTransitions,omitempty"`
}

// EndError is the terminal payload of a failed request.
type EndError struct {
	Message           string   `json:"message"`
	Error             string   `json:"error"`
	Attempted         []string `json:"attemptedProviders,omitempty"`
	HistoryID         uint     `json:"historyId,omitempty"`
	PreferredProvider string   `json:"preferredProvider,omitempty"`
}

// TrailWriter appends one row to the persistent audit trail.
type TrailWriter interface {
	AppendStep(historyID uint, step, message string) error
}

// Sink receives live events for one attached observer. It must be cheap;
// the orchestration run calls it inline.
type Sink func(Event)

// Reporter fans a request's progress out to the persistent trail and, when
// attached, a single live sink. The trail write is best effort: a failed
// append is logged and never propagated, so bookkeeping problems stay
// observable without failing the generation itself.
type Reporter struct {
	trail TrailWriter
	sink  Sink
	log   zerolog.Logger

	mu        sync.Mutex
	historyID uint
	closed    bool
}

func NewReporter(trail TrailWriter, sink Sink, log zerolog.Logger) *Reporter {
	return &Reporter{trail: trail, sink: sink, log: log}
}

// BindHistory attaches the persisted record ID once it exists. Events
// emitted before binding carry no history reference in the trail.
func (r *Reporter) BindHistory(id uint) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.historyID = id
}

// Emit records one step. After the end event has been emitted, further
// calls are dropped; the stream is closed exactly once.
func (r *Reporter) Emit(e Event) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	if e.Step == StepEnd {
		r.closed = true
	}
	e.Schema = SchemaVersion
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	if e.HistoryID == 0 {
		e.HistoryID = r.historyID
	}
	sink := r.sink
	r.mu.Unlock()

	if r.trail != nil && e.HistoryID != 0 {
		if err := r.trail.AppendStep(e.HistoryID, string(e.Step), e.Message); err != nil {
			r.log.Error().Err(err).Uint("historyID", e.HistoryID).Str("step", string(e.Step)).Msg("failed to append progress trail entry")
		}
	}
	if sink != nil {
		sink(e)
	}
}

// EndSuccess emits the terminal success event.
func (r *Reporter) EndSuccess(data EndData) {
	success := true
	r.Emit(Event{Step: StepEnd, Message: data.Message, Success: &success, Data: &data})
}

// EndFailure emits the terminal failure event.
func (r *Reporter) EndFailure(detail EndError) {
	success := false
	r.Emit(Event{Step: StepEnd, Message: detail.Message, Success: &success, Failure: &detail})
}

// Closed reports whether the end event has been emitted.
func (r *Reporter) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}
