package progress_test

import (
	"fmt"
	"testing"

	"pixelmint_go_backend/internal/progress"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

type recordingTrail struct {
	entries []string
	fail    bool
}

func (t *recordingTrail) AppendStep(historyID uint, step, message string) error {
	if t.fail {
		return fmt.Errorf("trail unavailable")
	}
	t.entries = append(t.entries, fmt.Sprintf("%d/%s", historyID, step))
	return nil
}

func TestReporterStampsEvents(t *testing.T) {
	trail := &recordingTrail{}
	var received []progress.Event
	reporter := progress.NewReporter(trail, func(e progress.Event) { received = append(received, e) }, zerolog.Nop())

	reporter.Emit(progress.Event{Step: progress.StepStart, Message: "begin"})
	reporter.BindHistory(7)
	reporter.Emit(progress.Event{Step: progress.StepProviderSelected, Provider: "kieai"})

	assert.Len(t, received, 2)
	for _, e := range received {
		assert.Equal(t, progress.SchemaVersion, e.Schema)
		assert.False(t, e.Timestamp.IsZero())
	}

	// Before binding there is no record to reference; after binding every
	// event carries the ID and lands on the trail.
	assert.Equal(t, uint(0), received[0].HistoryID)
	assert.Equal(t, uint(7), received[1].HistoryID)
	assert.Equal(t, []string{"7/provider_selected"}, trail.entries)
}

func TestReporterClosesExactlyOnce(t *testing.T) {
	var received []progress.Event
	reporter := progress.NewReporter(nil, func(e progress.Event) { received = append(received, e) }, zerolog.Nop())
	reporter.BindHistory(3)

	reporter.EndSuccess(progress.EndData{Message: "done", HistoryID: 3, ProviderUsed: "gemini"})
	assert.True(t, reporter.Closed())

	// Everything after the end event is dropped, including a second end.
	reporter.Emit(progress.Event{Step: progress.StepRetry})
	reporter.EndFailure(progress.EndError{Message: "late failure"})

	assert.Len(t, received, 1)
	end := received[0]
	assert.Equal(t, progress.StepEnd, end.Step)
	if assert.NotNil(t, end.Success) {
		assert.True(t, *end.Success)
	}
	assert.Equal(t, "gemini", end.Data.ProviderUsed)
}

func TestReporterSwallowsTrailErrors(t *testing.T) {
	trail := &recordingTrail{fail: true}
	var received []progress.Event
	reporter := progress.NewReporter(trail, func(e progress.Event) { received = append(received, e) }, zerolog.Nop())
	reporter.BindHistory(9)

	// A broken trail must not disturb the live stream.
	reporter.Emit(progress.Event{Step: progress.StepGenerationStart})
	reporter.EndFailure(progress.EndError{Message: "failed", Error: "provider down"})

	assert.Len(t, received, 2)
	assert.Equal(t, progress.StepEnd, received[1].Step)
	if assert.NotNil(t, received[1].Success) {
		assert.False(t, *received[1].Success)
	}
}
