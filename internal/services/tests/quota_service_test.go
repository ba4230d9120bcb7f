package services_test

import (
	"context"
	"sync"
	"testing"

	"pixelmint_go_backend/internal/services"
	"pixelmint_go_backend/internal/utils/broker"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestQuotaRemaining(t *testing.T) {
	quota := services.NewQuotaService(new(MockProviderStore), nil, zerolog.Nop())

	t.Run("bounded provider reports limit minus usage", func(t *testing.T) {
		p := provider("stablediffusion", 10, quotaOf(27), true, true, false)
		remaining, bounded := quota.Remaining(&p)
		assert.True(t, bounded)
		assert.Equal(t, int64(17), remaining)
	})

	t.Run("remaining never goes negative", func(t *testing.T) {
		p := provider("kieai", 12, quotaOf(8), true, true, false)
		remaining, bounded := quota.Remaining(&p)
		assert.True(t, bounded)
		assert.Equal(t, int64(0), remaining)
	})

	t.Run("no configured ceiling means unbounded", func(t *testing.T) {
		p := provider("gemini", 9000, nil, true, true, true)
		_, bounded := quota.Remaining(&p)
		assert.False(t, bounded)
	})

	t.Run("request quota takes precedence over credit quota", func(t *testing.T) {
		p := provider("photai", 5, quotaOf(100), true, true, false)
		p.QuotaRequests = quotaOf(25)
		remaining, bounded := quota.Remaining(&p)
		assert.True(t, bounded)
		assert.Equal(t, int64(20), remaining)
	})
}

func TestRecordUsageConcurrent(t *testing.T) {
	sd := provider("stablediffusion", 0, quotaOf(1000), true, true, false)
	store := newCountingProviderStore(&sd)
	quota := services.NewQuotaService(store, nil, zerolog.Nop())

	const goroutines = 64
	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			assert.NoError(t, quota.RecordUsage(context.Background(), "stablediffusion"))
		}()
	}
	wg.Wait()

	// N successful generations account for exactly N increments, no lost
	// updates under concurrency.
	after, err := store.GetByName("stablediffusion")
	assert.NoError(t, err)
	assert.Equal(t, int64(goroutines), after.UsageCount)
}

func TestRecordUsagePublishesQuotaUpdate(t *testing.T) {
	sd := provider("stablediffusion", 26, quotaOf(27), true, true, false)
	store := newCountingProviderStore(&sd)
	messageBroker := broker.NewBroker()
	quota := services.NewQuotaService(store, messageBroker, zerolog.Nop())

	updates := messageBroker.Subscribe(services.QuotaUpdateTopic)
	defer messageBroker.Unsubscribe(services.QuotaUpdateTopic, updates)

	assert.NoError(t, quota.RecordUsage(context.Background(), "stablediffusion"))

	select {
	case msg := <-updates:
		update, ok := msg.(services.QuotaUpdate)
		assert.True(t, ok)
		assert.Equal(t, "stablediffusion", update.Provider)
		assert.Equal(t, int64(27), update.UsageCount)
		if assert.NotNil(t, update.Remaining) {
			assert.Equal(t, int64(0), *update.Remaining)
		}
	default:
		t.Fatal("expected a quota update on the broker")
	}
}

func TestStatusEvaluation(t *testing.T) {
	mockStore := new(MockProviderStore)
	quota := services.NewQuotaService(mockStore, nil, zerolog.Nop())
	status := services.NewStatusService(quota)

	t.Run("active provider with quota left is eligible", func(t *testing.T) {
		p := provider("stablediffusion", 5, quotaOf(27), true, true, false)
		evaluated := status.Evaluate(&p)
		assert.True(t, evaluated.Eligible)
		assert.True(t, evaluated.FreeTier)
		assert.Equal(t, int64(22), evaluated.Remaining)
	})

	t.Run("exhausted provider is ineligible and loses free tier", func(t *testing.T) {
		p := provider("kieai", 8, quotaOf(8), true, true, false)
		evaluated := status.Evaluate(&p)
		assert.False(t, evaluated.Eligible)
		assert.False(t, evaluated.FreeTier)
	})

	t.Run("inactive provider is ineligible regardless of quota", func(t *testing.T) {
		p := provider("photai", 0, quotaOf(25), true, false, false)
		evaluated := status.Evaluate(&p)
		assert.False(t, evaluated.Eligible)
	})

	t.Run("unconstrained provider keeps its configured free tier at any usage", func(t *testing.T) {
		p := provider("gemini", 100000, nil, true, true, true)
		evaluated := status.Evaluate(&p)
		assert.True(t, evaluated.Eligible)
		assert.True(t, evaluated.FreeTier)
		assert.True(t, evaluated.Unbounded)
	})

	t.Run("unbounded but constrained provider is eligible while active", func(t *testing.T) {
		p := provider("custom", 50, nil, false, true, false)
		evaluated := status.Evaluate(&p)
		assert.True(t, evaluated.Eligible)
		assert.True(t, evaluated.Unbounded)
	})

	t.Run("provider state is not mutated by evaluation", func(t *testing.T) {
		p := provider("kieai", 8, quotaOf(8), true, true, false)
		_ = status.Evaluate(&p)
		assert.True(t, p.IsFreeTier, "catalog flag must stay untouched")
	})
}
