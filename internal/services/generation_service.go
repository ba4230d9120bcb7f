package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// GenerationParams is the opaque parameter bag forwarded to adapters.
// Unknown keys are preserved through persistence and regeneration.
type GenerationParams map[string]interface{}

func (p GenerationParams) Encode() []byte {
	if p == nil {
		p = GenerationParams{}
	}
	data, err := json.Marshal(p)
	if err != nil {
		return []byte("{}")
	}
	return data
}

func DecodeParams(data []byte) GenerationParams {
	params := GenerationParams{}
	if len(data) == 0 {
		return params
	}
	if err := json.Unmarshal(data, &params); err != nil {
		return GenerationParams{}
	}
	return params
}

func (p GenerationParams) Float(key string, fallback float64) float64 {
	if v, ok := p[key]; ok {
		if f, ok := v.(float64); ok {
			return f
		}
	}
	return fallback
}

func (p GenerationParams) Int(key string, fallback int) int {
	return int(p.Float(key, float64(fallback)))
}

func (p GenerationParams) String(key, fallback string) string {
	if v, ok := p[key]; ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return fallback
}

func (p GenerationParams) Bool(key string, fallback bool) bool {
	if v, ok := p[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return fallback
}

// GenerationAdapter is one provider-specific generation backend. Generate
// blocks until a terminal outcome and returns the stored asset URL.
type GenerationAdapter interface {
	Name() string
	Generate(ctx context.Context, prompt string, params GenerationParams) (string, error)
}

// GenerationService implements ImageGenerator by dispatching to the
// adapter registered under the provider's name.
type GenerationService struct {
	adapters map[string]GenerationAdapter
}

func NewGenerationService(adapters ...GenerationAdapter) *GenerationService {
	registry := make(map[string]GenerationAdapter, len(adapters))
	for _, a := range adapters {
		registry[strings.ToLower(a.Name())] = a
	}
	return &GenerationService{adapters: registry}
}

func (s *GenerationService) Generate(ctx context.Context, providerName, prompt string, params GenerationParams) (string, error) {
	adapter, ok := s.adapters[strings.ToLower(providerName)]
	if !ok {
		return "", fmt.Errorf("unsupported provider: %s", providerName)
	}
	return adapter.Generate(ctx, prompt, params)
}

// pollForResult retries fn every interval until it reports done, errors,
// the attempt budget runs out, or ctx is cancelled. fn returns the result
// URL once the remote job has finished.
func pollForResult(ctx context.Context, interval time.Duration, maxAttempts int, fn func(ctx context.Context) (string, bool, error)) (string, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for attempt := 0; attempt < maxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		}

		result, done, err := fn(ctx)
		if err != nil {
			return "", err
		}
		if done {
			return result, nil
		}
	}
	return "", fmt.Errorf("polling gave up after %d attempts without a result", maxAttempts)
}
