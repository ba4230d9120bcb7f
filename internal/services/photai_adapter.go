package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const (
	defaultPhotAICreateURL = "https://prodapi.phot.ai/external/api/v3/user_activity/create-art"
	defaultPhotAIStatusURL = "https://prodapi.phot.ai/external/api/v1/user_activity/order-status"
)

// PhotAIAdapter generates via the Phot.AI art API: create an order, then
// poll its status until output URLs show up.
type PhotAIAdapter struct {
	apiKey       string
	createURL    string
	statusURL    string
	httpClient   *http.Client
	storage      ImageStorage
	pollInterval time.Duration
	pollAttempts int
}

func NewPhotAIAdapter(apiKey string, httpClient *http.Client, storage ImageStorage, pollInterval time.Duration, pollAttempts int) *PhotAIAdapter {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &PhotAIAdapter{
		apiKey:       apiKey,
		createURL:    defaultPhotAICreateURL,
		statusURL:    defaultPhotAIStatusURL,
		httpClient:   httpClient,
		storage:      storage,
		pollInterval: pollInterval,
		pollAttempts: pollAttempts,
	}
}

func (a *PhotAIAdapter) Name() string { return "photai" }

type photAICreateResponse struct {
	Data struct {
		OrderID json.Number `json:"order_id"`
	} `json:"data"`
}

type photAIStatusResponse struct {
	OutputURLs []string `json:"output_urls"`
}

func (a *PhotAIAdapter) Generate(ctx context.Context, prompt string, params GenerationParams) (string, error) {
	if a.apiKey == "" {
		return "", fmt.Errorf("phot.ai API key is not configured")
	}

	style := []string{"cinematic"}
	if s := params.String("style", ""); s != "" {
		style = []string{s}
	}
	payload := map[string]interface{}{
		"prompt":         prompt,
		"guidance_scale": params.Float("guidance_scale", 7.5),
		"num_outputs":    params.Int("num_outputs", 1),
		"aspect_ratio":   params.String("aspect_ratio", "1:1"),
		"studio_options": map[string]interface{}{"style": style},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to encode phot.ai request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.createURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build phot.ai request: %w", err)
	}
	req.Header.Set("x-api-key", a.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("phot.ai creation request failed: %w", err)
	}
	defer resp.Body.Close()

	var created photAICreateResponse
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return "", fmt.Errorf("failed to decode phot.ai response: %w", err)
	}
	orderID := created.Data.OrderID.String()
	if orderID == "" {
		return "", fmt.Errorf("no order_id in phot.ai response")
	}

	resultURL, err := pollForResult(ctx, a.pollInterval, a.pollAttempts, func(ctx context.Context) (string, bool, error) {
		return a.fetchResult(ctx, orderID)
	})
	if err != nil {
		return "", fmt.Errorf("phot.ai result retrieval failed: %w", err)
	}
	return a.storage.UploadFromURL(ctx, resultURL)
}

func (a *PhotAIAdapter) fetchResult(ctx context.Context, orderID string) (string, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s?order_id=%s", a.statusURL, orderID), nil)
	if err != nil {
		return "", false, fmt.Errorf("failed to build phot.ai status request: %w", err)
	}
	req.Header.Set("x-api-key", a.apiKey)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", false, fmt.Errorf("phot.ai status request failed: %w", err)
	}
	defer resp.Body.Close()

	var status photAIStatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return "", false, fmt.Errorf("failed to decode phot.ai status response: %w", err)
	}
	if len(status.OutputURLs) > 0 && status.OutputURLs[0] != "" {
		return status.OutputURLs[0], true, nil
	}
	return "", false, nil
}
