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
	defaultKieAIGenerateURL = "https://kieai.erweima.ai/api/v1/gpt4o-image/generate"
	defaultKieAIRecordURL   = "https://kieai.erweima.ai/api/v1/gpt4o-image/record-info"
)

// KieAIAdapter generates via the KieAI GPT-4o image API. Generation is
// asynchronous on the remote side: a create call yields a task ID that is
// polled until a result URL appears.
type KieAIAdapter struct {
	apiKey       string
	generateURL  string
	recordURL    string
	httpClient   *http.Client
	storage      ImageStorage
	pollInterval time.Duration
	pollAttempts int
}

func NewKieAIAdapter(apiKey string, httpClient *http.Client, storage ImageStorage, pollInterval time.Duration, pollAttempts int) *KieAIAdapter {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &KieAIAdapter{
		apiKey:       apiKey,
		generateURL:  defaultKieAIGenerateURL,
		recordURL:    defaultKieAIRecordURL,
		httpClient:   httpClient,
		storage:      storage,
		pollInterval: pollInterval,
		pollAttempts: pollAttempts,
	}
}

func (a *KieAIAdapter) Name() string { return "kieai" }

type kieAIGenerateResponse struct {
	Data struct {
		TaskID string `json:"taskId"`
	} `json:"data"`
}

type kieAIRecordResponse struct {
	Data struct {
		Response struct {
			ResultURLs []string `json:"resultUrls"`
		} `json:"response"`
	} `json:"data"`
}

func (a *KieAIAdapter) Generate(ctx context.Context, prompt string, params GenerationParams) (string, error) {
	if a.apiKey == "" {
		return "", fmt.Errorf("kieai API key is not configured")
	}

	payload := map[string]interface{}{
		"prompt":      prompt,
		"size":        params.String("size", "1:1"),
		"callBackUrl": params.String("callBackUrl", ""),
		"isEnhance":   params.Bool("isEnhance", false),
		"uploadCn":    params.Bool("uploadCn", false),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to encode kieai request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.generateURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build kieai request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.apiKey)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("kieai generation request failed: %w", err)
	}
	defer resp.Body.Close()

	var created kieAIGenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return "", fmt.Errorf("failed to decode kieai response: %w", err)
	}
	if created.Data.TaskID == "" {
		return "", fmt.Errorf("no taskId in kieai response")
	}

	resultURL, err := pollForResult(ctx, a.pollInterval, a.pollAttempts, func(ctx context.Context) (string, bool, error) {
		return a.fetchResult(ctx, created.Data.TaskID)
	})
	if err != nil {
		return "", fmt.Errorf("kieai result retrieval failed: %w", err)
	}
	return a.storage.UploadFromURL(ctx, resultURL)
}

func (a *KieAIAdapter) fetchResult(ctx context.Context, taskID string) (string, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s?taskId=%s", a.recordURL, taskID), nil)
	if err != nil {
		return "", false, fmt.Errorf("failed to build kieai record request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.apiKey)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", false, fmt.Errorf("kieai record request failed: %w", err)
	}
	defer resp.Body.Close()

	var record kieAIRecordResponse
	if err := json.NewDecoder(resp.Body).Decode(&record); err != nil {
		return "", false, fmt.Errorf("failed to decode kieai record response: %w", err)
	}
	if urls := record.Data.Response.ResultURLs; len(urls) > 0 && urls[0] != "" {
		return urls[0], true, nil
	}
	return "", false, nil
}
