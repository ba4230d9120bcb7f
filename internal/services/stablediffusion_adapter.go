package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
)

const defaultStableDiffusionURL = "https://api.stability.ai/v1/generation/stable-diffusion-xl-1024-v1-0/text-to-image"

// StableDiffusionAdapter generates via the Stability AI text-to-image
// endpoint. The call is synchronous: one POST, artifacts in the response.
type StableDiffusionAdapter struct {
	apiKey     string
	apiURL     string
	httpClient *http.Client
	storage    ImageStorage
}

func NewStableDiffusionAdapter(apiKey, apiURL string, httpClient *http.Client, storage ImageStorage) *StableDiffusionAdapter {
	if apiURL == "" {
		apiURL = defaultStableDiffusionURL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &StableDiffusionAdapter{apiKey: apiKey, apiURL: apiURL, httpClient: httpClient, storage: storage}
}

func (a *StableDiffusionAdapter) Name() string { return "stablediffusion" }

type stableDiffusionRequest struct {
	TextPrompts []stableDiffusionPrompt `json:"text_prompts"`
	CfgScale    float64                 `json:"cfg_scale"`
	Height      int                     `json:"height"`
	Width       int                     `json:"width"`
	Steps       int                     `json:"steps"`
	Samples     int                     `json:"samples"`
}

type stableDiffusionPrompt struct {
	Text string `json:"text"`
}

type stableDiffusionResponse struct {
	Artifacts []struct {
		Base64 string `json:"base64"`
	} `json:"artifacts"`
}

func (a *StableDiffusionAdapter) Generate(ctx context.Context, prompt string, params GenerationParams) (string, error) {
	if a.apiKey == "" {
		return "", fmt.Errorf("stable diffusion API key is not configured")
	}

	payload := stableDiffusionRequest{
		TextPrompts: []stableDiffusionPrompt{{Text: prompt}},
		CfgScale:    params.Float("cfg_scale", 7),
		Height:      params.Int("height", 1024),
		Width:       params.Int("width", 1024),
		Steps:       params.Int("steps", 30),
		Samples:     1,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to encode stable diffusion request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.apiURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build stable diffusion request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+a.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("stable diffusion request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("stable diffusion returned status %d", resp.StatusCode)
	}

	var parsed stableDiffusionResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("failed to decode stable diffusion response: %w", err)
	}
	if len(parsed.Artifacts) == 0 || parsed.Artifacts[0].Base64 == "" {
		return "", fmt.Errorf("no base64 image data in stable diffusion response")
	}

	imageData, err := base64.StdEncoding.DecodeString(parsed.Artifacts[0].Base64)
	if err != nil {
		return "", fmt.Errorf("failed to decode stable diffusion image data: %w", err)
	}
	return a.storage.UploadImage(ctx, imageData, "image/png")
}
