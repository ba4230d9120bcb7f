package services

import (
	"context"
	"fmt"

	"github.com/google/generative-ai-go/genai"
)

const geminiImageModel = "gemini-2.0-flash-exp-image-generation"

// GeminiAdapter generates via the Google GenAI SDK. Gemini is configured
// as the unconstrained provider: it has no quota ceiling in the catalog.
type GeminiAdapter struct {
	client  *genai.Client
	model   string
	storage ImageStorage
}

func NewGeminiAdapter(client *genai.Client, storage ImageStorage) *GeminiAdapter {
	return &GeminiAdapter{client: client, model: geminiImageModel, storage: storage}
}

func (a *GeminiAdapter) Name() string { return "gemini" }

func (a *GeminiAdapter) Generate(ctx context.Context, prompt string, params GenerationParams) (string, error) {
	if a.client == nil {
		return "", fmt.Errorf("gemini client is not configured")
	}

	model := a.client.GenerativeModel(a.model)
	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("gemini generation failed: %w", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("no candidates in gemini response")
	}

	for _, part := range resp.Candidates[0].Content.Parts {
		if blob, ok := part.(genai.Blob); ok && len(blob.Data) > 0 {
			return a.storage.UploadImage(ctx, blob.Data, blob.MIMEType)
		}
	}
	return "", fmt.Errorf("no image generated by gemini")
}
