package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
)

const generatedImagesPrefix = "generated_images"

// GCSService stores generated image assets in a Google Cloud Storage
// bucket and hands back their public URL as the asset reference.
type GCSService struct {
	client     *storage.Client
	httpClient *http.Client
	bucketName string
}

func NewGCSService(ctx context.Context, bucketName string) (*GCSService, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	return &GCSService{client: client, httpClient: http.DefaultClient, bucketName: bucketName}, nil
}

func extensionFor(contentType string) string {
	switch contentType {
	case "image/jpeg":
		return "jpg"
	case "image/webp":
		return "webp"
	default:
		return "png"
	}
}

// UploadImage writes the image bytes to a fresh object and returns its
// public URL.
func (s *GCSService) UploadImage(ctx context.Context, data []byte, contentType string) (string, error) {
	if contentType == "" {
		contentType = "image/png"
	}
	objectName := fmt.Sprintf("%s/%s.%s", generatedImagesPrefix, uuid.New().String(), extensionFor(contentType))

	obj := s.client.Bucket(s.bucketName).Object(objectName)
	writer := obj.NewWriter(ctx)
	writer.ContentType = contentType
	if _, err := io.Copy(writer, bytes.NewReader(data)); err != nil {
		writer.Close()
		return "", fmt.Errorf("failed to upload image: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize image upload: %w", err)
	}

	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", s.bucketName, objectName), nil
}

// UploadFromURL fetches a provider-hosted result and re-homes it in the
// bucket, so asset references outlive the provider's own retention.
func (s *GCSService) UploadFromURL(ctx context.Context, srcURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srcURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build download request: %w", err)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to download result image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d downloading result image", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read result image: %w", err)
	}
	return s.UploadImage(ctx, data, resp.Header.Get("Content-Type"))
}
