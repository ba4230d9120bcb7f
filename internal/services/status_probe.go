package services

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"pixelmint_go_backend/internal/models"

	"github.com/rs/zerolog"
)

// HTTPStatusProbe checks whether a provider's API base URL answers at
// all. It is an enrichment only: selection decisions never depend on the
// probe, the local quota tracker stays authoritative.
type HTTPStatusProbe struct {
	httpClient *http.Client
	store      ProviderStore
	timeout    time.Duration
	log        zerolog.Logger
}

func NewHTTPStatusProbe(httpClient *http.Client, store ProviderStore, timeout time.Duration, log zerolog.Logger) *HTTPStatusProbe {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &HTTPStatusProbe{httpClient: httpClient, store: store, timeout: timeout, log: log}
}

func (p *HTTPStatusProbe) CheckRemoteStatus(ctx context.Context, provider *models.ProviderConfig) RemoteStatus {
	if provider.APIBaseURL == "" {
		return RemoteStatus{Reachable: false, Message: "no API base URL configured"}
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, provider.APIBaseURL, nil)
	if err != nil {
		return RemoteStatus{Reachable: false, Message: err.Error()}
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		p.log.Warn().Err(err).Str("provider", provider.Name).Msg("provider status probe failed")
		return RemoteStatus{Reachable: false, Message: err.Error()}
	}
	defer resp.Body.Close()

	if err := p.store.TouchChecked(provider.Name); err != nil {
		p.log.Warn().Err(err).Str("provider", provider.Name).Msg("failed to record probe timestamp")
	}

	// Auth-level rejections still prove the endpoint is up.
	reachable := resp.StatusCode < http.StatusInternalServerError
	return RemoteStatus{
		Reachable: reachable,
		Message:   fmt.Sprintf("endpoint answered with status %d", resp.StatusCode),
	}
}
