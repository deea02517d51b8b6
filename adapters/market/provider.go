package market

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"stratforge/domain/core"
	"stratforge/internal"
	"stratforge/ports"
)

// HTTPProvider fetches the market context bundle from a data service. The
// payload is passed through verbatim; the engine never interprets it.
type HTTPProvider struct {
	endpoint string
	client   *http.Client
	logger   *internal.Logger
}

// NewHTTPProvider creates a context provider for the given endpoint
func NewHTTPProvider(endpoint string, logger *internal.Logger) *HTTPProvider {
	return &HTTPProvider{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 30 * time.Second},
		logger:   logger,
	}
}

// Snapshot fetches the current context bundle
func (p *HTTPProvider) Snapshot(ctx context.Context) (*ports.MarketContext, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", p.endpoint+"/context", nil)
	if err != nil {
		return nil, err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("market context request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("market context request returned status %d", resp.StatusCode)
	}

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read market context: %w", err)
	}
	if !json.Valid(payload) {
		return nil, fmt.Errorf("market context payload is not valid JSON")
	}

	p.logger.Debug("[MarketContext] Snapshot fetched (%d bytes)", len(payload))
	return &ports.MarketContext{
		AsOf:    core.Now(),
		Payload: payload,
	}, nil
}

// StaticProvider serves a fixed context bundle, used when no data service
// is configured.
type StaticProvider struct {
	payload json.RawMessage
}

// NewStaticProvider wraps a fixed JSON payload as a context provider
func NewStaticProvider(payload json.RawMessage) *StaticProvider {
	return &StaticProvider{payload: payload}
}

// Snapshot returns the fixed bundle
func (p *StaticProvider) Snapshot(_ context.Context) (*ports.MarketContext, error) {
	return &ports.MarketContext{AsOf: core.Now(), Payload: p.payload}, nil
}
