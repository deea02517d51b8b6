package ports

import (
	"context"
	"encoding/json"

	"stratforge/domain/core"
)

// MarketContext is the read-only, pre-dated context bundle passed verbatim
// into generation calls. The engine does not inspect its contents beyond
// confirming presence.
type MarketContext struct {
	AsOf    core.Timestamp  `json:"as_of"`
	Payload json.RawMessage `json:"payload"`
}

// Present reports whether the bundle carries any content
func (m *MarketContext) Present() bool {
	return m != nil && len(m.Payload) > 0
}

// ContextProviderPort supplies the market/decision context bundle
type ContextProviderPort interface {
	Snapshot(ctx context.Context) (*MarketContext, error)
}
