package notify

import (
	"context"

	"github.com/dyluth/creel/pkg/ledger"
)

// LedgerTransport publishes sends onto the outbound channel, where a chat
// gateway process picks them up for actual delivery.
type LedgerTransport struct {
	ledger *ledger.Client
}

// NewLedgerTransport creates a Transport backed by the ledger's outbound
// send channel.
func NewLedgerTransport(l *ledger.Client) *LedgerTransport {
	return &LedgerTransport{ledger: l}
}

// Send publishes one outbound send. Implements Transport.
func (t *LedgerTransport) Send(ctx context.Context, send *ledger.OutboundSend) error {
	return t.ledger.PublishOutboundSend(ctx, send)
}
