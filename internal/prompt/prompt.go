// Package prompt manages pending reply prompts. A prompt is registered when
// an operator is asked for a follow-up (new details, photos to add or
// replace) and is resolved by an opaque token carried on the reply, so
// matching never depends on the prompt's display text. Prompts expire via a
// TTL in the ledger and are consumed at most once.
package prompt

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dyluth/creel/pkg/ledger"
)

// Registry issues and resolves prompt tokens.
type Registry struct {
	ledger *ledger.Client
	log    *zap.Logger
	ttl    time.Duration
}

// NewRegistry creates a registry with the given prompt TTL. A zero TTL
// defaults to 10 minutes.
func NewRegistry(l *ledger.Client, logger *zap.Logger, ttl time.Duration) *Registry {
	if ttl == 0 {
		ttl = 10 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{ledger: l, log: logger.Named("prompt"), ttl: ttl}
}

// Register creates a pending prompt for the actor and returns its token.
// A still-pending prompt of the same kind for the same actor is superseded:
// only the newest token resolves.
func (r *Registry) Register(ctx context.Context, actorID int64, kind ledger.PromptKind, shipmentID string) (string, error) {
	p := &ledger.Prompt{
		Token:       uuid.New().String(),
		ActorID:     actorID,
		Kind:        kind,
		ShipmentID:  shipmentID,
		CreatedAtMs: time.Now().UnixMilli(),
	}
	if err := r.ledger.PutPrompt(ctx, p, r.ttl); err != nil {
		return "", fmt.Errorf("failed to register %s prompt: %w", kind, err)
	}

	r.log.Debug("prompt registered",
		zap.String("token", p.Token),
		zap.Int64("actor_id", actorID),
		zap.String("kind", string(kind)),
		zap.String("shipment_id", shipmentID))
	return p.Token, nil
}

// Resolve consumes the prompt for a token. Exactly one caller can resolve a
// given token; expired, already-consumed, and unknown tokens all return
// (nil, nil).
func (r *Registry) Resolve(ctx context.Context, token string) (*ledger.Prompt, error) {
	p, err := r.ledger.ConsumePrompt(ctx, token)
	if err != nil {
		if ledger.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return p, nil
}

// Active returns the actor's pending prompt of the given kind without
// consuming it, or nil when none is pending.
func (r *Registry) Active(ctx context.Context, actorID int64, kind ledger.PromptKind) (*ledger.Prompt, error) {
	p, err := r.ledger.ActivePrompt(ctx, actorID, kind)
	if err != nil {
		if ledger.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return p, nil
}

// Cancel discards a pending prompt. Cancelling an unknown token is not an
// error.
func (r *Registry) Cancel(ctx context.Context, token string) error {
	return r.ledger.DropPrompt(ctx, token)
}
