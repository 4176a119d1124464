// Package engine is the routing core: it consumes inbound items from the
// transport bridge, decides what each item means (new shipment, burst frame,
// prompt reply, intake line, command), and drives the correlator, prompt
// registry, and dispatcher accordingly.
package engine

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/dyluth/creel/internal/audience"
	"github.com/dyluth/creel/internal/correlator"
	"github.com/dyluth/creel/internal/debounce"
	"github.com/dyluth/creel/internal/notify"
	"github.com/dyluth/creel/internal/prompt"
	"github.com/dyluth/creel/pkg/ledger"
)

// settleTimeout bounds the announcement work done when a burst's quiet
// timer fires, since that fire carries no caller context.
const settleTimeout = 30 * time.Second

// Config assembles an Engine.
type Config struct {
	Ledger      *ledger.Client
	Debounce    *debounce.Debouncer
	Dispatcher  *notify.Dispatcher
	Logger      *zap.Logger
	QuietPeriod time.Duration
	BindingTTL  time.Duration
	PromptTTL   time.Duration

	// Default audience policy for shipment announcements.
	ManagerScope  audience.ManagerScope
	IncludeClient bool
	ExcludeAuthor bool
}

// Engine routes inbound items.
type Engine struct {
	ledger     *ledger.Client
	correlator *correlator.Correlator
	prompts    *prompt.Registry
	audience   *audience.Resolver
	dispatcher *notify.Dispatcher
	log        *zap.Logger

	managerScope  audience.ManagerScope
	includeClient bool
	excludeAuthor bool
}

// New wires an Engine from its components. The correlator's settle callback
// is the engine's announcement path.
func New(cfg Config) *Engine {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.ManagerScope == "" {
		cfg.ManagerScope = audience.ManagersAll
	}

	e := &Engine{
		ledger:        cfg.Ledger,
		prompts:       prompt.NewRegistry(cfg.Ledger, cfg.Logger, cfg.PromptTTL),
		audience:      audience.NewResolver(cfg.Ledger, cfg.Logger),
		dispatcher:    cfg.Dispatcher,
		log:           cfg.Logger.Named("engine"),
		managerScope:  cfg.ManagerScope,
		includeClient: cfg.IncludeClient,
		excludeAuthor: cfg.ExcludeAuthor,
	}
	e.correlator = correlator.New(correlator.Config{
		Ledger:      cfg.Ledger,
		Debounce:    cfg.Debounce,
		Logger:      cfg.Logger,
		QuietPeriod: cfg.QuietPeriod,
		BindingTTL:  cfg.BindingTTL,
		OnSettled:   e.onBurstSettled,
	})
	return e
}

// Run consumes the inbound item channel until ctx is cancelled. Item
// handling errors are logged and do not stop the loop.
func (e *Engine) Run(ctx context.Context) error {
	sub, err := e.ledger.SubscribeInboundItems(ctx)
	if err != nil {
		return err
	}
	defer sub.Close()

	e.log.Info("engine started")
	for {
		select {
		case <-ctx.Done():
			e.log.Info("engine stopping")
			return ctx.Err()

		case err, ok := <-sub.Errors():
			if !ok {
				return nil
			}
			e.log.Warn("inbound subscription error", zap.Error(err))

		case item, ok := <-sub.Events():
			if !ok {
				return nil
			}
			if err := e.HandleItem(ctx, item); err != nil {
				e.log.Error("item handling failed",
					zap.Int64("actor_id", item.ActorID),
					zap.Error(err))
			}
		}
	}
}

// onBurstSettled announces a shipment once its burst has gone quiet.
func (e *Engine) onBurstSettled(s correlator.Settled) {
	ctx, cancel := context.WithTimeout(context.Background(), settleTimeout)
	defer cancel()

	if err := e.announce(ctx, s.ShipmentID, s.Event, nil, true); err != nil {
		e.log.Error("failed to announce settled burst",
			zap.String("shipment_id", s.ShipmentID),
			zap.String("burst_key", s.BurstKey),
			zap.Error(err))
	}
}

// announce loads a shipment and fans its event out to the resolved
// audience. Field edits announce text-only; withPhotos is for the flows
// where the photo set itself is the news.
func (e *Engine) announce(ctx context.Context, shipmentID string, event ledger.EventKind, changes []string, withPhotos bool) error {
	shipment, err := e.ledger.GetShipment(ctx, shipmentID)
	if err != nil {
		return err
	}
	card, err := e.ledger.GetClient(ctx, shipment.ClientID)
	if err != nil {
		return err
	}
	var photos []ledger.Photo
	if withPhotos {
		photos, err = e.ledger.ListPhotos(ctx, shipmentID)
		if err != nil {
			return err
		}
	}

	text := notify.Render(notify.Announcement{
		Event:    event,
		Shipment: shipment,
		Client:   card,
		Changes:  changes,
	})

	policy := audience.Policy{
		Managers:      e.managerScope,
		IncludeClient: e.includeClient,
	}
	if e.excludeAuthor {
		policy.Exclude = []int64{shipment.CreatedByID}
	}

	recipients := e.audience.Resolve(ctx, shipment.ClientID, policy)
	e.dispatcher.Dispatch(ctx, recipients, text, photos)
	return nil
}

// ack sends a plain-text acknowledgement to one actor. Ack failures are
// logged, never propagated: feedback is a courtesy, not a dependency.
func (e *Engine) ack(ctx context.Context, actorID int64, text string) {
	e.ackWithToken(ctx, actorID, text, "")
}

// ackWithToken sends an acknowledgement that requests a linked reply
// carrying the given prompt token.
func (e *Engine) ackWithToken(ctx context.Context, actorID int64, text, token string) {
	send := &ledger.OutboundSend{
		RecipientID: actorID,
		Shape:       ledger.ShapeText,
		Text:        text,
		PromptToken: token,
	}
	if err := e.ledger.PublishOutboundSend(ctx, send); err != nil {
		e.log.Warn("failed to send acknowledgement",
			zap.Int64("actor_id", actorID), zap.Error(err))
	}
}
