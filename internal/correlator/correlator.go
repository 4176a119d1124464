// Package correlator groups individually-arriving submission items into
// committed shipments. A standalone captioned item commits synchronously; a
// burst (several photos from one user action, arriving in any order) commits
// on its opening item and settles once no further frame has arrived within
// the quiet period.
package correlator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dyluth/creel/internal/debounce"
	"github.com/dyluth/creel/internal/parse"
	"github.com/dyluth/creel/pkg/ledger"
)

// Outcome classifies what an observed item did.
type Outcome string

const (
	// OutcomeNoMatch means the item's text did not parse as a shipment line.
	// Not an error: the caller decides fallback behaviour.
	OutcomeNoMatch Outcome = "no_match"

	// OutcomeCommitted means a new shipment was committed for the item.
	OutcomeCommitted Outcome = "committed"

	// OutcomeAppended means the item's photo was appended to an
	// already-committed shipment.
	OutcomeAppended Outcome = "appended"

	// OutcomeOrphan means a continuation arrived for an unknown or expired
	// burst key; the item is discarded.
	OutcomeOrphan Outcome = "orphan"
)

// Result reports the outcome of observing one item.
type Result struct {
	Outcome    Outcome
	ShipmentID string // Set for OutcomeCommitted and OutcomeAppended
}

// Settled is emitted exactly once per continuous run of burst arrivals,
// after the quiet period has elapsed with no new frame.
type Settled struct {
	ShipmentID string
	Event      ledger.EventKind
	BurstKey   string
}

// Config assembles a Correlator.
type Config struct {
	Ledger      *ledger.Client
	Debounce    *debounce.Debouncer
	Logger      *zap.Logger
	QuietPeriod time.Duration // Default: 1.5s
	BindingTTL  time.Duration // Default: 5m
	OnSettled   func(Settled)
}

// Correlator owns per-burst correlation state. Burst bindings live in the
// ledger under a TTL (the long leak-safety timeout); the debounce timer (the
// short UX timeout) is held in memory and is lost on restart, which is
// acceptable: a submission window active during a crash is abandoned.
type Correlator struct {
	ledger      *ledger.Client
	deb         *debounce.Debouncer
	log         *zap.Logger
	quietPeriod time.Duration
	bindingTTL  time.Duration
	onSettled   func(Settled)
}

// New creates a Correlator. Zero timing fields take the defaults.
func New(cfg Config) *Correlator {
	if cfg.QuietPeriod == 0 {
		cfg.QuietPeriod = 1500 * time.Millisecond
	}
	if cfg.BindingTTL == 0 {
		cfg.BindingTTL = 5 * time.Minute
	}
	if cfg.OnSettled == nil {
		cfg.OnSettled = func(Settled) {}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &Correlator{
		ledger:      cfg.Ledger,
		deb:         cfg.Debounce,
		log:         cfg.Logger.Named("correlator"),
		quietPeriod: cfg.QuietPeriod,
		bindingTTL:  cfg.BindingTTL,
		onSettled:   cfg.OnSettled,
	}
}

// ObserveStandalone handles an item that is not part of a burst. On a
// parseable line it commits a new shipment synchronously; on parse failure
// it returns OutcomeNoMatch.
func (c *Correlator) ObserveStandalone(ctx context.Context, actorID int64, text string, photo *ledger.Photo) (*Result, error) {
	line := parse.ShipmentLine(text)
	if line == nil {
		return &Result{Outcome: OutcomeNoMatch}, nil
	}

	shipmentID, err := c.commit(ctx, actorID, line, "")
	if err != nil {
		return nil, err
	}
	if photo != nil {
		if err := c.ledger.AppendPhoto(ctx, shipmentID, *photo); err != nil {
			return nil, err
		}
	}

	c.log.Info("shipment committed",
		zap.String("shipment_id", shipmentID),
		zap.String("client_code", line.ClientCode))
	return &Result{Outcome: OutcomeCommitted, ShipmentID: shipmentID}, nil
}

// ObserveBurstOpening handles the caption-bearing item of a burst. It
// commits a new shipment, binds the burst key to it for the binding TTL,
// and arms the quiet timer. A duplicate delivery of the opening item (the
// key is already bound) is treated as a continuation.
func (c *Correlator) ObserveBurstOpening(ctx context.Context, actorID int64, burstKey, caption string, photo *ledger.Photo) (*Result, error) {
	if _, err := c.ledger.LookupBurst(ctx, burstKey); err == nil {
		return c.ObserveBurstContinuation(ctx, burstKey, photo)
	} else if !ledger.IsNotFound(err) {
		return nil, err
	}

	line := parse.ShipmentLine(caption)
	if line == nil {
		return &Result{Outcome: OutcomeNoMatch}, nil
	}

	shipmentID, err := c.commit(ctx, actorID, line, burstKey)
	if err != nil {
		return nil, err
	}

	binding := ledger.BurstBinding{ShipmentID: shipmentID, Event: ledger.EventCreated}
	bound, err := c.ledger.BindBurst(ctx, burstKey, binding, c.bindingTTL)
	if err != nil {
		return nil, err
	}
	if !bound {
		// A concurrent opening for the same burst won the bind. Retract our
		// shipment and attach this item's photo to the winner instead.
		if err := c.ledger.DeleteShipment(ctx, shipmentID); err != nil {
			return nil, err
		}
		return c.ObserveBurstContinuation(ctx, burstKey, photo)
	}

	if photo != nil {
		if err := c.ledger.AppendPhoto(ctx, shipmentID, *photo); err != nil {
			return nil, err
		}
	}

	c.arm(burstKey, binding)
	c.log.Info("burst opened",
		zap.String("burst_key", burstKey),
		zap.String("shipment_id", shipmentID),
		zap.String("client_code", line.ClientCode))
	return &Result{Outcome: OutcomeCommitted, ShipmentID: shipmentID}, nil
}

// ObserveBurstContinuation handles a captionless follow-up frame. If the
// burst key is bound, the photo is appended to the bound shipment and the
// quiet timer re-armed; an unknown or expired key yields OutcomeOrphan and
// mutates nothing.
func (c *Correlator) ObserveBurstContinuation(ctx context.Context, burstKey string, photo *ledger.Photo) (*Result, error) {
	binding, err := c.ledger.LookupBurst(ctx, burstKey)
	if err != nil {
		if ledger.IsNotFound(err) {
			c.log.Debug("orphan continuation discarded", zap.String("burst_key", burstKey))
			return &Result{Outcome: OutcomeOrphan}, nil
		}
		return nil, err
	}

	if photo != nil {
		if err := c.ledger.AppendPhoto(ctx, binding.ShipmentID, *photo); err != nil {
			return nil, err
		}
	}

	c.arm(burstKey, *binding)
	return &Result{Outcome: OutcomeAppended, ShipmentID: binding.ShipmentID}, nil
}

// AdoptBurst binds a burst key to an existing shipment, so that follow-up
// frames of a photo add/replace flow attach to it. The settled event
// announces an update rather than a creation.
func (c *Correlator) AdoptBurst(ctx context.Context, burstKey, shipmentID string) error {
	binding := ledger.BurstBinding{ShipmentID: shipmentID, Event: ledger.EventUpdated}
	bound, err := c.ledger.BindBurst(ctx, burstKey, binding, c.bindingTTL)
	if err != nil {
		return err
	}
	if !bound {
		// Already adopted by an earlier frame of the same burst.
		existing, err := c.ledger.LookupBurst(ctx, burstKey)
		if err != nil {
			return err
		}
		if existing.ShipmentID != shipmentID {
			return fmt.Errorf("burst key %s already bound to shipment %s", burstKey, existing.ShipmentID)
		}
		binding = *existing
	}

	c.arm(burstKey, binding)
	return nil
}

// arm (re)arms the quiet timer for a burst key. Re-arming cancels the
// previously scheduled fire, so a continuous run of arrivals settles once.
func (c *Correlator) arm(burstKey string, binding ledger.BurstBinding) {
	c.deb.Arm(burstKey, c.quietPeriod, func() {
		c.log.Debug("burst settled",
			zap.String("burst_key", burstKey),
			zap.String("shipment_id", binding.ShipmentID))
		c.onSettled(Settled{
			ShipmentID: binding.ShipmentID,
			Event:      binding.Event,
			BurstKey:   burstKey,
		})
	})
}

// commit ensures the client card and writes a confirmed shipment.
func (c *Correlator) commit(ctx context.Context, actorID int64, line *parse.Line, burstKey string) (string, error) {
	card, err := c.ledger.EnsureClient(ctx, line.ClientCode, "")
	if err != nil {
		return "", fmt.Errorf("failed to ensure client %s: %w", line.ClientCode, err)
	}

	pallets := line.Pallets
	shipment := &ledger.Shipment{
		ID:          uuid.New().String(),
		ClientID:    card.ID,
		Pallets:     &pallets,
		Boxes:       line.Boxes,
		GrossKg:     line.GrossKg,
		SourceText:  line.SourceText,
		BurstKey:    burstKey,
		Status:      ledger.StatusConfirmed,
		CreatedByID: actorID,
		CreatedAtMs: time.Now().UnixMilli(),
	}
	if err := c.ledger.CreateShipment(ctx, shipment); err != nil {
		return "", err
	}
	return shipment.ID, nil
}
