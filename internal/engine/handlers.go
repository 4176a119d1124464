package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dyluth/creel/internal/correlator"
	"github.com/dyluth/creel/internal/parse"
	"github.com/dyluth/creel/internal/resolver"
	"github.com/dyluth/creel/pkg/ledger"
)

// HandleItem routes one inbound item. Routing order matters: prompt replies
// first, then photos, then text. An item that matches nothing is dropped
// with a debug log, never an error.
func (e *Engine) HandleItem(ctx context.Context, item *ledger.InboundItem) error {
	switch {
	case item.ReplyToken != "":
		return e.handleReply(ctx, item)
	case item.BestPhoto() != nil:
		return e.handlePhoto(ctx, item)
	case item.Text != "":
		return e.handleText(ctx, item)
	default:
		e.log.Debug("empty item dropped", zap.Int64("actor_id", item.ActorID))
		return nil
	}
}

// ─── Prompt replies ───────────────────────────────────────────────────────

func (e *Engine) handleReply(ctx context.Context, item *ledger.InboundItem) error {
	p, err := e.prompts.Resolve(ctx, item.ReplyToken)
	if err != nil {
		return err
	}
	if p == nil {
		// Later frames of a reply album carry the same already-consumed
		// token; their burst key is bound by now, so route them as photos.
		if item.BestPhoto() != nil {
			return e.handlePhoto(ctx, item)
		}
		e.ack(ctx, item.ActorID, "That request has expired or was already handled.")
		return nil
	}

	switch p.Kind {
	case ledger.PromptEdit:
		return e.applyEdit(ctx, item, p)
	case ledger.PromptAddPhotos, ledger.PromptReplacePhotos:
		return e.attachPromptPhotos(ctx, item, p)
	default:
		return fmt.Errorf("unknown prompt kind: %s", p.Kind)
	}
}

// applyEdit parses a correction line from the reply and applies it to the
// prompted shipment, announcing the changes.
func (e *Engine) applyEdit(ctx context.Context, item *ledger.InboundItem, p *ledger.Prompt) error {
	text := item.Text
	if text == "" {
		text = item.Caption
	}
	edit := parse.EditLine(text)
	if edit == nil {
		// Let the actor retry under a fresh token.
		token, err := e.prompts.Register(ctx, p.ActorID, ledger.PromptEdit, p.ShipmentID)
		if err != nil {
			return err
		}
		e.ackWithToken(ctx, item.ActorID,
			"Couldn't read that. Reply with: CODE [PALLETS] BOXES GROSS", token)
		return nil
	}

	shipment, err := e.ledger.GetShipment(ctx, p.ShipmentID)
	if err != nil {
		if ledger.IsNotFound(err) {
			e.ack(ctx, item.ActorID, "That shipment no longer exists.")
			return nil
		}
		return err
	}
	card, err := e.ledger.GetClient(ctx, shipment.ClientID)
	if err != nil {
		return err
	}

	var changes []string

	if edit.ClientCode != card.Code {
		newCard, err := e.ledger.EnsureClient(ctx, edit.ClientCode, "")
		if err != nil {
			return err
		}
		changes = append(changes, fmt.Sprintf("Client: %s → %s", card.Code, newCard.Code))
		shipment.ClientID = newCard.ID
	}
	if edit.Pallets != nil && (shipment.Pallets == nil || *shipment.Pallets != *edit.Pallets) {
		changes = append(changes, fmt.Sprintf("Pallets: %s → %d", palletsLabel(shipment.Pallets), *edit.Pallets))
		shipment.Pallets = edit.Pallets
	}
	if shipment.Boxes != edit.Boxes {
		changes = append(changes, fmt.Sprintf("Boxes: %d → %d", shipment.Boxes, edit.Boxes))
		shipment.Boxes = edit.Boxes
	}
	if shipment.GrossKg != edit.GrossKg {
		changes = append(changes, fmt.Sprintf("Gross: %.2f → %.2f kg", shipment.GrossKg, edit.GrossKg))
		shipment.GrossKg = edit.GrossKg
	}

	if len(changes) == 0 {
		e.ack(ctx, item.ActorID, "No changes detected.")
		return nil
	}

	if err := e.ledger.UpdateShipment(ctx, shipment); err != nil {
		return err
	}
	e.log.Info("shipment edited",
		zap.String("shipment_id", shipment.ID),
		zap.Int("changes", len(changes)))
	e.ack(ctx, item.ActorID, "Shipment updated.")
	// Field edits announce text-only; photos ride along only on the
	// add/replace flows.
	return e.announce(ctx, shipment.ID, ledger.EventUpdated, changes, false)
}

// attachPromptPhotos handles the first reply frame of an add/replace photo
// flow. A replace clears the existing set before the first append; when the
// reply is an album, the burst key is adopted so later frames attach too.
func (e *Engine) attachPromptPhotos(ctx context.Context, item *ledger.InboundItem, p *ledger.Prompt) error {
	photo := item.BestPhoto()
	if photo == nil {
		token, err := e.prompts.Register(ctx, p.ActorID, p.Kind, p.ShipmentID)
		if err != nil {
			return err
		}
		e.ackWithToken(ctx, item.ActorID, "Reply with the photos to attach.", token)
		return nil
	}

	if _, err := e.ledger.GetShipment(ctx, p.ShipmentID); err != nil {
		if ledger.IsNotFound(err) {
			e.ack(ctx, item.ActorID, "That shipment no longer exists.")
			return nil
		}
		return err
	}

	if p.Kind == ledger.PromptReplacePhotos {
		if err := e.ledger.ClearPhotos(ctx, p.ShipmentID); err != nil {
			return err
		}
	}
	if err := e.ledger.AppendPhoto(ctx, p.ShipmentID, *photo); err != nil {
		return err
	}
	e.ack(ctx, item.ActorID, "Photos updated.")

	if item.BurstKey != "" {
		return e.correlator.AdoptBurst(ctx, item.BurstKey, p.ShipmentID)
	}
	return e.announce(ctx, p.ShipmentID, ledger.EventUpdated, nil, true)
}

// ─── Photos ───────────────────────────────────────────────────────────────

func (e *Engine) handlePhoto(ctx context.Context, item *ledger.InboundItem) error {
	// Photos are submissions: only verified staff can commit shipments or
	// attach frames.
	elevated, err := e.requireElevated(ctx, item.ActorID)
	if err != nil {
		return err
	}
	if !elevated {
		e.log.Debug("photo from non-elevated actor ignored",
			zap.Int64("actor_id", item.ActorID))
		return nil
	}

	// An actor mid add/replace flow claims any photo they send, captioned
	// or not.
	if handled, err := e.tryPromptPhoto(ctx, item); handled || err != nil {
		return err
	}

	if item.Caption != "" {
		result, err := e.observeCaptioned(ctx, item)
		if err != nil {
			return err
		}
		switch result.Outcome {
		case correlator.OutcomeCommitted:
			if item.BurstKey == "" {
				// No settle will fire for a standalone item.
				return e.announce(ctx, result.ShipmentID, ledger.EventCreated, nil, true)
			}
			return nil
		case correlator.OutcomeAppended:
			return nil
		}
		// NoMatch falls through: the caption may just be commentary on a
		// continuation frame or an intake photo.
	}

	if item.BurstKey != "" {
		result, err := e.correlator.ObserveBurstContinuation(ctx, item.BurstKey, item.BestPhoto())
		if err != nil {
			return err
		}
		if result.Outcome == correlator.OutcomeAppended {
			return nil
		}
	}

	// Photos sent during an intake session document the draft.
	shipmentID, err := e.activeIntake(ctx, item.ActorID)
	if err != nil {
		return err
	}
	if shipmentID != "" {
		return e.ledger.AppendPhoto(ctx, shipmentID, *item.BestPhoto())
	}

	e.log.Debug("unroutable photo dropped",
		zap.Int64("actor_id", item.ActorID),
		zap.String("burst_key", item.BurstKey))
	return nil
}

func (e *Engine) observeCaptioned(ctx context.Context, item *ledger.InboundItem) (*correlator.Result, error) {
	if item.BurstKey != "" {
		return e.correlator.ObserveBurstOpening(ctx, item.ActorID, item.BurstKey, item.Caption, item.BestPhoto())
	}
	return e.correlator.ObserveStandalone(ctx, item.ActorID, item.Caption, item.BestPhoto())
}

// tryPromptPhoto consumes a pending add/replace prompt if the actor has
// one, attaching the photo to the prompted shipment.
func (e *Engine) tryPromptPhoto(ctx context.Context, item *ledger.InboundItem) (bool, error) {
	for _, kind := range []ledger.PromptKind{ledger.PromptAddPhotos, ledger.PromptReplacePhotos} {
		p, err := e.prompts.Active(ctx, item.ActorID, kind)
		if err != nil {
			return false, err
		}
		if p == nil {
			continue
		}
		consumed, err := e.prompts.Resolve(ctx, p.Token)
		if err != nil {
			return false, err
		}
		if consumed == nil {
			continue // Raced with another frame
		}
		return true, e.attachPromptPhotos(ctx, item, consumed)
	}
	return false, nil
}

// ─── Text ─────────────────────────────────────────────────────────────────

func (e *Engine) handleText(ctx context.Context, item *ledger.InboundItem) error {
	if strings.HasPrefix(item.Text, "/") {
		return e.handleCommand(ctx, item)
	}

	// Shipment and intake lines are submissions; the same gate as commands
	// applies, but plain chatter from anyone else is dropped silently.
	elevated, err := e.requireElevated(ctx, item.ActorID)
	if err != nil {
		return err
	}
	if !elevated {
		e.log.Debug("text from non-elevated actor ignored",
			zap.Int64("actor_id", item.ActorID))
		return nil
	}

	// Inside an intake session, bare "PALLETS BOXES GROSS" lines accumulate.
	shipmentID, err := e.activeIntake(ctx, item.ActorID)
	if err != nil {
		return err
	}
	if shipmentID != "" {
		if intakeItem := parse.ItemLine(item.Text); intakeItem != nil {
			return e.recordIntakeItem(ctx, item.ActorID, shipmentID, intakeItem)
		}
	}

	result, err := e.correlator.ObserveStandalone(ctx, item.ActorID, item.Text, nil)
	if err != nil {
		return err
	}
	if result.Outcome == correlator.OutcomeCommitted {
		return e.announce(ctx, result.ShipmentID, ledger.EventCreated, nil, true)
	}

	e.log.Debug("unrecognised text ignored", zap.Int64("actor_id", item.ActorID))
	return nil
}

// ─── Commands ─────────────────────────────────────────────────────────────

func (e *Engine) handleCommand(ctx context.Context, item *ledger.InboundItem) error {
	fields := strings.Fields(item.Text)
	command := fields[0]
	args := fields[1:]

	elevated, err := e.requireElevated(ctx, item.ActorID)
	if err != nil {
		return err
	}
	if !elevated {
		e.ack(ctx, item.ActorID, "You are not allowed to do that.")
		return nil
	}

	switch command {
	case "/receive_start":
		if len(args) != 1 {
			e.ack(ctx, item.ActorID, "Usage: /receive_start CODE")
			return nil
		}
		return e.startIntake(ctx, item.ActorID, args[0])

	case "/receive_done":
		return e.finishIntake(ctx, item.ActorID)

	case "/edit":
		return e.registerPrompt(ctx, item.ActorID, ledger.PromptEdit, args,
			"Reply with the corrected line: CODE [PALLETS] BOXES GROSS")

	case "/add_photos":
		return e.registerPrompt(ctx, item.ActorID, ledger.PromptAddPhotos, args,
			"Reply with the photos to add.")

	case "/replace_photos":
		return e.registerPrompt(ctx, item.ActorID, ledger.PromptReplacePhotos, args,
			"Reply with the new photos; the current ones will be replaced.")

	default:
		e.ack(ctx, item.ActorID, fmt.Sprintf("Unknown command: %s", command))
		return nil
	}
}

func (e *Engine) registerPrompt(ctx context.Context, actorID int64, kind ledger.PromptKind, args []string, instruction string) error {
	if len(args) != 1 {
		e.ack(ctx, actorID, "A shipment ID is required.")
		return nil
	}

	// The argument may be a full UUID or a unique prefix of one.
	shipmentID, err := resolver.ResolveShipmentID(ctx, e.ledger, args[0])
	if err != nil {
		if resolver.IsNotFoundError(err) {
			e.ack(ctx, actorID, fmt.Sprintf("No shipment matching %s.", args[0]))
			return nil
		}
		if resolver.IsAmbiguousError(err) {
			e.ack(ctx, actorID, fmt.Sprintf("%s matches several shipments; use a longer prefix.", args[0]))
			return nil
		}
		e.ack(ctx, actorID, err.Error())
		return nil
	}

	token, err := e.prompts.Register(ctx, actorID, kind, shipmentID)
	if err != nil {
		return err
	}
	e.ackWithToken(ctx, actorID, instruction, token)
	return nil
}

// requireElevated reports whether the actor is a verified admin or manager.
func (e *Engine) requireElevated(ctx context.Context, actorID int64) (bool, error) {
	member, err := e.ledger.GetMember(ctx, actorID)
	if err != nil {
		if ledger.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return member.Verified && member.Elevated(), nil
}

// ─── Intake sessions ──────────────────────────────────────────────────────

func (e *Engine) startIntake(ctx context.Context, actorID int64, code string) error {
	if existing, err := e.activeIntake(ctx, actorID); err != nil {
		return err
	} else if existing != "" {
		e.ack(ctx, actorID, "You already have an intake session open. Finish it with /receive_done.")
		return nil
	}

	card, err := e.ledger.EnsureClient(ctx, code, "")
	if err != nil {
		return err
	}

	shipment := &ledger.Shipment{
		ID:          uuid.New().String(),
		ClientID:    card.ID,
		Status:      ledger.StatusDraft,
		CreatedByID: actorID,
		CreatedAtMs: time.Now().UnixMilli(),
	}
	if err := e.ledger.CreateShipment(ctx, shipment); err != nil {
		return err
	}
	if err := e.ledger.StartIntake(ctx, actorID, shipment.ID); err != nil {
		return err
	}

	e.log.Info("intake session started",
		zap.Int64("actor_id", actorID),
		zap.String("client_code", card.Code),
		zap.String("shipment_id", shipment.ID))
	e.ack(ctx, actorID, fmt.Sprintf(
		"Receiving for %s. Send item lines as PALLETS BOXES GROSS, photos as needed, then /receive_done.", card.Code))
	return nil
}

func (e *Engine) recordIntakeItem(ctx context.Context, actorID int64, shipmentID string, line *parse.Item) error {
	item := ledger.IntakeItem{
		Pallets:     line.Pallets,
		Boxes:       line.Boxes,
		GrossKg:     line.GrossKg,
		CreatedAtMs: time.Now().UnixMilli(),
	}
	if err := e.ledger.AppendIntakeItem(ctx, shipmentID, item); err != nil {
		return err
	}
	e.ack(ctx, actorID, fmt.Sprintf("Recorded: %d / %d / %.2f kg", line.Pallets, line.Boxes, line.GrossKg))
	return nil
}

// finishIntake totals the session's items, confirms the draft, and
// announces it.
func (e *Engine) finishIntake(ctx context.Context, actorID int64) error {
	shipmentID, err := e.activeIntake(ctx, actorID)
	if err != nil {
		return err
	}
	if shipmentID == "" {
		e.ack(ctx, actorID, "No intake session is open. Start one with /receive_start CODE.")
		return nil
	}

	items, err := e.ledger.ListIntakeItems(ctx, shipmentID)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		e.ack(ctx, actorID, "No item lines recorded yet; the session stays open.")
		return nil
	}

	shipment, err := e.ledger.GetShipment(ctx, shipmentID)
	if err != nil {
		return err
	}

	var pallets, boxes int
	var gross float64
	for _, it := range items {
		pallets += it.Pallets
		boxes += it.Boxes
		gross += it.GrossKg
	}
	shipment.Pallets = &pallets
	shipment.Boxes = boxes
	shipment.GrossKg = gross
	shipment.Status = ledger.StatusConfirmed

	if err := e.ledger.UpdateShipment(ctx, shipment); err != nil {
		return err
	}
	if err := e.ledger.ClearIntake(ctx, actorID); err != nil {
		return err
	}

	e.log.Info("intake session finished",
		zap.String("shipment_id", shipmentID),
		zap.Int("items", len(items)))
	e.ack(ctx, actorID, fmt.Sprintf("Shipment confirmed: %d pallets, %d boxes, %.2f kg.", pallets, boxes, gross))
	return e.announce(ctx, shipmentID, ledger.EventCreated, nil, true)
}

// activeIntake returns the actor's open intake shipment, or "".
func (e *Engine) activeIntake(ctx context.Context, actorID int64) (string, error) {
	shipmentID, err := e.ledger.ActiveIntake(ctx, actorID)
	if err != nil {
		if ledger.IsNotFound(err) {
			return "", nil
		}
		return "", err
	}
	return shipmentID, nil
}

func palletsLabel(p *int) string {
	if p == nil {
		return "—"
	}
	return fmt.Sprintf("%d", *p)
}
