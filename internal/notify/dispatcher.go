// Package notify turns shipment announcements into per-recipient sends.
// Delivery is best-effort: one recipient's failure never blocks the others,
// and the announcement path never returns a delivery error to the caller.
package notify

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/dyluth/creel/pkg/ledger"
)

// Transport delivers a single prepared send. Implementations must be safe
// for concurrent use.
type Transport interface {
	Send(ctx context.Context, send *ledger.OutboundSend) error
}

// Dispatcher fans an announcement out to its audience.
type Dispatcher struct {
	transport   Transport
	log         *zap.Logger
	maxAlbum    int
	sendTimeout time.Duration
}

// NewDispatcher creates a Dispatcher. Zero maxAlbum defaults to 10 (the
// transport's album ceiling); zero sendTimeout defaults to 5s.
func NewDispatcher(transport Transport, logger *zap.Logger, maxAlbum int, sendTimeout time.Duration) *Dispatcher {
	if maxAlbum <= 0 {
		maxAlbum = 10
	}
	if sendTimeout == 0 {
		sendTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		transport:   transport,
		log:         logger.Named("notify"),
		maxAlbum:    maxAlbum,
		sendTimeout: sendTimeout,
	}
}

// Dispatch sends the announcement to every recipient. The message shape
// follows the photo count: none is plain text, one is a captioned photo,
// several form an album truncated to the album ceiling with the caption on
// the first item. Returns the number of successful deliveries.
func (d *Dispatcher) Dispatch(ctx context.Context, recipients []int64, text string, photos []ledger.Photo) int {
	fileIDs := make([]string, 0, len(photos))
	for _, p := range photos {
		fileIDs = append(fileIDs, p.FileID)
	}
	if len(fileIDs) > d.maxAlbum {
		d.log.Warn("truncating album",
			zap.Int("photos", len(fileIDs)),
			zap.Int("max_album", d.maxAlbum))
		fileIDs = fileIDs[:d.maxAlbum]
	}

	delivered := 0
	for _, recipient := range recipients {
		send := &ledger.OutboundSend{
			RecipientID:  recipient,
			Text:         text,
			PhotoFileIDs: fileIDs,
		}
		switch len(fileIDs) {
		case 0:
			send.Shape = ledger.ShapeText
		case 1:
			send.Shape = ledger.ShapePhoto
		default:
			send.Shape = ledger.ShapeAlbum
		}

		if err := d.deliver(ctx, send); err != nil {
			d.log.Warn("delivery failed",
				zap.Int64("recipient_id", recipient),
				zap.String("shape", string(send.Shape)),
				zap.Error(err))
			continue
		}
		delivered++
	}

	d.log.Info("announcement dispatched",
		zap.Int("recipients", len(recipients)),
		zap.Int("delivered", delivered))
	return delivered
}

func (d *Dispatcher) deliver(ctx context.Context, send *ledger.OutboundSend) error {
	sendCtx, cancel := context.WithTimeout(ctx, d.sendTimeout)
	defer cancel()
	return d.transport.Send(sendCtx, send)
}
