package notify

import (
	"fmt"
	"strings"

	"github.com/dyluth/creel/pkg/ledger"
)

// Announcement carries everything the caption needs about one shipment event.
type Announcement struct {
	Event    ledger.EventKind
	Shipment *ledger.Shipment
	Client   *ledger.ClientCard
	Changes  []string // Human-readable change descriptions for updates
}

// Render produces the notification text for an announcement. The same text
// serves as message body, photo caption, and album caption.
func Render(a Announcement) string {
	var b strings.Builder

	switch a.Event {
	case ledger.EventUpdated:
		b.WriteString("✏️ Shipment details updated\n")
	default:
		b.WriteString("📦 Shipment received at warehouse\n")
	}

	if a.Client.FullName != "" {
		fmt.Fprintf(&b, "Client: %s (%s)\n", a.Client.Code, a.Client.FullName)
	} else {
		fmt.Fprintf(&b, "Client: %s\n", a.Client.Code)
	}

	if a.Shipment.Pallets != nil {
		fmt.Fprintf(&b, "Pallets: %d\n", *a.Shipment.Pallets)
	} else {
		b.WriteString("Pallets: —\n")
	}
	fmt.Fprintf(&b, "Boxes: %d\n", a.Shipment.Boxes)
	fmt.Fprintf(&b, "Gross: %.2f kg", a.Shipment.GrossKg)

	if len(a.Changes) > 0 {
		b.WriteString("\n\nChanges:")
		for _, change := range a.Changes {
			b.WriteString("\n• " + change)
		}
	}

	return b.String()
}
