package ledger

import (
	"fmt"

	"github.com/google/uuid"
)

// Shipment represents one logistics submission. A shipment is created from a
// single captioned item (text or photo) or from the first item of a photo
// burst; later burst items augment the already-committed shipment.
type Shipment struct {
	ID          string         `json:"id"`                       // UUID - unique identifier for this shipment
	ClientID    string         `json:"client_id"`                // UUID of the client card this shipment belongs to
	Pallets     *int           `json:"pallets,omitempty"`        // Pallet count; nil means "not recorded"
	Boxes       int            `json:"boxes"`                    // Box ("places") count
	GrossKg     float64        `json:"gross_kg"`                 // Gross weight in kilograms
	SourceText  string         `json:"source_text"`              // The raw line or caption the shipment was created from
	BurstKey    string         `json:"burst_key,omitempty"`      // Transport burst identifier, empty for standalone items
	Status      ShipmentStatus `json:"status"`                   // Lifecycle status
	CreatedByID int64          `json:"created_by_id,omitempty"`  // Chat ID of the actor who created the shipment, 0 if unknown
	CreatedAtMs int64          `json:"created_at_ms"`            // Unix timestamp in milliseconds when the shipment was created
	UpdatedAtMs int64          `json:"updated_at_ms,omitempty"`  // Unix timestamp in milliseconds of the last mutation
}

// ShipmentStatus defines the lifecycle state of a shipment.
type ShipmentStatus string

const (
	// StatusDraft marks an intake-session shipment that is still accumulating items
	StatusDraft ShipmentStatus = "draft"

	// StatusConfirmed marks a committed shipment visible to recipient computation
	StatusConfirmed ShipmentStatus = "confirmed"
)

// Validate checks that the shipment is structurally valid.
func (s *Shipment) Validate() error {
	if _, err := uuid.Parse(s.ID); err != nil {
		return fmt.Errorf("invalid shipment ID: %w", err)
	}
	if s.ClientID == "" {
		return fmt.Errorf("shipment client_id cannot be empty")
	}
	if s.Pallets != nil && *s.Pallets < 0 {
		return fmt.Errorf("pallet count cannot be negative")
	}
	if s.Boxes < 0 {
		return fmt.Errorf("box count cannot be negative")
	}
	if s.GrossKg < 0 {
		return fmt.Errorf("gross weight cannot be negative")
	}
	switch s.Status {
	case StatusDraft, StatusConfirmed:
	default:
		return fmt.Errorf("invalid shipment status: %s", s.Status)
	}
	return nil
}

// Photo is an opaque transport photo reference. The transport may offer the
// same capture in several resolutions; the recorded photo is the best
// (highest resolution) variant.
type Photo struct {
	FileID      string `json:"file_id"`                // Transport file identifier, used to re-send the photo
	UniqueID    string `json:"unique_id,omitempty"`    // Transport capture identifier, stable across variants
	Width       int    `json:"width,omitempty"`        // Pixel width, 0 if unknown
	Height      int    `json:"height,omitempty"`       // Pixel height, 0 if unknown
	FileSize    int64  `json:"file_size,omitempty"`    // Size in bytes, 0 if unknown
	StoragePath string `json:"storage_path,omitempty"` // Binary-store path, empty if the photo was not archived
}

// Validate checks that the photo carries a transport identifier.
func (p *Photo) Validate() error {
	if p.FileID == "" {
		return fmt.Errorf("photo file_id cannot be empty")
	}
	return nil
}

// ClientCard represents a client. Cards are auto-created the first time a
// shipment line references an unknown client code.
type ClientCard struct {
	ID          string `json:"id"`                  // UUID - unique identifier for this client
	Code        string `json:"code"`                // Client code as written on shipment lines (e.g. "C001", "M255-D")
	FullName    string `json:"full_name,omitempty"` // Optional display name
	CreatedAtMs int64  `json:"created_at_ms"`       // Unix timestamp in milliseconds when the card was created
}

// Validate checks that the client card is structurally valid.
func (c *ClientCard) Validate() error {
	if _, err := uuid.Parse(c.ID); err != nil {
		return fmt.Errorf("invalid client ID: %w", err)
	}
	if c.Code == "" {
		return fmt.Errorf("client code cannot be empty")
	}
	return nil
}

// Role defines a roster member's authorisation level.
type Role string

const (
	// RoleAdmin can manage shipments for any client and administer the roster
	RoleAdmin Role = "admin"

	// RoleManager can manage shipments on behalf of clients
	RoleManager Role = "manager"

	// RoleUser is a client-side contact who only receives notifications
	RoleUser Role = "user"

	// RoleBlocked is excluded from all notifications and operations
	RoleBlocked Role = "blocked"
)

// Member is one roster entry: a transport-addressable chat user.
type Member struct {
	ChatID   int64  `json:"chat_id"`             // Transport chat identifier (delivery address)
	Role     Role   `json:"role"`                // Authorisation level
	Verified bool   `json:"verified"`            // Whether the user completed phone verification
	ClientID string `json:"client_id,omitempty"` // Client card this user is linked to, empty for staff
}

// Elevated reports whether the member holds a shipment-management role.
func (m *Member) Elevated() bool {
	return m.Role == RoleAdmin || m.Role == RoleManager
}

// Validate checks that the member is structurally valid.
func (m *Member) Validate() error {
	if m.ChatID == 0 {
		return fmt.Errorf("member chat_id cannot be zero")
	}
	switch m.Role {
	case RoleAdmin, RoleManager, RoleUser, RoleBlocked:
	default:
		return fmt.Errorf("invalid member role: %s", m.Role)
	}
	return nil
}

// PromptKind identifies the operation a pending prompt will complete.
// At most one live prompt exists per (actor, kind); registering a new prompt
// of the same kind supersedes the previous one.
type PromptKind string

const (
	// PromptEdit awaits a corrected "CODE [PALLETS] BOXES GROSS" line for a shipment
	PromptEdit PromptKind = "edit"

	// PromptAddPhotos awaits photos to append to a shipment
	PromptAddPhotos PromptKind = "add_photos"

	// PromptReplacePhotos awaits photos that replace a shipment's existing set
	PromptReplacePhotos PromptKind = "replace_photos"
)

// Prompt is an outstanding request for free-form input. The token is the
// opaque correlation key the transport's reply-linkage mechanism carries
// back; it replaces any matching on prompt text.
type Prompt struct {
	Token       string     `json:"token"`       // UUID - opaque reply-correlation token
	ActorID     int64      `json:"actor_id"`    // Chat ID of the actor the prompt was issued to
	Kind        PromptKind `json:"kind"`        // Operation the reply will complete
	ShipmentID  string     `json:"shipment_id"` // Shipment the operation applies to
	CreatedAtMs int64      `json:"created_at_ms"`
}

// Validate checks that the prompt is structurally valid.
func (p *Prompt) Validate() error {
	if _, err := uuid.Parse(p.Token); err != nil {
		return fmt.Errorf("invalid prompt token: %w", err)
	}
	if p.ActorID == 0 {
		return fmt.Errorf("prompt actor_id cannot be zero")
	}
	switch p.Kind {
	case PromptEdit, PromptAddPhotos, PromptReplacePhotos:
	default:
		return fmt.Errorf("invalid prompt kind: %s", p.Kind)
	}
	if p.ShipmentID == "" {
		return fmt.Errorf("prompt shipment_id cannot be empty")
	}
	return nil
}

// EventKind distinguishes shipment notifications.
type EventKind string

const (
	// EventCreated announces a newly committed shipment
	EventCreated EventKind = "created"

	// EventUpdated announces a mutation of an existing shipment
	EventUpdated EventKind = "updated"
)

// BurstBinding is the value stored against a live burst key. It records which
// shipment the burst's items attach to and which event kind the settled
// burst should announce.
type BurstBinding struct {
	ShipmentID string    `json:"shipment_id"`
	Event      EventKind `json:"event"`
}

// IntakeItem is one accumulated line of an intake session. Totals are summed
// when the session is finished.
type IntakeItem struct {
	Pallets     int     `json:"pallets"`
	Boxes       int     `json:"boxes"`
	GrossKg     float64 `json:"gross_kg"`
	CreatedAtMs int64   `json:"created_at_ms"`
}

// InboundItem is one item received from the chat transport, published by a
// transport adapter onto the inbound channel. Exactly which fields are set
// depends on what the user sent: a text line, a photo with or without a
// caption, or a reply to an earlier prompt.
type InboundItem struct {
	ActorID    int64   `json:"actor_id"`              // Chat ID of the sender
	BurstKey   string  `json:"burst_key,omitempty"`   // Set when the item is part of a multi-photo burst
	Caption    string  `json:"caption,omitempty"`     // Photo caption, if any
	Text       string  `json:"text,omitempty"`        // Message text, if any
	ReplyToken string  `json:"reply_token,omitempty"` // Prompt token carried by the transport's reply linkage
	PhotoSizes []Photo `json:"photo_sizes,omitempty"` // Size variants of one capture, smallest first
}

// BestPhoto returns the highest-resolution variant of the item's photo, or
// nil if the item carries no photo. Transports list variants smallest first.
func (i *InboundItem) BestPhoto() *Photo {
	if len(i.PhotoSizes) == 0 {
		return nil
	}
	best := i.PhotoSizes[len(i.PhotoSizes)-1]
	return &best
}

// SendShape declares the delivery payload shape of an outbound send.
type SendShape string

const (
	// ShapeText is a plain text message
	ShapeText SendShape = "text"

	// ShapePhoto is a single photo with the full caption attached
	ShapePhoto SendShape = "photo"

	// ShapeAlbum is a grouped multi-photo message; the caption is attached
	// to the first item only (captions on later items of a group are not
	// guaranteed to display)
	ShapeAlbum SendShape = "album"
)

// OutboundSend is one delivery to one recipient, published onto the outbound
// channel for a transport adapter to execute.
type OutboundSend struct {
	RecipientID  int64     `json:"recipient_id"`
	Shape        SendShape `json:"shape"`
	Text         string    `json:"text"`                     // Message body or caption
	PhotoFileIDs []string  `json:"photo_file_ids,omitempty"` // Insertion order preserved
	PromptToken  string    `json:"prompt_token,omitempty"`   // When set, the transport requests a linked reply carrying this token
}

// Validate checks that the send is structurally valid for its shape.
func (s *OutboundSend) Validate() error {
	if s.RecipientID == 0 {
		return fmt.Errorf("send recipient_id cannot be zero")
	}
	switch s.Shape {
	case ShapeText:
		if len(s.PhotoFileIDs) != 0 {
			return fmt.Errorf("text send cannot carry photos")
		}
	case ShapePhoto:
		if len(s.PhotoFileIDs) != 1 {
			return fmt.Errorf("photo send requires exactly one photo, got %d", len(s.PhotoFileIDs))
		}
	case ShapeAlbum:
		if len(s.PhotoFileIDs) < 2 {
			return fmt.Errorf("album send requires at least two photos, got %d", len(s.PhotoFileIDs))
		}
	default:
		return fmt.Errorf("invalid send shape: %s", s.Shape)
	}
	return nil
}
