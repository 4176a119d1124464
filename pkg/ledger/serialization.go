package ledger

import (
	"fmt"
	"strconv"
)

// Serialization helpers for converting between Go structs and Redis hashes
//
// Redis stores hash data as string-to-string maps. Optional numeric fields
// are stored as empty strings when absent. List-shaped data (photos, intake
// items) lives in Redis lists of JSON values instead, see client.go.

// ShipmentToHash converts a Shipment struct to a Redis hash format.
func ShipmentToHash(s *Shipment) map[string]interface{} {
	pallets := ""
	if s.Pallets != nil {
		pallets = strconv.Itoa(*s.Pallets)
	}

	return map[string]interface{}{
		"id":            s.ID,
		"client_id":     s.ClientID,
		"pallets":       pallets,
		"boxes":         s.Boxes,
		"gross_kg":      strconv.FormatFloat(s.GrossKg, 'f', -1, 64),
		"source_text":   s.SourceText,
		"burst_key":     s.BurstKey,
		"status":        string(s.Status),
		"created_by_id": s.CreatedByID,
		"created_at_ms": s.CreatedAtMs,
		"updated_at_ms": s.UpdatedAtMs,
	}
}

// HashToShipment converts a Redis hash to a Shipment struct.
func HashToShipment(hash map[string]string) (*Shipment, error) {
	var pallets *int
	if raw := hash["pallets"]; raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid pallets field: %w", err)
		}
		pallets = &n
	}

	boxes, err := strconv.Atoi(hash["boxes"])
	if err != nil {
		return nil, fmt.Errorf("invalid boxes field: %w", err)
	}

	gross, err := strconv.ParseFloat(hash["gross_kg"], 64)
	if err != nil {
		return nil, fmt.Errorf("invalid gross_kg field: %w", err)
	}

	createdBy, err := parseOptionalInt64(hash["created_by_id"])
	if err != nil {
		return nil, fmt.Errorf("invalid created_by_id field: %w", err)
	}

	createdAt, err := parseOptionalInt64(hash["created_at_ms"])
	if err != nil {
		return nil, fmt.Errorf("invalid created_at_ms field: %w", err)
	}

	updatedAt, err := parseOptionalInt64(hash["updated_at_ms"])
	if err != nil {
		return nil, fmt.Errorf("invalid updated_at_ms field: %w", err)
	}

	return &Shipment{
		ID:          hash["id"],
		ClientID:    hash["client_id"],
		Pallets:     pallets,
		Boxes:       boxes,
		GrossKg:     gross,
		SourceText:  hash["source_text"],
		BurstKey:    hash["burst_key"],
		Status:      ShipmentStatus(hash["status"]),
		CreatedByID: createdBy,
		CreatedAtMs: createdAt,
		UpdatedAtMs: updatedAt,
	}, nil
}

// ClientToHash converts a ClientCard struct to a Redis hash format.
func ClientToHash(c *ClientCard) map[string]interface{} {
	return map[string]interface{}{
		"id":            c.ID,
		"code":          c.Code,
		"full_name":     c.FullName,
		"created_at_ms": c.CreatedAtMs,
	}
}

// HashToClient converts a Redis hash to a ClientCard struct.
func HashToClient(hash map[string]string) (*ClientCard, error) {
	createdAt, err := parseOptionalInt64(hash["created_at_ms"])
	if err != nil {
		return nil, fmt.Errorf("invalid created_at_ms field: %w", err)
	}

	return &ClientCard{
		ID:          hash["id"],
		Code:        hash["code"],
		FullName:    hash["full_name"],
		CreatedAtMs: createdAt,
	}, nil
}

// MemberToHash converts a Member struct to a Redis hash format.
func MemberToHash(m *Member) map[string]interface{} {
	return map[string]interface{}{
		"chat_id":   m.ChatID,
		"role":      string(m.Role),
		"verified":  strconv.FormatBool(m.Verified),
		"client_id": m.ClientID,
	}
}

// HashToMember converts a Redis hash to a Member struct.
func HashToMember(hash map[string]string) (*Member, error) {
	chatID, err := strconv.ParseInt(hash["chat_id"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid chat_id field: %w", err)
	}

	verified, err := strconv.ParseBool(hash["verified"])
	if err != nil {
		return nil, fmt.Errorf("invalid verified field: %w", err)
	}

	return &Member{
		ChatID:   chatID,
		Role:     Role(hash["role"]),
		Verified: verified,
		ClientID: hash["client_id"],
	}, nil
}

// parseOptionalInt64 parses an int64 hash field, treating "" as zero.
func parseOptionalInt64(raw string) (int64, error) {
	if raw == "" {
		return 0, nil
	}
	return strconv.ParseInt(raw, 10, 64)
}
