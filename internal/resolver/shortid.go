// Package resolver resolves short shipment ID prefixes to full UUIDs.
// Shipment IDs are UUIDs, which nobody types into a chat; commands accept a
// unique prefix instead.
package resolver

import (
	"context"
	"fmt"
	"strings"

	"github.com/dyluth/creel/pkg/ledger"
)

// MinShortIDLength is the minimum required length for short ID prefixes.
// Set to 6 characters to balance usability with collision avoidance.
const MinShortIDLength = 6

// ResolveShipmentID resolves a short ID prefix to a full shipment UUID.
// Returns the full UUID if exactly one match is found.
//
// The function handles three cases:
// 1. Input is already a full UUID (36 chars, 4 hyphens) - validates existence
// 2. Input is too short (< 6 chars) - returns validation error
// 3. Input is a short prefix - scans for matches and returns a unique result
func ResolveShipmentID(ctx context.Context, client *ledger.Client, shortID string) (string, error) {
	if len(shortID) == 36 && strings.Count(shortID, "-") == 4 {
		if _, err := client.GetShipment(ctx, shortID); err != nil {
			if ledger.IsNotFound(err) {
				return "", &NotFoundError{ShortID: shortID}
			}
			return "", fmt.Errorf("failed to verify shipment existence: %w", err)
		}
		return shortID, nil
	}

	if len(shortID) < MinShortIDLength {
		return "", fmt.Errorf("short ID must be at least %d characters (got %d)", MinShortIDLength, len(shortID))
	}

	matches, err := client.ScanShipments(ctx, shortID)
	if err != nil {
		return "", fmt.Errorf("failed to search for shipment: %w", err)
	}

	switch len(matches) {
	case 0:
		return "", &NotFoundError{ShortID: shortID}
	case 1:
		return matches[0], nil
	default:
		return "", &AmbiguousError{ShortID: shortID, Matches: matches}
	}
}

// NotFoundError indicates no shipments matched the short ID.
type NotFoundError struct {
	ShortID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no shipments found matching '%s'", e.ShortID)
}

// AmbiguousError indicates multiple shipments matched the short ID.
type AmbiguousError struct {
	ShortID string
	Matches []string
}

func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("ambiguous short ID '%s' matches %d shipments", e.ShortID, len(e.Matches))
}

// IsNotFoundError checks if an error is a NotFoundError.
func IsNotFoundError(err error) bool {
	_, ok := err.(*NotFoundError)
	return ok
}

// IsAmbiguousError checks if an error is an AmbiguousError.
func IsAmbiguousError(err error) bool {
	_, ok := err.(*AmbiguousError)
	return ok
}
