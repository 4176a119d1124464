// Package audience computes the recipient set for a shipment announcement.
// Resolution is policy-driven and failure-tolerant: a roster read error
// yields an empty audience with a warning rather than blocking the
// announcement path.
package audience

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/dyluth/creel/pkg/ledger"
)

// ManagerScope selects which managers are included in an audience.
type ManagerScope string

const (
	// ManagersAll includes every manager regardless of client assignment.
	ManagersAll ManagerScope = "all"

	// ManagersByClient includes only managers assigned to the shipment's client.
	ManagersByClient ManagerScope = "by_client"

	// ManagersNone includes no managers.
	ManagersNone ManagerScope = "none"
)

// Policy controls audience composition for one resolution.
type Policy struct {
	Managers      ManagerScope
	IncludeClient bool    // Include the client's verified, non-blocked contacts
	Exclude       []int64 // Chat IDs removed from the final set (typically the author)
}

// Roster supplies membership reads. *ledger.Client satisfies it.
type Roster interface {
	RosterForClient(ctx context.Context, clientID string) ([]ledger.Member, error)
	ManagersAll(ctx context.Context) ([]ledger.Member, error)
	ManagersForClient(ctx context.Context, clientID string) ([]ledger.Member, error)
}

// Resolver computes deduplicated recipient lists.
type Resolver struct {
	roster Roster
	log    *zap.Logger
}

// NewResolver creates a Resolver over the given roster.
func NewResolver(roster Roster, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{roster: roster, log: logger.Named("audience")}
}

// Resolve returns the chat IDs to notify about a shipment for the given
// client, deduplicated and sorted. Blocked and unverified members are
// filtered out of both sources; managers are included per the policy's
// scope. A roster failure is logged and contributes an empty slice for
// that source.
func (r *Resolver) Resolve(ctx context.Context, clientID string, policy Policy) []int64 {
	seen := make(map[int64]bool)

	if policy.IncludeClient {
		members, err := r.roster.RosterForClient(ctx, clientID)
		if err != nil {
			r.log.Warn("failed to read client roster",
				zap.String("client_id", clientID), zap.Error(err))
		}
		for _, m := range members {
			if m.Verified && m.Role != ledger.RoleBlocked {
				seen[m.ChatID] = true
			}
		}
	}

	var managers []ledger.Member
	var err error
	switch policy.Managers {
	case ManagersAll:
		managers, err = r.roster.ManagersAll(ctx)
	case ManagersByClient:
		managers, err = r.roster.ManagersForClient(ctx, clientID)
	}
	if err != nil {
		r.log.Warn("failed to read managers",
			zap.String("scope", string(policy.Managers)), zap.Error(err))
	}
	for _, m := range managers {
		if m.Verified && m.Role != ledger.RoleBlocked {
			seen[m.ChatID] = true
		}
	}

	for _, id := range policy.Exclude {
		delete(seen, id)
	}

	out := make([]int64, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
