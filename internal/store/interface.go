// Package store defines the persistence interface for the Gatherly server.
//
// The engine pushes all of its correctness into this boundary: ReserveSlot
// is the single operation that must be atomic under concurrent callers, and
// implementations must provide it as a conditional read-modify-write at the
// storage layer, never as separate read/compare/write application code.
package store

import (
	"context"
	"time"

	"github.com/gatherlyapp/gatherly-server/internal/domain"
)

// Store defines the interface for all persistence operations.
type Store interface {
	// Lifecycle
	Close() error

	// Links
	CreateLink(ctx context.Context, link *domain.Link) error
	GetLink(ctx context.Context, id string) (*domain.Link, error)
	GetLinkBySlug(ctx context.Context, slug string) (*domain.Link, error)
	ListLinks(ctx context.Context) ([]*domain.Link, error)
	// ActivateLink persists a Draft -> Active transition. The update is
	// conditional on the stored row still being in Draft; a lost race
	// surfaces as ErrInvalidState.
	ActivateLink(ctx context.Context, link *domain.Link) error
	// MarkLinkExpired persists the Expired status. Idempotent: expiring an
	// already-expired row is a no-op.
	MarkLinkExpired(ctx context.Context, link *domain.Link) error
	// GrantAdditionalSlots raises the granted counters. It never touches
	// the used counters.
	GrantAdditionalSlots(ctx context.Context, linkID string, regular, test int) error
	// ReserveSlot atomically consumes one unit of quota for the slot type.
	// The increment commits only if the bound would not be exceeded and the
	// link is still active; otherwise ErrQuotaExceeded is returned and the
	// counters are unchanged.
	ReserveSlot(ctx context.Context, linkID string, slot domain.SlotType) error
	// IncrementLinkViews bumps the informational view counter.
	IncrementLinkViews(ctx context.Context, linkID string) error
	// IncrementUniqueGuests bumps the informational unique-guest counter.
	IncrementUniqueGuests(ctx context.Context, linkID string) error

	// Guests
	CreateGuest(ctx context.Context, guest *domain.Guest) error
	GetGuest(ctx context.Context, id string) (*domain.Guest, error)
	// GetGuestByFingerprint is the authoritative dedup lookup: exact match
	// on (link, non-empty fingerprint).
	GetGuestByFingerprint(ctx context.Context, linkID, fingerprint string) (*domain.Guest, error)
	// GetLatestGuestByIP is the weaker fallback: the most recently
	// registered guest on the link from this IP since the given instant.
	GetLatestGuestByIP(ctx context.Context, linkID, ip string, since time.Time) (*domain.Guest, error)
	UpdateGuestName(ctx context.Context, guestID, name string) error
	UpdateGuestRSVP(ctx context.Context, guestID string, status domain.RSVPStatus) error
	ListGuestsByLink(ctx context.Context, linkID string) ([]*domain.Guest, error)
}
