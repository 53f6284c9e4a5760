package domain

import (
	"fmt"
	"time"

	"github.com/gatherlyapp/gatherly-server/internal/errors"
)

// LinkStatus is the lifecycle state of an invitation link.
type LinkStatus string

const (
	// LinkDraft is the initial state: the backing order was placed but not
	// yet approved. Draft links admit nobody.
	LinkDraft LinkStatus = "draft"
	// LinkActive means the link is live and admitting guests until its
	// expiry or quota runs out.
	LinkActive LinkStatus = "active"
	// LinkExpired is terminal. No further reservations regardless of
	// remaining quota.
	LinkExpired LinkStatus = "expired"
)

// SlotType distinguishes the two admission pools of a link.
type SlotType string

const (
	// SlotRegular is a paid admission slot.
	SlotRegular SlotType = "regular"
	// SlotTest is a host-preview slot, accounted separately so hosts can
	// try their own link without burning paid quota.
	SlotTest SlotType = "test"
)

// ParseSlotType converts a wire value to a SlotType.
func ParseSlotType(isTest bool) SlotType {
	if isTest {
		return SlotTest
	}
	return SlotRegular
}

// Link is a single shareable invitation URL with a finite admission quota
// and an expiry. Slugs are public opaque tokens, immutable once issued.
//
// Invariant: UsedRegular <= GrantedRegular and UsedTest <= GrantedTest at
// every observable instant. The used counters are owned by the store's
// atomic reserve operation and must never be written through any other path.
type Link struct {
	Record
	Slug     string     `json:"slug"`
	OrderRef string     `json:"order_ref"`       // external order that purchased the slots
	Title    string     `json:"title,omitempty"` // cosmetic, shown on the landing page
	Status   LinkStatus `json:"status"`

	GrantedRegular int `json:"granted_regular"`
	GrantedTest    int `json:"granted_test"`
	UsedRegular    int `json:"used_regular"`
	UsedTest       int `json:"used_test"`

	TotalViews       int `json:"total_views"`
	UniqueGuestCount int `json:"unique_guest_count"`

	ActivatedAt *time.Time `json:"activated_at,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	ExpiredAt   *time.Time `json:"expired_at,omitempty"`
}

// Activate transitions a Draft link to Active, stamping the activation time
// and computing the expiry as now + validity.
func (l *Link) Activate(now time.Time, validity time.Duration) error {
	if l.Status != LinkDraft {
		return errors.InvalidTransition(
			fmt.Sprintf("cannot activate link in status %q", l.Status))
	}
	expires := now.Add(validity)
	l.Status = LinkActive
	l.ActivatedAt = &now
	l.ExpiresAt = &expires
	l.UpdatedAt = now
	return nil
}

// Expire transitions the link to Expired. Calling it on an already-expired
// link is a no-op, not an error.
func (l *Link) Expire(now time.Time) {
	if l.Status == LinkExpired {
		return
	}
	l.Status = LinkExpired
	l.ExpiredAt = &now
	l.UpdatedAt = now
}

// IsUsable reports whether the link admits guests at the given instant:
// Active and not past its expiry. Callers that observe a stale Active status
// (time expired but status not yet flipped) must persist the Expired state
// before returning the negative result.
func (l *Link) IsUsable(now time.Time) bool {
	if l.Status != LinkActive {
		return false
	}
	if l.ExpiresAt != nil && now.After(*l.ExpiresAt) {
		return false
	}
	return true
}

// Granted returns the granted count for a slot type.
func (l *Link) Granted(slot SlotType) int {
	if slot == SlotTest {
		return l.GrantedTest
	}
	return l.GrantedRegular
}

// Used returns the used count for a slot type.
func (l *Link) Used(slot SlotType) int {
	if slot == SlotTest {
		return l.UsedTest
	}
	return l.UsedRegular
}

// Remaining returns the unconsumed quota for a slot type.
func (l *Link) Remaining(slot SlotType) int {
	return l.Granted(slot) - l.Used(slot)
}

// CheckCounters verifies the quota invariant on a link loaded from storage.
// A violation means the atomic reserve path was bypassed somewhere; it is a
// programmer error, not a user-facing condition.
func (l *Link) CheckCounters() error {
	if l.UsedRegular > l.GrantedRegular || l.UsedTest > l.GrantedTest {
		return errors.Internalf(
			"link %s has corrupt quota counters: regular %d/%d, test %d/%d",
			l.ID, l.UsedRegular, l.GrantedRegular, l.UsedTest, l.GrantedTest)
	}
	return nil
}
