package domain

import "time"

// RSVPStatus is a guest's attendance response. It is independent of
// admission: changing it never touches quota counters.
type RSVPStatus string

const (
	// RSVPUndecided is the initial response.
	RSVPUndecided RSVPStatus = "undecided"
	// RSVPAttending means the guest confirmed attendance.
	RSVPAttending RSVPStatus = "attending"
	// RSVPNotAttending means the guest declined.
	RSVPNotAttending RSVPStatus = "not_attending"
)

// ValidRSVPStatus reports whether s is one of the three known responses.
func ValidRSVPStatus(s RSVPStatus) bool {
	switch s {
	case RSVPUndecided, RSVPAttending, RSVPNotAttending:
		return true
	}
	return false
}

// Guest is a device admitted through an invitation link. A guest's quota
// reservation is made exactly once, at creation, and never released.
//
// Invariant: per link, at most one guest may exist for a non-empty
// DeviceFingerprint. Guests with an empty fingerprint are deduplicated
// best-effort by IP within a trailing window instead.
type Guest struct {
	Record
	LinkID            string     `json:"link_id"`
	Name              string     `json:"name"`
	Phone             string     `json:"phone,omitempty"`
	Message           string     `json:"message,omitempty"`
	DeviceFingerprint string     `json:"device_fingerprint,omitempty"`
	IPAddress         string     `json:"ip_address,omitempty"`
	UserAgent         string     `json:"user_agent,omitempty"`
	IsTestSlot        bool       `json:"is_test_slot"`
	RSVPStatus        RSVPStatus `json:"rsvp_status"`
	RegisteredAt      time.Time  `json:"registered_at"`
}

// SlotType returns the pool this guest's reservation was drawn from.
// Fixed at creation; a guest never migrates between pools.
func (g *Guest) SlotType() SlotType {
	return ParseSlotType(g.IsTestSlot)
}
