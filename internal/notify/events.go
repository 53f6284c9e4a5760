// Package notify implements Server-Sent Events for real-time admission updates.
package notify

import (
	"time"
)

// EventType represents the type of notification event.
type EventType string

const (
	// EventLinkActivated represents a link moving from draft to active.
	EventLinkActivated EventType = "link.activated"
	// EventLinkExpired represents a link reaching the end of its validity window.
	EventLinkExpired EventType = "link.expired"
	// EventGuestRegistered represents a guest successfully claiming a slot.
	EventGuestRegistered EventType = "guest.registered"
	// EventGuestRSVPChanged represents a guest updating their RSVP status.
	EventGuestRSVPChanged EventType = "guest.rsvp_changed"

	// EventHeartbeat represents a connection keepalive event.
	EventHeartbeat EventType = "heartbeat"
)

// Event represents a notification event to be sent to clients.
// The Data field contains the event payload as a JSON object for direct deserialization.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
	Type      EventType `json:"type"`

	// LinkID filters delivery to clients watching a specific link.
	// Empty string means broadcast to all clients (not sent to client).
	LinkID string `json:"-"`
}

// LinkEventData is the data payload for link lifecycle events.
type LinkEventData struct {
	LinkID    string     `json:"link_id"`
	Slug      string     `json:"slug"`
	Status    string     `json:"status"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// GuestEventData is the data payload for guest events.
type GuestEventData struct {
	GuestID    string `json:"guest_id"`
	LinkID     string `json:"link_id"`
	Name       string `json:"name"`
	RSVPStatus string `json:"rsvp_status"`
	IsTestSlot bool   `json:"is_test_slot"`
}

// HeartbeatEventData is the data payload for heartbeat events.
type HeartbeatEventData struct {
	ServerTime time.Time `json:"server_time"`
}

// NewHeartbeatEvent creates a heartbeat event with the current time.
func NewHeartbeatEvent() Event {
	now := time.Now()
	return Event{
		Type:      EventHeartbeat,
		Timestamp: now,
		Data:      HeartbeatEventData{ServerTime: now},
	}
}

// NewLinkEvent creates a link lifecycle event targeted at the link's watchers.
func NewLinkEvent(eventType EventType, linkID, slug, status string, expiresAt *time.Time) Event {
	return Event{
		Type:      eventType,
		Timestamp: time.Now(),
		LinkID:    linkID,
		Data: LinkEventData{
			LinkID:    linkID,
			Slug:      slug,
			Status:    status,
			ExpiresAt: expiresAt,
		},
	}
}

// NewGuestEvent creates a guest event targeted at the link's watchers.
func NewGuestEvent(eventType EventType, linkID, guestID, name, rsvpStatus string, isTestSlot bool) Event {
	return Event{
		Type:      eventType,
		Timestamp: time.Now(),
		LinkID:    linkID,
		Data: GuestEventData{
			GuestID:    guestID,
			LinkID:     linkID,
			Name:       name,
			RSVPStatus: rsvpStatus,
			IsTestSlot: isTestSlot,
		},
	}
}

// Notifier is the minimal emit surface services depend on.
type Notifier interface {
	Emit(event Event)
}

// Noop is a Notifier that discards all events. Useful in tests.
type Noop struct{}

// Emit discards the event.
func (Noop) Emit(Event) {}
