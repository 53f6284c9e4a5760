// Package domain contains the core entities of the invitation platform:
// invitation links with their admission quota and lifecycle, and the guests
// admitted through them. Types here are plain values with behavior; all
// persistence goes through the injected store.
package domain

import "time"

// Record provides common identity and timestamp fields for persisted entities.
type Record struct {
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	ID        string    `json:"id"`
}

// Touch updates the UpdatedAt timestamp to the current time.
// Call this whenever the underlying entity changes.
func (r *Record) Touch() {
	r.UpdatedAt = time.Now()
}

// InitTimestamps sets both CreatedAt and UpdatedAt to now.
// Call this when creating a new entity.
func (r *Record) InitTimestamps() {
	now := time.Now()
	r.CreatedAt = now
	r.UpdatedAt = now
}
