package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/gatherlyapp/gatherly-server/internal/domain"
	"github.com/gatherlyapp/gatherly-server/internal/store"
)

// guestColumns is the ordered list of columns selected in guest queries.
// Must match the scan order in scanGuest.
const guestColumns = `id, created_at, updated_at, link_id, name, phone, message,
	device_fingerprint, ip_address, user_agent, is_test_slot, rsvp_status, registered_at`

// scanGuest scans a sql.Row (or sql.Rows via its Scan method) into a domain.Guest.
func scanGuest(scanner interface{ Scan(dest ...any) error }) (*domain.Guest, error) {
	var g domain.Guest

	var (
		createdAt    string
		updatedAt    string
		isTestSlot   int
		rsvpStatus   string
		registeredAt string
	)

	err := scanner.Scan(
		&g.ID,
		&createdAt,
		&updatedAt,
		&g.LinkID,
		&g.Name,
		&g.Phone,
		&g.Message,
		&g.DeviceFingerprint,
		&g.IPAddress,
		&g.UserAgent,
		&isTestSlot,
		&rsvpStatus,
		&registeredAt,
	)
	if err != nil {
		return nil, err
	}

	// Parse timestamps.
	g.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	g.UpdatedAt, err = parseTime(updatedAt)
	if err != nil {
		return nil, err
	}
	g.RegisteredAt, err = parseTime(registeredAt)
	if err != nil {
		return nil, err
	}

	g.IsTestSlot = isTestSlot != 0
	g.RSVPStatus = domain.RSVPStatus(rsvpStatus)

	return &g, nil
}

// CreateGuest inserts a new guest into the database.
// Returns store.ErrGuestExists if a guest with the same non-empty
// fingerprint already exists on the link.
func (s *Store) CreateGuest(ctx context.Context, guest *domain.Guest) error {
	isTestSlot := 0
	if guest.IsTestSlot {
		isTestSlot = 1
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO guests (
			id, created_at, updated_at, link_id, name, phone, message,
			device_fingerprint, ip_address, user_agent, is_test_slot,
			rsvp_status, registered_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		guest.ID,
		formatTime(guest.CreatedAt),
		formatTime(guest.UpdatedAt),
		guest.LinkID,
		guest.Name,
		guest.Phone,
		guest.Message,
		guest.DeviceFingerprint,
		guest.IPAddress,
		guest.UserAgent,
		isTestSlot,
		string(guest.RSVPStatus),
		formatTime(guest.RegisteredAt),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return store.ErrGuestExists
		}
		return err
	}
	return nil
}

// GetGuest retrieves a guest by ID.
// Returns store.ErrGuestNotFound if the guest does not exist.
func (s *Store) GetGuest(ctx context.Context, id string) (*domain.Guest, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+guestColumns+` FROM guests WHERE id = ?`, id)

	g, err := scanGuest(row)
	if err == sql.ErrNoRows {
		return nil, store.ErrGuestNotFound
	}
	if err != nil {
		return nil, err
	}
	return g, nil
}

// GetGuestByFingerprint retrieves the guest registered on a link with an
// exact fingerprint match. The fingerprint must be non-empty; an empty one
// would match every signal-less guest on the link.
func (s *Store) GetGuestByFingerprint(ctx context.Context, linkID, fingerprint string) (*domain.Guest, error) {
	if fingerprint == "" {
		return nil, store.ErrGuestNotFound
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT `+guestColumns+` FROM guests
		WHERE link_id = ? AND device_fingerprint = ?`,
		linkID, fingerprint)

	g, err := scanGuest(row)
	if err == sql.ErrNoRows {
		return nil, store.ErrGuestNotFound
	}
	if err != nil {
		return nil, err
	}
	return g, nil
}

// GetLatestGuestByIP retrieves the most recently registered guest on a link
// from the given IP whose registered_at is on or after since. Best-effort
// fallback for clients without a fingerprint; guests behind a shared NAT may
// alias each other within the window.
func (s *Store) GetLatestGuestByIP(ctx context.Context, linkID, ip string, since time.Time) (*domain.Guest, error) {
	if ip == "" {
		return nil, store.ErrGuestNotFound
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT `+guestColumns+` FROM guests
		WHERE link_id = ? AND ip_address = ? AND registered_at >= ?
		ORDER BY registered_at DESC
		LIMIT 1`,
		linkID, ip, formatTime(since))

	g, err := scanGuest(row)
	if err == sql.ErrNoRows {
		return nil, store.ErrGuestNotFound
	}
	if err != nil {
		return nil, err
	}
	return g, nil
}

// UpdateGuestName updates the cosmetic name field.
// Returns store.ErrGuestNotFound if the guest does not exist.
func (s *Store) UpdateGuestName(ctx context.Context, guestID, name string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE guests SET name = ?, updated_at = ? WHERE id = ?`,
		name,
		formatTime(time.Now().UTC()),
		guestID,
	)
	if err != nil {
		return err
	}

	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrGuestNotFound
	}
	return nil
}

// UpdateGuestRSVP updates a guest's attendance response.
// Returns store.ErrGuestNotFound if the guest does not exist.
func (s *Store) UpdateGuestRSVP(ctx context.Context, guestID string, status domain.RSVPStatus) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE guests SET rsvp_status = ?, updated_at = ? WHERE id = ?`,
		string(status),
		formatTime(time.Now().UTC()),
		guestID,
	)
	if err != nil {
		return err
	}

	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrGuestNotFound
	}
	return nil
}

// ListGuestsByLink returns all guests on a link ordered by registered_at ascending.
func (s *Store) ListGuestsByLink(ctx context.Context, linkID string) ([]*domain.Guest, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+guestColumns+` FROM guests
		WHERE link_id = ?
		ORDER BY registered_at ASC`,
		linkID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var guests []*domain.Guest
	for rows.Next() {
		g, err := scanGuest(rows)
		if err != nil {
			return nil, err
		}
		guests = append(guests, g)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return guests, nil
}
