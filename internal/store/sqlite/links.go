package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/gatherlyapp/gatherly-server/internal/domain"
	"github.com/gatherlyapp/gatherly-server/internal/store"
)

// linkColumns is the ordered list of columns selected in link queries.
// Must match the scan order in scanLink.
const linkColumns = `id, created_at, updated_at, slug, order_ref, title, status,
	granted_regular, granted_test, used_regular, used_test,
	total_views, unique_guest_count, activated_at, expires_at, expired_at`

// scanLink scans a sql.Row (or sql.Rows via its Scan method) into a domain.Link.
func scanLink(scanner interface{ Scan(dest ...any) error }) (*domain.Link, error) {
	var l domain.Link

	var (
		createdAt   string
		updatedAt   string
		status      string
		activatedAt sql.NullString
		expiresAt   sql.NullString
		expiredAt   sql.NullString
	)

	err := scanner.Scan(
		&l.ID,
		&createdAt,
		&updatedAt,
		&l.Slug,
		&l.OrderRef,
		&l.Title,
		&status,
		&l.GrantedRegular,
		&l.GrantedTest,
		&l.UsedRegular,
		&l.UsedTest,
		&l.TotalViews,
		&l.UniqueGuestCount,
		&activatedAt,
		&expiresAt,
		&expiredAt,
	)
	if err != nil {
		return nil, err
	}

	// Parse timestamps.
	l.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	l.UpdatedAt, err = parseTime(updatedAt)
	if err != nil {
		return nil, err
	}
	l.ActivatedAt, err = parseNullableTime(activatedAt)
	if err != nil {
		return nil, err
	}
	l.ExpiresAt, err = parseNullableTime(expiresAt)
	if err != nil {
		return nil, err
	}
	l.ExpiredAt, err = parseNullableTime(expiredAt)
	if err != nil {
		return nil, err
	}

	l.Status = domain.LinkStatus(status)

	return &l, nil
}

// CreateLink inserts a new link into the database.
// Returns store.ErrSlugExists if the slug is already taken.
func (s *Store) CreateLink(ctx context.Context, link *domain.Link) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO links (
			id, created_at, updated_at, slug, order_ref, title, status,
			granted_regular, granted_test, used_regular, used_test,
			total_views, unique_guest_count, activated_at, expires_at, expired_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		link.ID,
		formatTime(link.CreatedAt),
		formatTime(link.UpdatedAt),
		link.Slug,
		link.OrderRef,
		link.Title,
		string(link.Status),
		link.GrantedRegular,
		link.GrantedTest,
		link.UsedRegular,
		link.UsedTest,
		link.TotalViews,
		link.UniqueGuestCount,
		nullTimeString(link.ActivatedAt),
		nullTimeString(link.ExpiresAt),
		nullTimeString(link.ExpiredAt),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return store.ErrSlugExists
		}
		return err
	}
	return nil
}

// GetLink retrieves a link by ID.
// Returns store.ErrLinkNotFound if the link does not exist.
func (s *Store) GetLink(ctx context.Context, id string) (*domain.Link, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+linkColumns+` FROM links WHERE id = ?`, id)

	l, err := scanLink(row)
	if err == sql.ErrNoRows {
		return nil, store.ErrLinkNotFound
	}
	if err != nil {
		return nil, err
	}
	return l, nil
}

// GetLinkBySlug retrieves a link by its public slug.
// Returns store.ErrLinkNotFound if the link does not exist.
func (s *Store) GetLinkBySlug(ctx context.Context, slug string) (*domain.Link, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+linkColumns+` FROM links WHERE slug = ?`, slug)

	l, err := scanLink(row)
	if err == sql.ErrNoRows {
		return nil, store.ErrLinkNotFound
	}
	if err != nil {
		return nil, err
	}
	return l, nil
}

// ListLinks returns all links ordered by created_at descending.
func (s *Store) ListLinks(ctx context.Context) ([]*domain.Link, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+linkColumns+` FROM links ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var links []*domain.Link
	for rows.Next() {
		l, err := scanLink(rows)
		if err != nil {
			return nil, err
		}
		links = append(links, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return links, nil
}

// ActivateLink persists a Draft -> Active transition. The WHERE clause keeps
// the update conditional on the row still being in Draft, so two concurrent
// activations cannot both win.
func (s *Store) ActivateLink(ctx context.Context, link *domain.Link) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE links SET
			status = ?,
			activated_at = ?,
			expires_at = ?,
			updated_at = ?
		WHERE id = ? AND status = 'draft'`,
		string(domain.LinkActive),
		nullTimeString(link.ActivatedAt),
		nullTimeString(link.ExpiresAt),
		formatTime(link.UpdatedAt),
		link.ID,
	)
	if err != nil {
		return err
	}

	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		if _, getErr := s.GetLink(ctx, link.ID); getErr != nil {
			return getErr
		}
		return store.ErrInvalidState
	}
	return nil
}

// MarkLinkExpired persists the Expired status. Idempotent: a link that is
// already expired is left untouched and no error is returned.
func (s *Store) MarkLinkExpired(ctx context.Context, link *domain.Link) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE links SET
			status = ?,
			expired_at = ?,
			updated_at = ?
		WHERE id = ? AND status != 'expired'`,
		string(domain.LinkExpired),
		nullTimeString(link.ExpiredAt),
		formatTime(link.UpdatedAt),
		link.ID,
	)
	if err != nil {
		return err
	}

	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		// Already expired, or gone entirely.
		if _, getErr := s.GetLink(ctx, link.ID); getErr != nil {
			return getErr
		}
	}
	return nil
}

// GrantAdditionalSlots raises the granted counters for a link. The used
// counters are owned by ReserveSlot and are deliberately not touched here.
func (s *Store) GrantAdditionalSlots(ctx context.Context, linkID string, regular, test int) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE links SET
			granted_regular = granted_regular + ?,
			granted_test = granted_test + ?,
			updated_at = ?
		WHERE id = ?`,
		regular,
		test,
		formatTime(time.Now().UTC()),
		linkID,
	)
	if err != nil {
		return err
	}

	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrLinkNotFound
	}
	return nil
}

// ReserveSlot atomically consumes one unit of quota for the slot type.
// This is the compare-and-increment the whole engine leans on: the bound
// check and the increment happen in a single UPDATE, so concurrent callers
// serialize on the sqlite write lock and the used counter can never pass
// the granted counter. RowsAffected == 0 with a live link means the pool
// is exhausted.
func (s *Store) ReserveSlot(ctx context.Context, linkID string, slot domain.SlotType) error {
	var query string
	if slot == domain.SlotTest {
		query = `
			UPDATE links SET used_test = used_test + 1, updated_at = ?
			WHERE id = ? AND status = 'active' AND used_test < granted_test`
	} else {
		query = `
			UPDATE links SET used_regular = used_regular + 1, updated_at = ?
			WHERE id = ? AND status = 'active' AND used_regular < granted_regular`
	}

	result, err := s.db.ExecContext(ctx, query, formatTime(time.Now().UTC()), linkID)
	if err != nil {
		return err
	}

	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		if _, getErr := s.GetLink(ctx, linkID); getErr != nil {
			return getErr
		}
		return store.ErrQuotaExceeded
	}
	return nil
}

// IncrementLinkViews bumps the informational view counter. Never gates
// admission, so no bound check.
func (s *Store) IncrementLinkViews(ctx context.Context, linkID string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE links SET total_views = total_views + 1, updated_at = ?
		WHERE id = ?`,
		formatTime(time.Now().UTC()),
		linkID,
	)
	if err != nil {
		return err
	}

	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrLinkNotFound
	}
	return nil
}

// IncrementUniqueGuests bumps the informational unique-guest counter.
func (s *Store) IncrementUniqueGuests(ctx context.Context, linkID string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE links SET unique_guest_count = unique_guest_count + 1, updated_at = ?
		WHERE id = ?`,
		formatTime(time.Now().UTC()),
		linkID,
	)
	if err != nil {
		return err
	}

	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrLinkNotFound
	}
	return nil
}
