package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gatherlyapp/gatherly-server/internal/domain"
	domainerrors "github.com/gatherlyapp/gatherly-server/internal/errors"
	"github.com/gatherlyapp/gatherly-server/internal/fingerprint"
	"github.com/gatherlyapp/gatherly-server/internal/id"
	"github.com/gatherlyapp/gatherly-server/internal/notify"
	"github.com/gatherlyapp/gatherly-server/internal/store"
	"github.com/gatherlyapp/gatherly-server/internal/validation"
)

// AdmissionService is the guest-facing façade: it resolves slugs, gates on
// the link lifecycle, deduplicates devices, and admits genuinely new guests
// through the store's atomic reserve operation.
//
// Nothing here holds in-process locks. Concurrent registrations for the same
// link serialize at the storage layer inside ReserveSlot; every other step
// tolerates races because a false dedup miss only costs one extra (still
// bounded) reservation.
type AdmissionService struct {
	store     store.Store
	notifier  notify.Notifier
	validator *validation.Validator
	logger    *slog.Logger

	// dedupWindow is how far back the IP fallback looks when a client could
	// not supply a fingerprint.
	dedupWindow time.Duration
}

// NewAdmissionService creates a new admission service.
func NewAdmissionService(
	st store.Store,
	notifier notify.Notifier,
	logger *slog.Logger,
	dedupWindow time.Duration,
) *AdmissionService {
	return &AdmissionService{
		store:       st,
		notifier:    notifier,
		validator:   validation.New(),
		logger:      logger,
		dedupWindow: dedupWindow,
	}
}

// RegistrationPayload is the guest-supplied registration request. The
// transport fields (IPAddress, UserAgent) are populated by the handler from
// the connection, never trusted from the client body.
type RegistrationPayload struct {
	Name    string `json:"name" validate:"required,max=100"`
	Phone   string `json:"phone" validate:"max=32"`
	Message string `json:"message" validate:"max=500"`

	// Fingerprint is the client-computed digest, if it could compute one.
	Fingerprint string `json:"fingerprint" validate:"max=128"`

	// Raw browser signals; used to derive a fingerprint server-side when the
	// client did not send a precomputed one.
	ScreenResolution string `json:"screen_resolution" validate:"max=32"`
	TimezoneOffset   string `json:"timezone_offset" validate:"max=16"`
	Languages        string `json:"languages" validate:"max=128"`
	CanvasHash       string `json:"canvas_hash" validate:"max=128"`

	IsTest bool `json:"is_test"`

	IPAddress string `json:"-"`
	UserAgent string `json:"-"`
}

// GuestResult is the outcome of a registration attempt.
type GuestResult struct {
	Guest   *domain.Guest `json:"guest"`
	Created bool          `json:"created"`
}

// LinkView is the guest-facing projection of a link, shown on the landing page.
type LinkView struct {
	Slug             string     `json:"slug"`
	Title            string     `json:"title,omitempty"`
	Status           string     `json:"status"`
	RemainingRegular int        `json:"remaining_regular"`
	RemainingTest    int        `json:"remaining_test"`
	ExpiresAt        *time.Time `json:"expires_at,omitempty"`
}

// DuplicateCheck is the result of a read-only dedup pre-flight.
type DuplicateCheck struct {
	Registered bool          `json:"registered"`
	Guest      *domain.Guest `json:"guest,omitempty"`
}

// ViewLink resolves a slug for a guest, bumps the view counter, and returns
// the landing-page projection. Fails with NotFound for unknown or Draft
// slugs and Expired for retired links.
func (s *AdmissionService) ViewLink(ctx context.Context, slug string) (*LinkView, error) {
	link, err := s.resolveUsable(ctx, slug)
	if err != nil {
		return nil, err
	}

	if err := s.store.IncrementLinkViews(ctx, link.ID); err != nil {
		// Views are informational; log and serve the page anyway.
		s.logger.Warn("failed to increment link views", "link_id", link.ID, "error", err)
	}

	return &LinkView{
		Slug:             link.Slug,
		Title:            link.Title,
		Status:           string(link.Status),
		RemainingRegular: link.Remaining(domain.SlotRegular),
		RemainingTest:    link.Remaining(domain.SlotTest),
		ExpiresAt:        link.ExpiresAt,
	}, nil
}

// RegisterGuest admits a device through a link. Registration is idempotent
// per device: a recognized returning guest gets their existing record back
// with Created=false and no quota effect.
func (s *AdmissionService) RegisterGuest(ctx context.Context, slug string, payload RegistrationPayload) (*GuestResult, error) {
	if err := s.validator.Validate(payload); err != nil {
		return nil, err
	}

	link, err := s.resolveUsable(ctx, slug)
	if err != nil {
		return nil, err
	}
	if err := link.CheckCounters(); err != nil {
		// Corrupt counters mean the reserve invariant was bypassed; stop
		// serving this link rather than oversell.
		s.logger.Error("quota invariant violated", "link_id", link.ID, "error", err)
		return nil, err
	}

	fp := s.resolveFingerprint(payload)

	existing, err := s.findExisting(ctx, link.ID, fp, payload.IPAddress)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return s.returnExisting(ctx, existing, payload.Name)
	}

	slot := domain.ParseSlotType(payload.IsTest)
	if err := s.store.ReserveSlot(ctx, link.ID, slot); err != nil {
		switch {
		case errors.Is(err, store.ErrQuotaExceeded):
			return nil, domainerrors.QuotaExceeded(
				fmt.Sprintf("no %s slots remaining", slot))
		case errors.Is(err, store.ErrLinkNotFound):
			return nil, domainerrors.NotFound("link not found")
		default:
			return nil, fmt.Errorf("reserve slot: %w", err)
		}
	}

	guest, created, err := s.createGuest(ctx, link, payload, fp, slot)
	if err != nil {
		return nil, err
	}
	if !created {
		// Lost the insert race to a concurrent request with the same
		// fingerprint; hand back the winner's record.
		return &GuestResult{Guest: guest, Created: false}, nil
	}

	if err := s.store.IncrementUniqueGuests(ctx, link.ID); err != nil {
		s.logger.Warn("failed to increment unique guests", "link_id", link.ID, "error", err)
	}

	s.notifier.Emit(notify.NewGuestEvent(
		notify.EventGuestRegistered, link.ID, guest.ID, guest.Name,
		string(guest.RSVPStatus), guest.IsTestSlot))

	s.logger.Info("guest registered",
		"link_id", link.ID,
		"guest_id", guest.ID,
		"slot", slot,
		"fingerprinted", fp != "",
	)

	return &GuestResult{Guest: guest, Created: true}, nil
}

// CheckDuplicate is a read-only pre-flight: it reports whether this device
// already registered, so clients can skip the registration form for
// returning guests. It never mutates anything.
func (s *AdmissionService) CheckDuplicate(ctx context.Context, slug, fp, ip string) (*DuplicateCheck, error) {
	link, err := s.resolveUsable(ctx, slug)
	if err != nil {
		return nil, err
	}

	existing, err := s.findExisting(ctx, link.ID, fp, ip)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return &DuplicateCheck{Registered: false}, nil
	}
	return &DuplicateCheck{Registered: true, Guest: existing}, nil
}

// UpdateRSVP mutates a guest's attendance response. The guest is looked up
// by exact fingerprint only; the IP fallback is deliberately not used here
// because an RSVP write on a NAT false-positive would mutate a stranger's
// response.
func (s *AdmissionService) UpdateRSVP(ctx context.Context, slug, fp string, status domain.RSVPStatus) (*domain.Guest, error) {
	if fp == "" {
		return nil, domainerrors.Validation("fingerprint is required")
	}
	if !domain.ValidRSVPStatus(status) {
		return nil, domainerrors.Validationf("invalid rsvp status %q", status)
	}

	link, err := s.resolveUsable(ctx, slug)
	if err != nil {
		return nil, err
	}

	guest, err := s.store.GetGuestByFingerprint(ctx, link.ID, fp)
	if err != nil {
		if errors.Is(err, store.ErrGuestNotFound) {
			return nil, domainerrors.GuestNotFound("no registration found for this device")
		}
		return nil, fmt.Errorf("get guest: %w", err)
	}

	if err := s.store.UpdateGuestRSVP(ctx, guest.ID, status); err != nil {
		return nil, fmt.Errorf("update rsvp: %w", err)
	}
	guest.RSVPStatus = status

	s.notifier.Emit(notify.NewGuestEvent(
		notify.EventGuestRSVPChanged, link.ID, guest.ID, guest.Name,
		string(status), guest.IsTestSlot))

	return guest, nil
}

// resolveUsable resolves a slug and gates on the lifecycle. A link past its
// expiry but still reading Active has the Expired status persisted before
// the negative result returns, so status never lags reality for more than
// one observation.
func (s *AdmissionService) resolveUsable(ctx context.Context, slug string) (*domain.Link, error) {
	link, err := s.store.GetLinkBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, store.ErrLinkNotFound) {
			return nil, domainerrors.NotFound("link not found")
		}
		return nil, fmt.Errorf("get link by slug: %w", err)
	}

	now := time.Now()
	if link.IsUsable(now) {
		return link, nil
	}

	switch link.Status {
	case domain.LinkDraft:
		// Draft links are not public yet; indistinguishable from absent.
		return nil, domainerrors.NotFound("link not found")
	case domain.LinkActive:
		// Time ran out but the row still reads Active: expire it now.
		link.Expire(now)
		if err := s.store.MarkLinkExpired(ctx, link); err != nil {
			s.logger.Error("failed to persist lazy expiry", "link_id", link.ID, "error", err)
		} else {
			s.notifier.Emit(notify.NewLinkEvent(
				notify.EventLinkExpired, link.ID, link.Slug, string(link.Status), link.ExpiresAt))
			s.logger.Info("link lazily expired", "link_id", link.ID, "slug", link.Slug)
		}
	}

	return nil, domainerrors.Expired("this invitation link has expired")
}

// resolveFingerprint prefers the client's own digest; otherwise it derives
// one server-side, but only when the client sent at least one real browser
// signal. A transport-only request stays fingerprintless and falls back to
// the IP window.
func (s *AdmissionService) resolveFingerprint(payload RegistrationPayload) string {
	if payload.Fingerprint != "" {
		return payload.Fingerprint
	}

	signals := fingerprint.Signals{
		UserAgent:        payload.UserAgent,
		ScreenResolution: payload.ScreenResolution,
		TimezoneOffset:   payload.TimezoneOffset,
		Languages:        payload.Languages,
		CanvasHash:       payload.CanvasHash,
	}
	if !signals.HasClientSignal() {
		return ""
	}
	return fingerprint.Compute(signals)
}

// findExisting resolves whether this device already registered on the link.
// A non-empty fingerprint match is authoritative; otherwise the most recent
// guest from the same IP within the trailing dedup window is accepted as a
// best-effort match. The IP fallback may confuse guests sharing a NAT; that
// imprecision is accepted in exchange for recognizing signal-less clients.
func (s *AdmissionService) findExisting(ctx context.Context, linkID, fp, ip string) (*domain.Guest, error) {
	if fp != "" {
		guest, err := s.store.GetGuestByFingerprint(ctx, linkID, fp)
		if err == nil {
			return guest, nil
		}
		if !errors.Is(err, store.ErrGuestNotFound) {
			return nil, fmt.Errorf("fingerprint lookup: %w", err)
		}
	}

	if ip == "" {
		return nil, nil
	}

	since := time.Now().Add(-s.dedupWindow)
	guest, err := s.store.GetLatestGuestByIP(ctx, linkID, ip, since)
	if err != nil {
		if errors.Is(err, store.ErrGuestNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("ip lookup: %w", err)
	}
	return guest, nil
}

// returnExisting handles the idempotent path: an already-registered device
// gets its record back, with a cosmetic name refresh if the caller supplied
// a different non-empty name. No quota effect.
func (s *AdmissionService) returnExisting(ctx context.Context, existing *domain.Guest, name string) (*GuestResult, error) {
	if name != "" && name != existing.Name {
		if err := s.store.UpdateGuestName(ctx, existing.ID, name); err != nil {
			s.logger.Warn("failed to update guest name", "guest_id", existing.ID, "error", err)
		} else {
			existing.Name = name
		}
	}

	s.logger.Debug("returning guest recognized",
		"link_id", existing.LinkID,
		"guest_id", existing.ID,
	)

	return &GuestResult{Guest: existing, Created: false}, nil
}

// createGuest persists the new guest after a successful reservation. A
// UNIQUE violation here means a concurrent request with the same fingerprint
// won the insert race after both reserved; the loser returns the winner's
// record. The extra reservation is tolerated: it only undercounts capacity,
// never oversells.
func (s *AdmissionService) createGuest(
	ctx context.Context,
	link *domain.Link,
	payload RegistrationPayload,
	fp string,
	slot domain.SlotType,
) (*domain.Guest, bool, error) {
	guestID, err := id.Generate("gst")
	if err != nil {
		return nil, false, fmt.Errorf("generate guest ID: %w", err)
	}

	now := time.Now()
	guest := &domain.Guest{
		Record:            domain.Record{ID: guestID},
		LinkID:            link.ID,
		Name:              payload.Name,
		Phone:             payload.Phone,
		Message:           payload.Message,
		DeviceFingerprint: fp,
		IPAddress:         payload.IPAddress,
		UserAgent:         payload.UserAgent,
		IsTestSlot:        slot == domain.SlotTest,
		RSVPStatus:        domain.RSVPUndecided,
		RegisteredAt:      now,
	}
	guest.InitTimestamps()

	if err := s.store.CreateGuest(ctx, guest); err != nil {
		if errors.Is(err, store.ErrGuestExists) && fp != "" {
			winner, lookupErr := s.store.GetGuestByFingerprint(ctx, link.ID, fp)
			if lookupErr == nil {
				return winner, false, nil
			}
		}
		return nil, false, fmt.Errorf("create guest: %w", err)
	}

	return guest, true, nil
}
