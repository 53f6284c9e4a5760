// Package service implements the application's business logic on top of the
// store boundary. Services own orchestration and error mapping; all quota
// correctness lives in the store's atomic reserve operation.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gatherlyapp/gatherly-server/internal/domain"
	domainerrors "github.com/gatherlyapp/gatherly-server/internal/errors"
	"github.com/gatherlyapp/gatherly-server/internal/id"
	"github.com/gatherlyapp/gatherly-server/internal/notify"
	"github.com/gatherlyapp/gatherly-server/internal/store"
	"github.com/gatherlyapp/gatherly-server/internal/validation"
)

// slugRetries bounds collision retry when minting a new slug. With ~71 bits
// of entropy per slug a second collision in a row is effectively impossible.
const slugRetries = 5

// LinkService handles the host/admin side of invitation links: creation,
// lifecycle transitions, and quota grants.
type LinkService struct {
	store     store.Store
	notifier  notify.Notifier
	validator *validation.Validator
	logger    *slog.Logger

	validityWindow time.Duration
	slugLength     int
	publicURL      string
}

// NewLinkService creates a new link service.
func NewLinkService(
	st store.Store,
	notifier notify.Notifier,
	logger *slog.Logger,
	validityWindow time.Duration,
	slugLength int,
	publicURL string,
) *LinkService {
	return &LinkService{
		store:          st,
		notifier:       notifier,
		validator:      validation.New(),
		logger:         logger,
		validityWindow: validityWindow,
		slugLength:     slugLength,
		publicURL:      publicURL,
	}
}

// CreateLinkRequest contains the data needed to create a link.
type CreateLinkRequest struct {
	OrderRef       string `json:"order_ref" validate:"required,max=100"`
	Title          string `json:"title" validate:"max=200"`
	GrantedRegular int    `json:"granted_regular" validate:"gte=0,lte=10000"`
	GrantedTest    int    `json:"granted_test" validate:"gte=0,lte=1000"`
}

// LinkResponse is returned for admin link operations.
type LinkResponse struct {
	*domain.Link
	URL string `json:"url"` // Full shareable URL
}

// CreateLink creates a new link in Draft with a freshly minted slug.
// The link admits nobody until it is activated.
func (s *LinkService) CreateLink(ctx context.Context, req CreateLinkRequest) (*LinkResponse, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	if req.GrantedRegular == 0 && req.GrantedTest == 0 {
		return nil, domainerrors.Validation("link must grant at least one slot")
	}

	linkID, err := id.Generate("link")
	if err != nil {
		return nil, fmt.Errorf("generate link ID: %w", err)
	}

	link := &domain.Link{
		Record:         domain.Record{ID: linkID},
		OrderRef:       req.OrderRef,
		Title:          req.Title,
		Status:         domain.LinkDraft,
		GrantedRegular: req.GrantedRegular,
		GrantedTest:    req.GrantedTest,
	}
	link.InitTimestamps()

	// Slug uniqueness is enforced by the store; retry on the unlikely collision.
	for attempt := 0; ; attempt++ {
		slug, err := id.NewSlug(s.slugLength)
		if err != nil {
			return nil, fmt.Errorf("generate slug: %w", err)
		}
		link.Slug = slug

		err = s.store.CreateLink(ctx, link)
		if err == nil {
			break
		}
		if errors.Is(err, store.ErrSlugExists) && attempt < slugRetries {
			continue
		}
		return nil, fmt.Errorf("create link: %w", err)
	}

	s.logger.Info("link created",
		"link_id", link.ID,
		"slug", link.Slug,
		"order_ref", link.OrderRef,
		"granted_regular", link.GrantedRegular,
		"granted_test", link.GrantedTest,
	)

	return &LinkResponse{Link: link, URL: s.LinkURL(link.Slug)}, nil
}

// ActivateLink transitions a Draft link to Active, starting its validity
// window. This is the external "order approved" event.
func (s *LinkService) ActivateLink(ctx context.Context, linkID string) (*LinkResponse, error) {
	link, err := s.getLink(ctx, linkID)
	if err != nil {
		return nil, err
	}

	if err := link.Activate(time.Now(), s.validityWindow); err != nil {
		return nil, err
	}

	if err := s.store.ActivateLink(ctx, link); err != nil {
		if errors.Is(err, store.ErrInvalidState) {
			// A concurrent activation won; report the transition failure.
			return nil, domainerrors.InvalidTransition("link is no longer in draft")
		}
		return nil, fmt.Errorf("activate link: %w", err)
	}

	s.notifier.Emit(notify.NewLinkEvent(
		notify.EventLinkActivated, link.ID, link.Slug, string(link.Status), link.ExpiresAt))

	s.logger.Info("link activated",
		"link_id", link.ID,
		"slug", link.Slug,
		"expires_at", link.ExpiresAt,
	)

	return &LinkResponse{Link: link, URL: s.LinkURL(link.Slug)}, nil
}

// ExpireLink explicitly retires a link ahead of (or regardless of) its
// natural expiry. Idempotent: expiring an expired link succeeds unchanged.
func (s *LinkService) ExpireLink(ctx context.Context, linkID string) (*LinkResponse, error) {
	link, err := s.getLink(ctx, linkID)
	if err != nil {
		return nil, err
	}

	alreadyExpired := link.Status == domain.LinkExpired
	link.Expire(time.Now())

	if !alreadyExpired {
		if err := s.store.MarkLinkExpired(ctx, link); err != nil {
			return nil, fmt.Errorf("expire link: %w", err)
		}

		s.notifier.Emit(notify.NewLinkEvent(
			notify.EventLinkExpired, link.ID, link.Slug, string(link.Status), link.ExpiresAt))

		s.logger.Info("link expired by admin", "link_id", link.ID, "slug", link.Slug)
	}

	return &LinkResponse{Link: link, URL: s.LinkURL(link.Slug)}, nil
}

// GrantAdditionalRequest contains the data for a quota grant.
type GrantAdditionalRequest struct {
	Regular int `json:"regular" validate:"gte=0,lte=10000"`
	Test    int `json:"test" validate:"gte=0,lte=1000"`
}

// GrantAdditionalSlots raises a link's granted counters. The used counters
// are owned by the reserve path and are never touched here.
func (s *LinkService) GrantAdditionalSlots(ctx context.Context, linkID string, req GrantAdditionalRequest) (*LinkResponse, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	if req.Regular == 0 && req.Test == 0 {
		return nil, domainerrors.Validation("grant must add at least one slot")
	}

	if err := s.store.GrantAdditionalSlots(ctx, linkID, req.Regular, req.Test); err != nil {
		if errors.Is(err, store.ErrLinkNotFound) {
			return nil, domainerrors.NotFound("link not found")
		}
		return nil, fmt.Errorf("grant slots: %w", err)
	}

	s.logger.Info("additional slots granted",
		"link_id", linkID,
		"regular", req.Regular,
		"test", req.Test,
	)

	link, err := s.getLink(ctx, linkID)
	if err != nil {
		return nil, err
	}
	return &LinkResponse{Link: link, URL: s.LinkURL(link.Slug)}, nil
}

// GetLink returns a link by ID.
func (s *LinkService) GetLink(ctx context.Context, linkID string) (*LinkResponse, error) {
	link, err := s.getLink(ctx, linkID)
	if err != nil {
		return nil, err
	}
	return &LinkResponse{Link: link, URL: s.LinkURL(link.Slug)}, nil
}

// GetLinkBySlug returns a link by its public slug. Admin view: unlike the
// guest-facing path it returns Draft and Expired links too.
func (s *LinkService) GetLinkBySlug(ctx context.Context, slug string) (*LinkResponse, error) {
	link, err := s.store.GetLinkBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, store.ErrLinkNotFound) {
			return nil, domainerrors.NotFound("link not found")
		}
		return nil, fmt.Errorf("get link by slug: %w", err)
	}
	return &LinkResponse{Link: link, URL: s.LinkURL(link.Slug)}, nil
}

// ListLinks returns all links, newest first.
func (s *LinkService) ListLinks(ctx context.Context) ([]*LinkResponse, error) {
	links, err := s.store.ListLinks(ctx)
	if err != nil {
		return nil, fmt.Errorf("list links: %w", err)
	}

	resp := make([]*LinkResponse, 0, len(links))
	for _, link := range links {
		resp = append(resp, &LinkResponse{Link: link, URL: s.LinkURL(link.Slug)})
	}
	return resp, nil
}

// ListGuests returns all guests admitted through a link, oldest first.
func (s *LinkService) ListGuests(ctx context.Context, linkID string) ([]*domain.Guest, error) {
	if _, err := s.getLink(ctx, linkID); err != nil {
		return nil, err
	}

	guests, err := s.store.ListGuestsByLink(ctx, linkID)
	if err != nil {
		return nil, fmt.Errorf("list guests: %w", err)
	}
	return guests, nil
}

// LinkURL returns the full shareable URL for a slug.
func (s *LinkService) LinkURL(slug string) string {
	return s.publicURL + "/i/" + slug
}

func (s *LinkService) getLink(ctx context.Context, linkID string) (*domain.Link, error) {
	link, err := s.store.GetLink(ctx, linkID)
	if err != nil {
		if errors.Is(err, store.ErrLinkNotFound) {
			return nil, domainerrors.NotFound("link not found")
		}
		return nil, fmt.Errorf("get link: %w", err)
	}
	return link, nil
}
