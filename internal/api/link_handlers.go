package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/gatherlyapp/gatherly-server/internal/domain"
	"github.com/gatherlyapp/gatherly-server/internal/service"
)

// registerLinkRoutes wires the admin link surface. Every operation requires
// the admin API key.
func (s *Server) registerLinkRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "createLink",
		Method:      http.MethodPost,
		Path:        "/api/v1/admin/links",
		Summary:     "Create link",
		Description: "Creates a new invitation link in draft",
		Tags:        []string{"Links"},
		Security:    []map[string][]string{{"adminKey": {}}},
	}, s.handleCreateLink)

	huma.Register(s.api, huma.Operation{
		OperationID: "listLinks",
		Method:      http.MethodGet,
		Path:        "/api/v1/admin/links",
		Summary:     "List links",
		Description: "Returns all invitation links",
		Tags:        []string{"Links"},
		Security:    []map[string][]string{{"adminKey": {}}},
	}, s.handleListLinks)

	huma.Register(s.api, huma.Operation{
		OperationID: "getLink",
		Method:      http.MethodGet,
		Path:        "/api/v1/admin/links/{id}",
		Summary:     "Get link",
		Description: "Returns a link by ID",
		Tags:        []string{"Links"},
		Security:    []map[string][]string{{"adminKey": {}}},
	}, s.handleGetLink)

	huma.Register(s.api, huma.Operation{
		OperationID: "activateLink",
		Method:      http.MethodPost,
		Path:        "/api/v1/admin/links/{id}/activate",
		Summary:     "Activate link",
		Description: "Transitions a draft link to active and starts its validity window",
		Tags:        []string{"Links"},
		Security:    []map[string][]string{{"adminKey": {}}},
	}, s.handleActivateLink)

	huma.Register(s.api, huma.Operation{
		OperationID: "expireLink",
		Method:      http.MethodPost,
		Path:        "/api/v1/admin/links/{id}/expire",
		Summary:     "Expire link",
		Description: "Forces a link into the terminal expired state. Idempotent",
		Tags:        []string{"Links"},
		Security:    []map[string][]string{{"adminKey": {}}},
	}, s.handleExpireLink)

	huma.Register(s.api, huma.Operation{
		OperationID: "grantSlots",
		Method:      http.MethodPost,
		Path:        "/api/v1/admin/links/{id}/grants",
		Summary:     "Grant additional slots",
		Description: "Raises the admission quota of a link without touching used counters",
		Tags:        []string{"Links"},
		Security:    []map[string][]string{{"adminKey": {}}},
	}, s.handleGrantSlots)

	huma.Register(s.api, huma.Operation{
		OperationID: "listLinkGuests",
		Method:      http.MethodGet,
		Path:        "/api/v1/admin/links/{id}/guests",
		Summary:     "List link guests",
		Description: "Returns all guests admitted through a link",
		Tags:        []string{"Links"},
		Security:    []map[string][]string{{"adminKey": {}}},
	}, s.handleListLinkGuests)
}

// === DTOs ===

// AdminLinkResponse is the full link as seen by the host dashboard.
type AdminLinkResponse struct {
	ID       string `json:"id" doc:"Link ID"`
	Slug     string `json:"slug" doc:"Public slug"`
	URL      string `json:"url" doc:"Full shareable URL"`
	OrderRef string `json:"order_ref" doc:"External order that purchased the slots"`
	Title    string `json:"title,omitempty" doc:"Event title"`
	Status   string `json:"status" doc:"Lifecycle status: draft, active, or expired"`

	GrantedRegular int `json:"granted_regular" doc:"Granted regular slots"`
	GrantedTest    int `json:"granted_test" doc:"Granted test slots"`
	UsedRegular    int `json:"used_regular" doc:"Consumed regular slots"`
	UsedTest       int `json:"used_test" doc:"Consumed test slots"`

	TotalViews       int `json:"total_views" doc:"Landing page views"`
	UniqueGuestCount int `json:"unique_guest_count" doc:"Distinct admitted devices"`

	ActivatedAt *time.Time `json:"activated_at,omitempty" doc:"When the link went live"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty" doc:"End of the validity window"`
	ExpiredAt   *time.Time `json:"expired_at,omitempty" doc:"When the link actually expired"`
	CreatedAt   time.Time  `json:"created_at" doc:"Creation time"`
	UpdatedAt   time.Time  `json:"updated_at" doc:"Last update time"`
}

type CreateLinkRequest struct {
	OrderRef       string `json:"order_ref" validate:"required,max=100" doc:"External order reference"`
	Title          string `json:"title,omitempty" validate:"max=200" doc:"Event title"`
	GrantedRegular int    `json:"granted_regular" validate:"gte=0,lte=10000" doc:"Regular slots to grant"`
	GrantedTest    int    `json:"granted_test" validate:"gte=0,lte=1000" doc:"Test slots to grant"`
}

type CreateLinkInput struct {
	XAdminKey string `header:"X-Admin-Key" doc:"Admin API key"`
	Body      CreateLinkRequest
}

type LinkOutput struct {
	Body AdminLinkResponse
}

type ListLinksInput struct {
	XAdminKey string `header:"X-Admin-Key" doc:"Admin API key"`
}

type ListLinksResponse struct {
	Links []AdminLinkResponse `json:"links" doc:"All invitation links"`
}

type ListLinksOutput struct {
	Body ListLinksResponse
}

type LinkIDInput struct {
	XAdminKey string `header:"X-Admin-Key" doc:"Admin API key"`
	ID        string `path:"id" doc:"Link ID"`
}

type GrantSlotsRequest struct {
	Regular int `json:"regular" validate:"gte=0" doc:"Additional regular slots"`
	Test    int `json:"test" validate:"gte=0" doc:"Additional test slots"`
}

type GrantSlotsInput struct {
	XAdminKey string `header:"X-Admin-Key" doc:"Admin API key"`
	ID        string `path:"id" doc:"Link ID"`
	Body      GrantSlotsRequest
}

// AdminGuestResponse is a guest as seen by the host dashboard. Unlike the
// guest-facing DTO it includes the dedup identifiers.
type AdminGuestResponse struct {
	ID                string    `json:"id" doc:"Guest ID"`
	Name              string    `json:"name" doc:"Guest display name"`
	Phone             string    `json:"phone,omitempty" doc:"Contact phone"`
	Message           string    `json:"message,omitempty" doc:"Message to the host"`
	DeviceFingerprint string    `json:"device_fingerprint,omitempty" doc:"Dedup fingerprint"`
	IPAddress         string    `json:"ip_address,omitempty" doc:"Registration IP"`
	IsTestSlot        bool      `json:"is_test_slot" doc:"Whether a test slot was consumed"`
	RSVPStatus        string    `json:"rsvp_status" doc:"Attendance response"`
	RegisteredAt      time.Time `json:"registered_at" doc:"When the device registered"`
}

type ListLinkGuestsResponse struct {
	Guests []AdminGuestResponse `json:"guests" doc:"Guests admitted through the link"`
}

type ListLinkGuestsOutput struct {
	Body ListLinkGuestsResponse
}

// === Handlers ===

func (s *Server) handleCreateLink(ctx context.Context, input *CreateLinkInput) (*LinkOutput, error) {
	if err := s.requireAdmin(input.XAdminKey); err != nil {
		return nil, err
	}

	link, err := s.services.Link.CreateLink(ctx, service.CreateLinkRequest{
		OrderRef:       input.Body.OrderRef,
		Title:          input.Body.Title,
		GrantedRegular: input.Body.GrantedRegular,
		GrantedTest:    input.Body.GrantedTest,
	})
	if err != nil {
		return nil, err
	}

	return &LinkOutput{Body: mapAdminLinkResponse(link)}, nil
}

func (s *Server) handleListLinks(ctx context.Context, input *ListLinksInput) (*ListLinksOutput, error) {
	if err := s.requireAdmin(input.XAdminKey); err != nil {
		return nil, err
	}

	links, err := s.services.Link.ListLinks(ctx)
	if err != nil {
		return nil, err
	}

	resp := make([]AdminLinkResponse, len(links))
	for i, link := range links {
		resp[i] = mapAdminLinkResponse(link)
	}

	return &ListLinksOutput{Body: ListLinksResponse{Links: resp}}, nil
}

func (s *Server) handleGetLink(ctx context.Context, input *LinkIDInput) (*LinkOutput, error) {
	if err := s.requireAdmin(input.XAdminKey); err != nil {
		return nil, err
	}

	link, err := s.services.Link.GetLink(ctx, input.ID)
	if err != nil {
		return nil, err
	}

	return &LinkOutput{Body: mapAdminLinkResponse(link)}, nil
}

func (s *Server) handleActivateLink(ctx context.Context, input *LinkIDInput) (*LinkOutput, error) {
	if err := s.requireAdmin(input.XAdminKey); err != nil {
		return nil, err
	}

	link, err := s.services.Link.ActivateLink(ctx, input.ID)
	if err != nil {
		return nil, err
	}

	return &LinkOutput{Body: mapAdminLinkResponse(link)}, nil
}

func (s *Server) handleExpireLink(ctx context.Context, input *LinkIDInput) (*LinkOutput, error) {
	if err := s.requireAdmin(input.XAdminKey); err != nil {
		return nil, err
	}

	link, err := s.services.Link.ExpireLink(ctx, input.ID)
	if err != nil {
		return nil, err
	}

	return &LinkOutput{Body: mapAdminLinkResponse(link)}, nil
}

func (s *Server) handleGrantSlots(ctx context.Context, input *GrantSlotsInput) (*LinkOutput, error) {
	if err := s.requireAdmin(input.XAdminKey); err != nil {
		return nil, err
	}

	link, err := s.services.Link.GrantAdditionalSlots(ctx, input.ID, service.GrantAdditionalRequest{
		Regular: input.Body.Regular,
		Test:    input.Body.Test,
	})
	if err != nil {
		return nil, err
	}

	return &LinkOutput{Body: mapAdminLinkResponse(link)}, nil
}

func (s *Server) handleListLinkGuests(ctx context.Context, input *LinkIDInput) (*ListLinkGuestsOutput, error) {
	if err := s.requireAdmin(input.XAdminKey); err != nil {
		return nil, err
	}

	guests, err := s.services.Link.ListGuests(ctx, input.ID)
	if err != nil {
		return nil, err
	}

	resp := make([]AdminGuestResponse, len(guests))
	for i, g := range guests {
		resp[i] = mapAdminGuestResponse(g)
	}

	return &ListLinkGuestsOutput{Body: ListLinkGuestsResponse{Guests: resp}}, nil
}

// === Mappers ===

func mapAdminLinkResponse(link *service.LinkResponse) AdminLinkResponse {
	return AdminLinkResponse{
		ID:               link.ID,
		Slug:             link.Slug,
		URL:              link.URL,
		OrderRef:         link.OrderRef,
		Title:            link.Title,
		Status:           string(link.Status),
		GrantedRegular:   link.GrantedRegular,
		GrantedTest:      link.GrantedTest,
		UsedRegular:      link.UsedRegular,
		UsedTest:         link.UsedTest,
		TotalViews:       link.TotalViews,
		UniqueGuestCount: link.UniqueGuestCount,
		ActivatedAt:      link.ActivatedAt,
		ExpiresAt:        link.ExpiresAt,
		ExpiredAt:        link.ExpiredAt,
		CreatedAt:        link.CreatedAt,
		UpdatedAt:        link.UpdatedAt,
	}
}

func mapAdminGuestResponse(g *domain.Guest) AdminGuestResponse {
	return AdminGuestResponse{
		ID:                g.ID,
		Name:              g.Name,
		Phone:             g.Phone,
		Message:           g.Message,
		DeviceFingerprint: g.DeviceFingerprint,
		IPAddress:         g.IPAddress,
		IsTestSlot:        g.IsTestSlot,
		RSVPStatus:        string(g.RSVPStatus),
		RegisteredAt:      g.RegisteredAt,
	}
}
