package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/gatherlyapp/gatherly-server/internal/domain"
	"github.com/gatherlyapp/gatherly-server/internal/service"
)

// registerAdmissionRoutes wires the public guest surface. No authentication:
// possession of the slug is the credential.
func (s *Server) registerAdmissionRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "viewLink",
		Method:      http.MethodGet,
		Path:        "/api/v1/links/{slug}",
		Summary:     "View invitation link",
		Description: "Returns the guest-facing view of an invitation link and counts the visit",
		Tags:        []string{"Admission"},
	}, s.handleViewLink)

	huma.Register(s.api, huma.Operation{
		OperationID: "registerGuest",
		Method:      http.MethodPost,
		Path:        "/api/v1/links/{slug}/guests",
		Summary:     "Register guest",
		Description: "Registers the calling device on the link, consuming one admission slot. Returning devices get their existing registration back",
		Tags:        []string{"Admission"},
	}, s.handleRegisterGuest)

	huma.Register(s.api, huma.Operation{
		OperationID: "checkRegistration",
		Method:      http.MethodGet,
		Path:        "/api/v1/links/{slug}/registration",
		Summary:     "Check registration",
		Description: "Read-only check whether the calling device is already registered. Never consumes quota",
		Tags:        []string{"Admission"},
	}, s.handleCheckRegistration)

	huma.Register(s.api, huma.Operation{
		OperationID: "updateRSVP",
		Method:      http.MethodPut,
		Path:        "/api/v1/links/{slug}/rsvp",
		Summary:     "Update RSVP",
		Description: "Updates the attendance response of an already-registered device. Never touches quota",
		Tags:        []string{"Admission"},
	}, s.handleUpdateRSVP)
}

// === DTOs ===

// LinkViewResponse is the guest-facing projection of a link.
type LinkViewResponse struct {
	Slug             string     `json:"slug" doc:"Public link slug"`
	Title            string     `json:"title,omitempty" doc:"Event title shown on the landing page"`
	Status           string     `json:"status" doc:"Link status"`
	RemainingRegular int        `json:"remaining_regular" doc:"Unconsumed regular slots"`
	RemainingTest    int        `json:"remaining_test" doc:"Unconsumed test slots"`
	ExpiresAt        *time.Time `json:"expires_at,omitempty" doc:"When the link stops admitting guests"`
}

type ViewLinkInput struct {
	Slug string `path:"slug" doc:"Public link slug"`
}

type LinkViewOutput struct {
	Body LinkViewResponse
}

// GuestResponse is a guest as returned to the guest's own device.
// Fingerprint and network details never leave the server.
type GuestResponse struct {
	ID           string    `json:"id" doc:"Guest ID"`
	Name         string    `json:"name" doc:"Guest display name"`
	Phone        string    `json:"phone,omitempty" doc:"Contact phone"`
	Message      string    `json:"message,omitempty" doc:"Message to the host"`
	IsTestSlot   bool      `json:"is_test_slot" doc:"Whether a test slot was consumed"`
	RSVPStatus   string    `json:"rsvp_status" doc:"Attendance response"`
	RegisteredAt time.Time `json:"registered_at" doc:"When the device registered"`
}

type RegisterGuestRequest struct {
	Name    string `json:"name" validate:"required,max=100" doc:"Guest display name"`
	Phone   string `json:"phone,omitempty" validate:"max=32" doc:"Contact phone"`
	Message string `json:"message,omitempty" validate:"max=500" doc:"Message to the host"`

	Fingerprint      string `json:"fingerprint,omitempty" validate:"max=128" doc:"Client-computed device fingerprint"`
	ScreenResolution string `json:"screen_resolution,omitempty" validate:"max=32" doc:"Browser signal: screen resolution"`
	TimezoneOffset   string `json:"timezone_offset,omitempty" validate:"max=16" doc:"Browser signal: timezone offset"`
	Languages        string `json:"languages,omitempty" validate:"max=128" doc:"Browser signal: accept languages"`
	CanvasHash       string `json:"canvas_hash,omitempty" validate:"max=128" doc:"Browser signal: canvas hash"`

	IsTest bool `json:"is_test,omitempty" doc:"Consume a test slot instead of a regular one"`
}

type RegisterGuestInput struct {
	Slug string `path:"slug" doc:"Public link slug"`
	Body RegisterGuestRequest
}

// RegistrationResponse reports the outcome of a registration attempt.
type RegistrationResponse struct {
	Guest   GuestResponse `json:"guest" doc:"The registered guest"`
	Created bool          `json:"created" doc:"False when the device was already registered"`
}

type RegistrationOutput struct {
	Body RegistrationResponse
}

type CheckRegistrationInput struct {
	Slug        string `path:"slug" doc:"Public link slug"`
	Fingerprint string `query:"fingerprint" doc:"Client-computed device fingerprint"`
}

// CheckRegistrationResponse reports whether the device is registered.
type CheckRegistrationResponse struct {
	Registered bool           `json:"registered" doc:"Whether the device is already registered"`
	Guest      *GuestResponse `json:"guest,omitempty" doc:"The existing registration, if any"`
}

type CheckRegistrationOutput struct {
	Body CheckRegistrationResponse
}

type UpdateRSVPRequest struct {
	Fingerprint string `json:"fingerprint" validate:"required,max=128" doc:"Device fingerprint identifying the registration"`
	Status      string `json:"status" validate:"required,oneof=undecided attending not_attending" doc:"New attendance response"`
}

type UpdateRSVPInput struct {
	Slug string `path:"slug" doc:"Public link slug"`
	Body UpdateRSVPRequest
}

type GuestOutput struct {
	Body GuestResponse
}

// === Handlers ===

func (s *Server) handleViewLink(ctx context.Context, input *ViewLinkInput) (*LinkViewOutput, error) {
	view, err := s.services.Admission.ViewLink(ctx, input.Slug)
	if err != nil {
		return nil, err
	}

	return &LinkViewOutput{Body: LinkViewResponse{
		Slug:             view.Slug,
		Title:            view.Title,
		Status:           view.Status,
		RemainingRegular: view.RemainingRegular,
		RemainingTest:    view.RemainingTest,
		ExpiresAt:        view.ExpiresAt,
	}}, nil
}

func (s *Server) handleRegisterGuest(ctx context.Context, input *RegisterGuestInput) (*RegistrationOutput, error) {
	result, err := s.services.Admission.RegisterGuest(ctx, input.Slug, service.RegistrationPayload{
		Name:             input.Body.Name,
		Phone:            input.Body.Phone,
		Message:          input.Body.Message,
		Fingerprint:      input.Body.Fingerprint,
		ScreenResolution: input.Body.ScreenResolution,
		TimezoneOffset:   input.Body.TimezoneOffset,
		Languages:        input.Body.Languages,
		CanvasHash:       input.Body.CanvasHash,
		IsTest:           input.Body.IsTest,
		IPAddress:        ClientIP(ctx),
		UserAgent:        RequestUserAgent(ctx),
	})
	if err != nil {
		return nil, err
	}

	return &RegistrationOutput{Body: RegistrationResponse{
		Guest:   mapGuestResponse(result.Guest),
		Created: result.Created,
	}}, nil
}

func (s *Server) handleCheckRegistration(ctx context.Context, input *CheckRegistrationInput) (*CheckRegistrationOutput, error) {
	check, err := s.services.Admission.CheckDuplicate(ctx, input.Slug, input.Fingerprint, ClientIP(ctx))
	if err != nil {
		return nil, err
	}

	resp := CheckRegistrationResponse{Registered: check.Registered}
	if check.Guest != nil {
		guest := mapGuestResponse(check.Guest)
		resp.Guest = &guest
	}

	return &CheckRegistrationOutput{Body: resp}, nil
}

func (s *Server) handleUpdateRSVP(ctx context.Context, input *UpdateRSVPInput) (*GuestOutput, error) {
	guest, err := s.services.Admission.UpdateRSVP(ctx, input.Slug, input.Body.Fingerprint, domain.RSVPStatus(input.Body.Status))
	if err != nil {
		return nil, err
	}

	return &GuestOutput{Body: mapGuestResponse(guest)}, nil
}

// === Mappers ===

func mapGuestResponse(g *domain.Guest) GuestResponse {
	return GuestResponse{
		ID:           g.ID,
		Name:         g.Name,
		Phone:        g.Phone,
		Message:      g.Message,
		IsTestSlot:   g.IsTestSlot,
		RSVPStatus:   string(g.RSVPStatus),
		RegisteredAt: g.RegisteredAt,
	}
}
