package validation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "github.com/gatherlyapp/gatherly-server/internal/errors"
)

type createRequest struct {
	Title   string `json:"title" validate:"required,max=200"`
	Slots   int    `json:"slots" validate:"gte=0,lte=500"`
	RSVP    string `json:"rsvp" validate:"omitempty,oneof=undecided attending not_attending"`
	Comment string `json:"comment,omitempty" validate:"max=10"`
}

func fieldErrors(t *testing.T, err error) map[string]string {
	t.Helper()
	var domErr *domainerrors.Error
	require.True(t, errors.As(err, &domErr))
	require.Equal(t, domainerrors.CodeValidation, domErr.Code)
	fields, ok := domErr.Details.(map[string]string)
	require.True(t, ok, "expected field error details, got %T", domErr.Details)
	return fields
}

func TestValidatePasses(t *testing.T) {
	v := New()

	err := v.Validate(createRequest{Title: "Housewarming", Slots: 10, RSVP: "attending"})
	assert.NoError(t, err)
}

func TestValidateRequired(t *testing.T) {
	v := New()

	err := v.Validate(createRequest{Slots: 1})
	require.Error(t, err)

	fields := fieldErrors(t, err)
	assert.Equal(t, "is required", fields["title"])
}

func TestValidateUsesJSONFieldNames(t *testing.T) {
	v := New()

	err := v.Validate(createRequest{Title: "ok", Comment: "far too long a comment"})
	require.Error(t, err)

	fields := fieldErrors(t, err)
	// "comment,omitempty" tag should report as "comment"
	assert.Contains(t, fields, "comment")
	assert.NotContains(t, fields, "Comment")
}

func TestValidateOneof(t *testing.T) {
	v := New()

	err := v.Validate(createRequest{Title: "ok", RSVP: "maybe"})
	require.Error(t, err)

	fields := fieldErrors(t, err)
	assert.Equal(t, "must be one of: undecided attending not_attending", fields["rsvp"])
}

func TestValidateRangeBounds(t *testing.T) {
	v := New()

	err := v.Validate(createRequest{Title: "ok", Slots: 501})
	require.Error(t, err)

	fields := fieldErrors(t, err)
	assert.Equal(t, "must be less than or equal to 500", fields["slots"])
}
