package domain

import (
	"testing"
	"time"

	"github.com/gatherlyapp/gatherly-server/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDraftLink() *Link {
	l := &Link{
		Slug:           "abc123def456",
		OrderRef:       "order-1",
		Status:         LinkDraft,
		GrantedRegular: 10,
		GrantedTest:    2,
	}
	l.Record.ID = "link-1"
	l.InitTimestamps()
	return l
}

func TestLink_Activate(t *testing.T) {
	l := newDraftLink()
	now := time.Now()

	err := l.Activate(now, 15*24*time.Hour)
	require.NoError(t, err)

	assert.Equal(t, LinkActive, l.Status)
	require.NotNil(t, l.ActivatedAt)
	require.NotNil(t, l.ExpiresAt)
	assert.Equal(t, now, *l.ActivatedAt)
	assert.Equal(t, now.Add(15*24*time.Hour), *l.ExpiresAt)
}

func TestLink_Activate_NotDraft(t *testing.T) {
	l := newDraftLink()
	now := time.Now()
	require.NoError(t, l.Activate(now, time.Hour))

	// Active -> activate is an invalid transition.
	err := l.Activate(now, time.Hour)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidTransition))

	// Expired -> activate too.
	l.Expire(now)
	err = l.Activate(now, time.Hour)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidTransition))
}

func TestLink_Expire_Idempotent(t *testing.T) {
	l := newDraftLink()
	now := time.Now()
	require.NoError(t, l.Activate(now, time.Hour))

	l.Expire(now)
	require.NotNil(t, l.ExpiredAt)
	firstExpiredAt := *l.ExpiredAt

	// Second call is a no-op and keeps the original timestamp.
	l.Expire(now.Add(time.Minute))
	assert.Equal(t, LinkExpired, l.Status)
	assert.Equal(t, firstExpiredAt, *l.ExpiredAt)
}

func TestLink_IsUsable(t *testing.T) {
	now := time.Now()

	l := newDraftLink()
	assert.False(t, l.IsUsable(now), "draft links admit nobody")

	require.NoError(t, l.Activate(now, time.Hour))
	assert.True(t, l.IsUsable(now))
	assert.True(t, l.IsUsable(now.Add(time.Hour)), "expiry boundary is inclusive")
	assert.False(t, l.IsUsable(now.Add(time.Hour+time.Second)))

	l.Expire(now)
	assert.False(t, l.IsUsable(now), "expired regardless of remaining quota")
}

func TestLink_SlotAccessors(t *testing.T) {
	l := newDraftLink()
	l.UsedRegular = 3
	l.UsedTest = 1

	assert.Equal(t, 10, l.Granted(SlotRegular))
	assert.Equal(t, 2, l.Granted(SlotTest))
	assert.Equal(t, 3, l.Used(SlotRegular))
	assert.Equal(t, 1, l.Used(SlotTest))
	assert.Equal(t, 7, l.Remaining(SlotRegular))
	assert.Equal(t, 1, l.Remaining(SlotTest))
}

func TestLink_CheckCounters(t *testing.T) {
	l := newDraftLink()
	l.UsedRegular = l.GrantedRegular
	require.NoError(t, l.CheckCounters())

	l.UsedRegular = l.GrantedRegular + 1
	err := l.CheckCounters()
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInternal))
}

func TestParseSlotType(t *testing.T) {
	assert.Equal(t, SlotTest, ParseSlotType(true))
	assert.Equal(t, SlotRegular, ParseSlotType(false))
}

func TestValidRSVPStatus(t *testing.T) {
	assert.True(t, ValidRSVPStatus(RSVPUndecided))
	assert.True(t, ValidRSVPStatus(RSVPAttending))
	assert.True(t, ValidRSVPStatus(RSVPNotAttending))
	assert.False(t, ValidRSVPStatus("maybe"))
	assert.False(t, ValidRSVPStatus(""))
}
