package notify

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager() *Manager {
	return NewManager(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestConnectDisconnect(t *testing.T) {
	m := newTestManager()

	client, err := m.Connect("lnk_1")
	require.NoError(t, err)
	assert.Equal(t, "lnk_1", client.LinkID)
	assert.Equal(t, 1, m.ClientCount())

	m.Disconnect(client.ID)
	assert.Equal(t, 0, m.ClientCount())

	// Disconnecting an unknown client is a no-op.
	m.Disconnect("sse_unknown")
}

func TestBroadcastFiltersByLink(t *testing.T) {
	m := newTestManager()

	watcher, err := m.Connect("lnk_1")
	require.NoError(t, err)
	other, err := m.Connect("lnk_2")
	require.NoError(t, err)
	global, err := m.Connect("")
	require.NoError(t, err)

	m.broadcast(NewGuestEvent(EventGuestRegistered, "lnk_1", "gst_1", "Ada", "undecided", false))

	select {
	case evt := <-watcher.EventChan:
		assert.Equal(t, EventGuestRegistered, evt.Type)
	default:
		t.Fatal("watcher should have received the event")
	}

	select {
	case <-other.EventChan:
		t.Fatal("client watching another link should not receive the event")
	default:
	}

	select {
	case evt := <-global.EventChan:
		assert.Equal(t, EventGuestRegistered, evt.Type)
	default:
		t.Fatal("global client should have received the event")
	}
}

func TestBroadcastDropsForSlowClient(t *testing.T) {
	m := newTestManager()

	client, err := m.Connect("lnk_1")
	require.NoError(t, err)

	// Fill the client buffer so the next send is dropped rather than blocking.
	for range cap(client.EventChan) {
		m.broadcast(NewHeartbeatEvent())
	}
	m.broadcast(NewHeartbeatEvent())

	assert.Len(t, client.EventChan, cap(client.EventChan))
}

func TestStartDeliversEmittedEvents(t *testing.T) {
	m := newTestManager()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go m.Start(ctx)

	client, err := m.Connect("lnk_1")
	require.NoError(t, err)

	m.Emit(NewLinkEvent(EventLinkActivated, "lnk_1", "abc123", "active", nil))

	select {
	case evt := <-client.EventChan:
		assert.Equal(t, EventLinkActivated, evt.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestShutdownDropsLateEmits(t *testing.T) {
	m := newTestManager()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	err := m.Shutdown(ctx)
	require.NoError(t, err)

	// Must not panic on a closed channel.
	m.Emit(NewHeartbeatEvent())
}

func TestNoopNotifier(t *testing.T) {
	var n Notifier = Noop{}
	n.Emit(NewHeartbeatEvent())
}
