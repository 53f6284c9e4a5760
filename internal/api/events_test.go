package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLinkEvents_RequiresAdminKey(t *testing.T) {
	ts := setupTestServer(t)

	link := ts.createActiveLink(t, 5, 0)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/links/"+link.ID+"/events", nil)
	rec := httptest.NewRecorder()
	ts.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLinkEvents_LinkNotFound(t *testing.T) {
	ts := setupTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/links/link-missing/events?key="+testAdminKey, nil)
	rec := httptest.NewRecorder()
	ts.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLinkEvents_StreamsConnectedEvent(t *testing.T) {
	ts := setupTestServer(t)

	link := ts.createActiveLink(t, 5, 0)

	ctx, cancel := context.WithCancel(context.Background())
	timer := time.AfterFunc(100*time.Millisecond, cancel)
	defer timer.Stop()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/links/"+link.ID+"/events?key="+testAdminKey, nil)
	req = req.WithContext(ctx)
	rec := httptest.NewRecorder()

	// Serve blocks until the context fires.
	ts.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "event: connected")
}
