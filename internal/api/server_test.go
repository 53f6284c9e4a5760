package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatherlyapp/gatherly-server/internal/config"
	"github.com/gatherlyapp/gatherly-server/internal/notify"
	"github.com/gatherlyapp/gatherly-server/internal/service"
	"github.com/gatherlyapp/gatherly-server/internal/store"
	"github.com/gatherlyapp/gatherly-server/internal/store/sqlite"
)

const testAdminKey = "test-admin-key"

// testEnvelope mirrors the wire envelope for decoding in tests.
type testEnvelope[T any] struct {
	V       int    `json:"v"`
	Success bool   `json:"success"`
	Data    T      `json:"data"`
	Error   string `json:"error"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// testServer wraps the API server for handler tests.
type testServer struct {
	*Server
	api   humatest.TestAPI
	store store.Store
}

func setupTestServer(t *testing.T) *testServer {
	t.Helper()

	st, err := sqlite.Open(filepath.Join(t.TempDir(), "test.db"), nil)
	require.NoError(t, err)

	logger := slog.New(slog.DiscardHandler)
	manager := notify.NewManager(logger)

	cfg := &config.Config{
		Server: config.ServerConfig{
			PublicURL: "https://gatherly.test",
		},
		Links: config.LinkConfig{
			ValidityWindow: 15 * 24 * time.Hour,
			DedupWindow:    30 * 24 * time.Hour,
			SlugLength:     12,
		},
		Admin: config.AdminConfig{
			APIKey: testAdminKey,
		},
		RateLimit: config.RateLimitConfig{
			RPS:   1000,
			Burst: 1000,
		},
	}

	services := &Services{
		Link: service.NewLinkService(
			st, manager, logger,
			cfg.Links.ValidityWindow, cfg.Links.SlugLength, cfg.Server.PublicURL),
		Admission: service.NewAdmissionService(
			st, manager, logger, cfg.Links.DedupWindow),
	}

	srv := NewServer(cfg, st, services, manager, logger)

	t.Cleanup(func() {
		srv.Close()
		_ = st.Close()
	})

	return &testServer{
		Server: srv,
		api:    humatest.Wrap(t, srv.api),
		store:  st,
	}
}

// adminHeader is the admin key header in humatest form.
func adminHeader() string {
	return "X-Admin-Key: " + testAdminKey
}

// createTestLink creates a link through the admin API and returns it.
func (ts *testServer) createTestLink(t *testing.T, regular, test int) AdminLinkResponse {
	t.Helper()

	resp := ts.api.Post("/api/v1/admin/links", map[string]any{
		"order_ref":       "order-123",
		"title":           "Launch Party",
		"granted_regular": regular,
		"granted_test":    test,
	}, adminHeader())
	require.Equal(t, http.StatusOK, resp.Code, "create failed: %s", resp.Body.String())

	var envelope testEnvelope[AdminLinkResponse]
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &envelope))
	return envelope.Data
}

// createActiveLink creates and activates a link through the admin API.
func (ts *testServer) createActiveLink(t *testing.T, regular, test int) AdminLinkResponse {
	t.Helper()

	link := ts.createTestLink(t, regular, test)

	resp := ts.api.Post("/api/v1/admin/links/"+link.ID+"/activate", adminHeader())
	require.Equal(t, http.StatusOK, resp.Code, "activate failed: %s", resp.Body.String())

	var envelope testEnvelope[AdminLinkResponse]
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &envelope))
	return envelope.Data
}

// getLink fetches a link through the admin API.
func (ts *testServer) getLink(t *testing.T, id string) AdminLinkResponse {
	t.Helper()

	resp := ts.api.Get("/api/v1/admin/links/"+id, adminHeader())
	require.Equal(t, http.StatusOK, resp.Code)

	var envelope testEnvelope[AdminLinkResponse]
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &envelope))
	return envelope.Data
}

func TestHealthCheck(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.api.Get("/health")
	assert.Equal(t, http.StatusOK, resp.Code)

	var envelope testEnvelope[HealthResponse]
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &envelope))

	assert.True(t, envelope.Success)
	assert.Equal(t, "healthy", envelope.Data.Status)
	assert.Equal(t, "healthy", envelope.Data.Components["database"].Status)
	assert.Equal(t, "healthy", envelope.Data.Components["events"].Status)
}
