package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/laa-dces/mock-drc/pkg/admin"
	"github.com/laa-dces/mock-drc/pkg/auth"
	"github.com/laa-dces/mock-drc/pkg/config"
	"github.com/laa-dces/mock-drc/pkg/journal"
)

func newTestServer(t *testing.T, cfg *config.Config) (*Server, *httptest.Server) {
	t.Helper()
	s, err := New(cfg)
	require.NoError(t, err)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts
}

func fdcBody(id int) string {
	return fmt.Sprintf(`{"data":{"fdcId":%d},"meta":{}}`, id)
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestEndToEnd_SubmitInspectClear(t *testing.T) {
	_, ts := newTestServer(t, nil)

	// First submission succeeds, repeat conflicts.
	assert.Equal(t, http.StatusOK, postJSON(t, ts.URL+"/laa/v1/fdc", fdcBody(42)).StatusCode)
	assert.Equal(t, http.StatusConflict, postJSON(t, ts.URL+"/laa/v1/fdc", fdcBody(42)).StatusCode)

	// Journal shows both; registry shows the advanced state.
	resp, err := http.Get(ts.URL + "/requests")
	require.NoError(t, err)
	defer resp.Body.Close()
	var reqs struct {
		Data []journal.Entry `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&reqs))
	require.Len(t, reqs.Data, 2)
	assert.Equal(t, 200, reqs.Data[0].StatusCode)
	assert.Equal(t, 634, reqs.Data[1].StatusCode)

	// Stats reflect one accepted Fdc.
	resp, err = http.Get(ts.URL + "/laa/v1/stats")
	require.NoError(t, err)
	defer resp.Body.Close()
	var stats admin.StatsResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	assert.Equal(t, int64(1), stats.FdcCount)
	assert.Equal(t, int64(12), stats.DRCID)

	// Clear both stores; the id behaves as first-seen again.
	for _, path := range []string{"/requests", "/setup"} {
		req, err := http.NewRequest(http.MethodDelete, ts.URL+path, nil)
		require.NoError(t, err)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	}
	assert.Equal(t, http.StatusOK, postJSON(t, ts.URL+"/laa/v1/fdc", fdcBody(42)).StatusCode)
}

func TestEndToEnd_SeedViaAdmin(t *testing.T) {
	_, ts := newTestServer(t, nil)

	resp := postJSON(t, ts.URL+"/setup", `{"data":[{"entity":"Fdc","id":13,"statusCode":400}]}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	assert.Equal(t, http.StatusBadRequest, postJSON(t, ts.URL+"/laa/v1/fdc", fdcBody(13)).StatusCode)
}

func TestEndToEnd_BoundedJournal(t *testing.T) {
	cfg := config.Default()
	cfg.JournalCap = 5

	s, ts := newTestServer(t, cfg)

	const n = 9
	for id := 1; id <= n; id++ {
		postJSON(t, ts.URL+"/laa/v1/fdc", fdcBody(id))
	}

	entries := s.Journal().Snapshot(nil)
	require.Len(t, entries, 5)
	for i, entry := range entries {
		assert.Equal(t, n-4+i, entry.SubmissionID, "oldest entries evicted, order kept")
	}
}

func TestEndToEnd_ConfigSeedApplied(t *testing.T) {
	cfg := config.Default()
	cfg.Seed = []config.SeedEntry{{Entity: "Fdc", ID: 13, StatusCode: 404}}

	_, ts := newTestServer(t, cfg)

	assert.Equal(t, http.StatusNotFound, postJSON(t, ts.URL+"/laa/v1/fdc", fdcBody(13)).StatusCode)
}

func TestEndToEnd_AuthRequired(t *testing.T) {
	cfg := config.Default()
	cfg.Auth = auth.Config{
		Mode:       auth.ModeAny,
		Audience:   "mock-drc-client",
		HMACSecret: "secret",
	}

	_, ts := newTestServer(t, cfg)

	// No credentials: rejected everywhere, including admin routes.
	assert.Equal(t, http.StatusUnauthorized, postJSON(t, ts.URL+"/laa/v1/fdc", fdcBody(1)).StatusCode)
	resp, err := http.Get(ts.URL + "/setup")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// Valid bearer token passes.
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "dces-client",
		"aud": "mock-drc-client",
		"exp": time.Now().Add(time.Minute).Unix(),
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, ts.URL+"/laa/v1/fdc", strings.NewReader(fdcBody(1)))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestStartShutdown(t *testing.T) {
	cfg := config.Default()
	cfg.Addr = "127.0.0.1:0"

	s, err := New(cfg)
	require.NoError(t, err)
	require.NoError(t, s.Start())
	require.NotEmpty(t, s.Addr())

	assert.Error(t, s.Start(), "double start is rejected")

	resp, err := http.Get("http://" + s.Addr() + "/laa/v1/stats")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))
	require.NoError(t, s.Shutdown(ctx), "shutdown is idempotent")
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.DuplicateStatus = 123

	_, err := New(cfg)
	assert.Error(t, err)
}
