package api

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/liminalqa/liminal/internal/entity"
	"github.com/liminalqa/liminal/internal/ids"
	"github.com/liminalqa/liminal/internal/ingest"
	"github.com/liminalqa/liminal/internal/metrics"
	"github.com/liminalqa/liminal/internal/store"
)

func discardSlog() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// newTestServer wires a full server over a temp-dir store and returns the
// httptest server fronting its middleware-wrapped handler.
func newTestServer(t *testing.T, authToken string) (*httptest.Server, *store.Store) {
	t.Helper()

	st, err := store.Open(store.DefaultConfig(filepath.Join(t.TempDir(), "liminal.db")))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	cfg := LoadServerConfig()
	cfg.AuthToken = authToken

	reg := metrics.New()
	svc := ingest.New(st, reg, discardSlog())
	server := NewServer(&cfg, st, svc, reg, nil, nil)

	ts := httptest.NewServer(server.httpServer.Handler)
	t.Cleanup(ts.Close)

	return ts, st
}

func postJSON(t *testing.T, url, token string, body any) *http.Response {
	t.Helper()

	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(payload))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)

	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()

	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestHealthRoute(t *testing.T) {
	ts, _ := newTestServer(t, "")

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var health healthResponse
	decodeBody(t, resp, &health)
	require.Equal(t, "ok", health.Status)
	require.Equal(t, "liminal", health.Service)
}

func TestBatchRoute_HappyPath(t *testing.T) {
	// Happy-path batch over HTTP.
	ts, st := newTestServer(t, "")

	src := ids.NewSource()
	buildID := src.New()
	require.NoError(t, st.PutEntity(entity.Build{
		ID: buildID, SystemRef: src.New(), Commit: "abc123", Status: entity.BuildSuccess,
	}))

	now := time.Now().UTC()

	resp := postJSON(t, ts.URL+"/ingest/batch", "", map[string]any{
		"run": map[string]any{
			"build_ref": buildID.String(), "plan_name": "nightly", "started_at": now,
		},
		"tests": []map[string]any{
			{"name": "test_a", "status": "pass", "duration_ms": 100, "started_at": now, "completed_at": now.Add(100 * time.Millisecond)},
			{"name": "test_b", "status": "fail", "duration_ms": 200, "started_at": now, "completed_at": now.Add(200 * time.Millisecond)},
		},
		"signals": []map[string]any{
			{"test_name": "test_a", "kind": "api", "timestamp": now, "latency_ms": 50},
		},
		"artifacts": []map[string]any{
			{"test_name": "test_b", "kind": "screenshot", "sha256": "abc123"},
		},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result batchResponse
	decodeBody(t, resp, &result)
	require.True(t, result.OK)
	require.Equal(t, countsDTO{Run: 1, Tests: 2, Signals: 1, Artifacts: 1}, result.Counts)
	require.Contains(t, result.TestIDMap, "test_a")
	require.Contains(t, result.TestIDMap, "test_b")
}

func TestBatchRoute_UnknownTestNameReturns404WithPartialCounts(t *testing.T) {
	ts, st := newTestServer(t, "")

	src := ids.NewSource()
	buildID := src.New()
	require.NoError(t, st.PutEntity(entity.Build{
		ID: buildID, SystemRef: src.New(), Commit: "abc123", Status: entity.BuildSuccess,
	}))

	now := time.Now().UTC()

	resp := postJSON(t, ts.URL+"/ingest/batch", "", map[string]any{
		"run": map[string]any{
			"build_ref": buildID.String(), "plan_name": "nightly", "started_at": now,
		},
		"signals": []map[string]any{
			{"test_name": "ghost", "kind": "api", "timestamp": now},
		},
	})
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	var failure struct {
		PartialCounts countsDTO `json:"partial_counts"`
	}
	decodeBody(t, resp, &failure)
	require.Equal(t, countsDTO{Run: 1}, failure.PartialCounts)
}

func TestQueryRoute_TimeshiftOverIngestedFacts(t *testing.T) {
	ts, st := newTestServer(t, "")

	src := ids.NewSource()
	buildID := src.New()
	require.NoError(t, st.PutEntity(entity.Build{
		ID: buildID, SystemRef: src.New(), Commit: "abc123", Status: entity.BuildSuccess,
	}))

	now := time.Now().UTC()

	resp := postJSON(t, ts.URL+"/ingest/batch", "", map[string]any{
		"run": map[string]any{
			"build_ref": buildID.String(), "plan_name": "nightly", "started_at": now,
		},
		"tests": []map[string]any{
			{"name": "test_a", "status": "pass", "duration_ms": 100, "started_at": now, "completed_at": now.Add(100 * time.Millisecond)},
		},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = postJSON(t, ts.URL+"/query", "", map[string]any{
		"timeshift": map[string]any{
			"valid_time": now.Add(time.Hour), "tx_time": now.Add(time.Hour),
		},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result QueryResponse
	decodeBody(t, resp, &result)
	require.Equal(t, 2, result.Total) // the persisted test's status + duration facts
}

func TestAuth_TokenGatesIngestButNotHealth(t *testing.T) {
	ts, _ := newTestServer(t, "secret-token")

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = postJSON(t, ts.URL+"/query", "", map[string]any{})
	resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = postJSON(t, ts.URL+"/query", "secret-token", map[string]any{})
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}
