package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/edupack/concord-stager/internal/progress"
	"github.com/edupack/concord-stager/internal/progress/sinks"
)

func newTestServer(t *testing.T, snapshot *sinks.MemorySink) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(NewServer(snapshot, zap.NewNop()).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, sinks.NewMemorySink())
	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer func() { require.NoError(t, resp.Body.Close()) }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	var payload map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	assert.Equal(t, "ok", payload["status"])
}

// TestGetRunSnapshot serves the aggregate progress of the current run.
func TestGetRunSnapshot(t *testing.T) {
	t.Parallel()

	sink := sinks.NewMemorySink()
	runID := progress.UUIDToBytes(uuid.New())
	require.NoError(t, sink.Consume(context.Background(), []progress.Event{
		{RunID: runID, TS: time.Now().UTC(), Stage: progress.StageRunStart},
		{RunID: runID, TS: time.Now().UTC(), Stage: progress.StageEntryStart, EntryID: "interactive-42"},
		{RunID: runID, TS: time.Now().UTC(), Stage: progress.StageEntryPackaged, EntryID: "interactive-42"},
	}))

	srv := newTestServer(t, sink)
	resp, err := http.Get(srv.URL + "/v1/run")
	require.NoError(t, err)
	defer func() { require.NoError(t, resp.Body.Close()) }()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var snap sinks.Snapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
	assert.Equal(t, uuid.UUID(runID).String(), snap.RunID)
	assert.True(t, snap.Running)
	assert.Equal(t, 1, snap.Started)
	assert.Equal(t, 1, snap.Packaged)
}

func TestGetRunWithoutSnapshot(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, nil)
	resp, err := http.Get(srv.URL + "/v1/run")
	require.NoError(t, err)
	defer func() { require.NoError(t, resp.Body.Close()) }()

	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, sinks.NewMemorySink())
	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer func() { require.NoError(t, resp.Body.Close()) }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
