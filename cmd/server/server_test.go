package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kneutral-org/stubguard/internal/intercept"
	"github.com/kneutral-org/stubguard/internal/lock"
	"github.com/kneutral-org/stubguard/internal/metrics"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	soak     *soak
	registry *lock.Registry
	router   *gin.Engine
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics(reg)
	registry := lock.NewRegistry(lock.WithRegistryMetrics(m))
	require.NoError(t, m.RegisterRegistrySize(registry.Len))

	coordinator := lock.NewCoordinator(
		lock.WithRegistry(registry),
		lock.WithReadTimeout(200*time.Millisecond),
		lock.WithWriteTimeout(200*time.Millisecond),
		lock.WithPassWait(20*time.Millisecond),
		lock.WithMetrics(m),
	)
	s := newSoak(intercept.NewMocker(coordinator), 2, 5*time.Millisecond, zerolog.Nop())

	return &testServer{
		soak:     s,
		registry: registry,
		router:   newRouter(zerolog.Nop(), reg, s, registry),
	}
}

func (ts *testServer) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodGet, "/health", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, w.Body.String())
}

func TestSoak_Run(t *testing.T) {
	ts := newTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	require.NoError(t, ts.soak.Run(ctx))

	stats := ts.soak.Stats()
	assert.Positive(t, stats.Calls)
	assert.Positive(t, stats.Restubs)
	assert.Equal(t, stats.Calls, ts.soak.stub.Calls())

	w := ts.do(http.MethodGet, "/stats", "")
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]int64
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, stats.Calls, body["calls"])
	assert.Equal(t, stats.Restubs, body["restubs"])
	assert.Equal(t, int64(1), body["registryEntries"])
	assert.Equal(t, int64(lock.DefaultShards), body["registryShards"])
}

func TestSoak_RunStopsOnCancelledContext(t *testing.T) {
	ts := newTestServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, ts.soak.Run(ctx))
	assert.Zero(t, ts.soak.Stats().Restubs)
}

func TestPutStub(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodPut, "/stub", `{"value": 42}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"value":42}`, w.Body.String())

	got, err := ts.soak.mocker.Invoke(context.Background(), ts.soak.stub, soakMethod)
	require.NoError(t, err)
	assert.Equal(t, 42, got)
	assert.Equal(t, int64(1), ts.soak.Stats().Restubs)
}

func TestPutStub_InvalidBody(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name string
		body string
	}{
		{name: "malformed", body: `{"value":`},
		{name: "missing value", body: `{}`},
		{name: "wrong type", body: `{"value":"x"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ts.do(http.MethodPut, "/stub", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestPutStub_BodyTooLarge(t *testing.T) {
	ts := newTestServer(t)

	body := `{"value": 1, "pad": "` + strings.Repeat("x", maxStubBodyBytes) + `"}`
	w := ts.do(http.MethodPut, "/stub", body)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestPutStub_LockUnavailable(t *testing.T) {
	ts := newTestServer(t)

	l, err := ts.registry.Lock(ts.soak.stub.Key())
	require.NoError(t, err)
	require.True(t, l.TryRLock())
	defer l.RUnlock()

	w := ts.do(http.MethodPut, "/stub", `{"value": 7}`)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "lockUnavailable")
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodPut, "/stub", `{"value": 1}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = ts.do(http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "stubguard_lock_acquisitions_total")
	assert.Contains(t, w.Body.String(), "stubguard_registry_entries 1")
}
