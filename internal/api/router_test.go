package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goahead/predtracker/internal/api/handlers"
	"github.com/goahead/predtracker/internal/calendar"
	"github.com/goahead/predtracker/internal/contracts"
	"github.com/goahead/predtracker/internal/policy"
	"github.com/goahead/predtracker/internal/stability"
	"github.com/goahead/predtracker/internal/tracking"
	"github.com/goahead/predtracker/pkg/logger"
	"github.com/goahead/predtracker/pkg/metrics"
)

var ist = time.FixedZone("IST", 5*3600+30*60)

type testEnv struct {
	router  http.Handler
	tracker *tracking.Tracker
	gate    *stability.Gate
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	now := time.Date(2026, 10, 12, 10, 0, 0, 0, ist)
	clock := func() time.Time { return now }
	rec := metrics.New()

	cal := calendar.New(ist, calendar.WithClock(clock))
	tracker := tracking.New(tracking.NewMemoryStore(), cal, policy.Default(), zerolog.Nop(),
		tracking.WithMetrics(rec),
		tracking.WithSleep(func(time.Duration) {}),
	)

	dir := t.TempDir()
	gate := stability.NewGate(
		stability.NewSignalStore(filepath.Join(dir, "stable.json"), ist, zerolog.Nop()),
		stability.NewHistoryLog(filepath.Join(dir, "history.json"), 1000, ist, zerolog.Nop()),
		policy.Default().Stability, clock, rec, zerolog.Nop(),
	)

	log := logger.Nop()
	router := NewRouter(
		handlers.NewTrackingHandler(tracker, log),
		handlers.NewStabilityHandler(gate, log),
		rec.Handler(),
		log,
	)
	return &testEnv{router: router, tracker: tracker, gate: gate}
}

func (e *testEnv) do(method, target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, httptest.NewRequest(method, target, nil))
	return w
}

func sbin() contracts.ScoredSnapshot {
	return contracts.ScoredSnapshot{
		Symbol:       "SBIN",
		CurrentPrice: 815.25,
		Pred5D:       2.4,
		Pred1Mo:      8.8,
		Confidence:   82,
		Score:        71,
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	w := env.do("GET", "/health")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	assert.JSONEq(t, `{"status":"ok","service":"predtracker-api"}`, w.Body.String())
}

func TestRequestIDEchoed(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest("GET", "/health", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	assert.Equal(t, "abc-123", w.Header().Get("X-Request-ID"))
}

func TestTrackingSummaryAndList(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.tracker.Initialize(sbin()))

	w := env.do("GET", "/api/tracking/summary")
	require.Equal(t, http.StatusOK, w.Code)

	var summary contracts.TrackingSummary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &summary))
	assert.Equal(t, 1, summary.TotalStocks)

	w = env.do("GET", "/api/tracking")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"symbols":["SBIN"],"count":1}`, w.Body.String())
}

func TestGetRecord(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.tracker.Initialize(sbin()))

	w := env.do("GET", "/api/tracking/SBIN")
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "SBIN", body["symbol"])
	assert.Len(t, body["predicted_30d"], 30)

	w = env.do("GET", "/api/tracking/INFY")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetSeries(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.tracker.Initialize(sbin()))

	w := env.do("GET", "/api/tracking/SBIN/series/5d")
	require.Equal(t, http.StatusOK, w.Code)

	var series contracts.ChartSeries
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &series))
	assert.Equal(t, contracts.Horizon5D, series.Horizon)
	assert.Len(t, series.Predicted, 5)
	assert.Equal(t, 815.25, series.Predicted[0])

	assert.Equal(t, http.StatusBadRequest, env.do("GET", "/api/tracking/SBIN/series/7d").Code)
	assert.Equal(t, http.StatusNotFound, env.do("GET", "/api/tracking/INFY/series/5d").Code)
}

func TestLockUnlock(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.tracker.Initialize(sbin()))

	w := env.do("POST", "/api/tracking/SBIN/lock/30d?persistent=true")
	require.Equal(t, http.StatusOK, w.Code)

	var ack contracts.LockAck
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ack))
	assert.True(t, ack.Success)

	w = env.do("GET", "/api/tracking/SBIN/lock/30d")
	require.Equal(t, http.StatusOK, w.Code)

	var state handlers.LockStateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &state))
	assert.True(t, state.Locked)
	assert.True(t, state.Persistent)
	assert.Len(t, state.LockedDates, 30)
	assert.Equal(t, "Oct 12", state.LockedDates[0])

	// locking again re-anchors with the requested kind
	w = env.do("POST", "/api/tracking/SBIN/lock/30d")
	require.Equal(t, http.StatusOK, w.Code)
	lock, err := env.tracker.LockState("SBIN", contracts.Horizon30D)
	require.NoError(t, err)
	assert.Equal(t, contracts.LockTemporary, lock.Kind)

	w = env.do("POST", "/api/tracking/SBIN/unlock/30d")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.False(t, env.tracker.IsLocked("SBIN", contracts.Horizon30D))

	w = env.do("POST", "/api/tracking/SBIN/lock/5d?persistent=maybe")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStabilityEndpoints(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.gate.Stabilize([]contracts.Candidate{
		{Symbol: "SBIN", CurrentPrice: 815.25, Pred5D: 2.4, Pred1Mo: 8.8, Confidence: 82, Score: 71},
	})
	require.NoError(t, err)

	w := env.do("GET", "/api/stability/status")
	require.Equal(t, http.StatusOK, w.Code)

	var status stability.Status
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, 1, status.Total)

	w = env.do("GET", "/api/stability/SBIN")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, http.StatusNotFound, env.do("GET", "/api/stability/TCS").Code)
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.tracker.Initialize(sbin()))
	env.do("POST", "/api/tracking/SBIN/lock/5d")

	w := env.do("GET", "/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "predtracker_lock_events_total"))
}

func TestRecoveryMiddleware(t *testing.T) {
	h := recoveryMiddleware(logger.Nop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"Internal server error"}`, w.Body.String())
}
