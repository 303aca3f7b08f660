package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecorder_Counters(t *testing.T) {
	r := New()

	r.RecordBatchOutcome("updated")
	r.RecordBatchOutcome("updated")
	r.RecordBatchOutcome("failed")
	r.RecordLockEvent("5d", "expire")
	r.SetTrackedSymbols(3)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.batchOutcomes.WithLabelValues("updated")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.batchOutcomes.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.lockEvents.WithLabelValues("5d", "expire")))
	assert.Equal(t, 3.0, testutil.ToFloat64(r.trackedSymbols))
}

func TestRecorder_IndependentRegistries(t *testing.T) {
	// 두 번 생성해도 중복 등록 패닉이 없어야 함
	a := New()
	b := New()
	a.RecordGateDecision("stable")
	assert.Equal(t, 0.0, testutil.ToFloat64(b.gateDecisions.WithLabelValues("stable")))
}

func TestRecorder_NilIsNoop(t *testing.T) {
	var r *Recorder
	r.RecordBatchOutcome("updated")
	r.RecordSaveFailure("tracking")
	r.ObserveFetch(0.1)
	assert.Nil(t, r.Registry())
}

func TestRecorder_Handler(t *testing.T) {
	r := New()
	r.RecordSaveFailure("tracking")

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	assert.Equal(t, 200, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `predtracker_save_failures_total{store="tracking"} 1`))
}
