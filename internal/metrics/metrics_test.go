package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveCompletionCountsByLabel(t *testing.T) {
	m := New()
	m.ObserveCompletion("chat", "fallback", "timeout")
	m.ObserveCompletion("chat", "fallback", "timeout")
	m.ObserveCompletion("chat", "success", "")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.CompletionsTotal.WithLabelValues("chat", "fallback", "timeout")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CompletionsTotal.WithLabelValues("chat", "success", "")))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.ObserveCompletion("chat", "success", "")
	m.ObserveProvider("alle", time.Second)
	m.ObserveHTTP("GET", "/api/health", "200")
	m.ObserveUpload("plain_text")
	m.ObserveTurns(2)
}

func TestHandlerServesRegistry(t *testing.T) {
	m := New()
	m.ObserveTurns(2)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "mentora_conversation_turns_recorded_total 2")
}
