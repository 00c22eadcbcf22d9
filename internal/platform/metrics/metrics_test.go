package metrics_test

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"devtrack/internal/platform/metrics"
)

func TestHandlerExposesTrackerMetrics(t *testing.T) {
	metrics.StoreRecovered("corrupt")
	metrics.SessionOp("add", "ok")
	metrics.SetActiveSessions(1)

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), `devtrack_store_recoveries_total{reason="corrupt"}`)
	assert.Contains(t, string(body), `devtrack_session_operations_total{op="add",result="ok"}`)
	assert.Contains(t, string(body), "devtrack_active_sessions 1")
}
