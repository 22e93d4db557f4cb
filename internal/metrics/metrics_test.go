package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	m := New()

	m.JobStarted("import")
	m.JobItem("import")
	m.JobItem("import")
	m.JobFinished("import", "done", 2*time.Second)
	m.PushOperation("bookmark", "created")
	m.LinkResult("alive")
	m.Reconciliation("two_way_merge", "merged")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.JobsStarted.WithLabelValues("import")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.JobItems.WithLabelValues("import")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.JobsFinished.WithLabelValues("import", "done")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.JobsRunning))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PushOperations.WithLabelValues("bookmark", "created")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LinkResults.WithLabelValues("alive")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Reconciliations.WithLabelValues("two_way_merge", "merged")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.JobStarted("import")
	m.JobFinished("import", "done", time.Second)
	m.JobItem("import")
	m.PushOperation("folder", "exists")
	m.LinkResult("timeout")
	m.Reconciliation("replace_local_with_server", "snapshot")
	assert.Nil(t, m.Registry())
}

func TestHandlerExposesNamespace(t *testing.T) {
	m := New()
	m.LinkResult("dns_error")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `linkloom_links_results_total{result="dns_error"} 1`))
}
