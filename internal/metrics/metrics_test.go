package metrics_test

import (
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/todoflow-labs/task-tracker/internal/metrics"
)

func TestRecordTaskOperation(t *testing.T) {
	before := testutil.ToFloat64(metrics.TaskOperations.WithLabelValues("create", metrics.OutcomeIgnored))
	metrics.RecordTaskOperation("create", metrics.OutcomeIgnored)
	after := testutil.ToFloat64(metrics.TaskOperations.WithLabelValues("create", metrics.OutcomeIgnored))
	assert.Equal(t, before+1, after)
}

func TestRecordHTTPRequest(t *testing.T) {
	metrics.RecordHTTPRequest("GET", "/", "200", 3*time.Millisecond)
	assert.Equal(t, 1, testutil.CollectAndCount(metrics.HTTPRequestDuration, "tasktracker_http_request_duration_seconds"))
}

func TestInitDisabled(t *testing.T) {
	srv, err := metrics.Init("", nil)
	require.NoError(t, err)
	assert.Nil(t, srv)
}

func TestInitServesMetrics(t *testing.T) {
	logger := zerolog.Nop()
	srv, err := metrics.Init("127.0.0.1:0", &logger)
	require.NoError(t, err)
	require.NotNil(t, srv)
	t.Cleanup(func() { srv.Close() })

	resp, err := http.Get("http://" + srv.Addr + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "go_goroutines")
}

func TestInitReportsBindFailure(t *testing.T) {
	taken, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { taken.Close() })

	logger := zerolog.Nop()
	srv, err := metrics.Init(taken.Addr().String(), &logger)
	assert.Error(t, err)
	assert.Nil(t, srv)
}
