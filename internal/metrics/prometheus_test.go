package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterMetricsEndpoint(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	m.RecordAcquisition(ModeRead, ResultAcquired)

	RegisterMetricsEndpoint(router, reg)

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "# HELP")
	assert.Contains(t, rec.Body.String(), "stubguard_lock_acquisitions_total")
}

func TestRegisterMetricsEndpointWithPath(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	reg := prometheus.NewRegistry()

	RegisterMetricsEndpointWithPath(router, "/custom/metrics", reg)

	req := httptest.NewRequest("GET", "/custom/metrics", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMetricsHandler(t *testing.T) {
	handler := MetricsHandler(prometheus.NewRegistry())

	require.NotNil(t, handler)
}

func TestRecordAcquisition(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordAcquisition(ModeWrite, ResultAcquired)
	m.RecordAcquisition(ModeWrite, ResultAcquired)
	m.RecordAcquisition(ModeWrite, ResultTimeout)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Acquisitions.WithLabelValues(ModeWrite, ResultAcquired)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Acquisitions.WithLabelValues(ModeWrite, ResultTimeout)))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.Acquisitions.WithLabelValues(ModeRead, ResultAcquired)))
}

func TestObserveWaitAndPasses(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.ObserveWait(ModeRead, 0.01)
	m.ObserveWait(ModeWrite, 1.5)
	m.ObservePasses(3)

	assert.Equal(t, 2, testutil.CollectAndCount(m.WaitDuration))
	assert.Equal(t, 1, testutil.CollectAndCount(m.WritePasses))
}

func TestRegistryCounters(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordLockCreated()
	m.RecordLockCreated()
	m.RecordLockEvicted()
	m.RecordRollback()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.LocksCreated))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LocksEvicted))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Rollbacks))
}

func TestRegisterRegistrySize(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	size := 7
	require.NoError(t, m.RegisterRegistrySize(func() int { return size }))

	count, err := testutil.GatherAndCount(reg, "stubguard_registry_entries")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// A second gauge with the same name is refused.
	assert.Error(t, m.RegisterRegistrySize(func() int { return 0 }))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics

	// None of these should panic.
	m.RecordAcquisition(ModeRead, ResultAcquired)
	m.ObserveWait(ModeRead, 1)
	m.ObservePasses(1)
	m.RecordRollback()
	m.RecordLockCreated()
	m.RecordLockEvicted()
	assert.NoError(t, m.RegisterRegistrySize(func() int { return 0 }))
}
