package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetrics_RegistersOnce(t *testing.T) {
	t.Parallel()

	registry := prometheus.NewRegistry()
	m, err := NewMetrics(registry)
	require.NoError(t, err)
	require.NotNil(t, m)

	_, err = NewMetrics(registry)
	assert.Error(t, err, "double registration is rejected")
}

func TestRecordHelpers(t *testing.T) {
	t.Parallel()

	registry := prometheus.NewRegistry()
	m, err := NewMetrics(registry)
	require.NoError(t, err)

	m.RecordDetection("Red Fox")
	m.RecordDetection("Red Fox")
	m.RecordDetection("Barn Owl")
	assert.InDelta(t, 2, testutil.ToFloat64(m.DetectionCounter.WithLabelValues("Red Fox")), 1e-9)
	assert.InDelta(t, 1, testutil.ToFloat64(m.DetectionCounter.WithLabelValues("Barn Owl")), 1e-9)

	m.RecordTransition("resolved")
	assert.InDelta(t, 1, testutil.ToFloat64(m.Transitions.WithLabelValues("resolved")), 1e-9)

	m.RecordNotification("status_update", true)
	m.RecordNotification("status_update", false)
	assert.InDelta(t, 2, testutil.ToFloat64(m.Notifications.WithLabelValues("status_update")), 1e-9)
	assert.InDelta(t, 1, testutil.ToFloat64(m.EmailFailures), 1e-9)

	m.SetModelReady("detection", true)
	assert.InDelta(t, 1, testutil.ToFloat64(m.ModelReadyGauge.WithLabelValues("detection")), 1e-9)
	m.SetModelReady("detection", false)
	assert.InDelta(t, 0, testutil.ToFloat64(m.ModelReadyGauge.WithLabelValues("detection")), 1e-9)
}

func TestRecordInference_ErrorsDoNotObserveDuration(t *testing.T) {
	t.Parallel()

	registry := prometheus.NewRegistry()
	m, err := NewMetrics(registry)
	require.NoError(t, err)

	m.RecordInference("condition", 0.05, nil)
	m.RecordInference("condition", 0, assert.AnError)

	assert.InDelta(t, 1, testutil.ToFloat64(m.InferenceErrors.WithLabelValues("condition")), 1e-9)
}
