package agent

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"

	"interviewcoach/pkg/agent/middleware/metrics"
	"interviewcoach/pkg/config"
)

func TestMetricsRecorderSelection(t *testing.T) {
	tests := []struct {
		recorder     metrics.Recorder
		name         string
		wantInternal bool
	}{
		{name: "prometheus_recorder_kept", recorder: metrics.NewPrometheusRecorder(prometheus.NewRegistry(), "factory"), wantInternal: true},
		{name: "nil_recorder_uses_noop", recorder: nil, wantInternal: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			factory := NewLLMClientFactory(*config.Default(), tt.recorder)
			assert.Equal(t, tt.wantInternal, isPrometheusRecorder(factory.metricsRecorder))
		})
	}
}

func isPrometheusRecorder(recorder metrics.Recorder) bool {
	_, ok := recorder.(*metrics.PrometheusRecorder)
	return ok
}
