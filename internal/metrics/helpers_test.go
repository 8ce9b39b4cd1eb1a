package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// histogramCount returns how many observations a histogram has recorded.
func histogramCount(t *testing.T, h prometheus.Histogram) uint64 {
	t.Helper()

	c := make(chan prometheus.Metric, 1)
	h.Collect(c)
	m := <-c

	var out dto.Metric
	if err := m.Write(&out); err != nil {
		t.Fatalf("Failed to read histogram: %v", err)
	}
	return out.GetHistogram().GetSampleCount()
}
