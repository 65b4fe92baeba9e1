package training

import (
	"sort"

	"github.com/tsawler/go-earlystop/earlystop"
)

// metricPoint is one recorded value of one metric
type metricPoint struct {
	Epoch int
	Value float64
}

// MetricHistory accumulates per-epoch metric values over a run
type MetricHistory struct {
	points map[string][]metricPoint
}

// NewMetricHistory creates an empty history
func NewMetricHistory() *MetricHistory {
	return &MetricHistory{
		points: make(map[string][]metricPoint),
	}
}

// Record appends every metric in m at the given epoch
func (h *MetricHistory) Record(epoch int, m Metrics) {
	for name, value := range m {
		h.points[name] = append(h.points[name], metricPoint{Epoch: epoch, Value: value})
	}
}

// Last returns the most recently recorded value for name
func (h *MetricHistory) Last(name string) (float64, bool) {
	pts := h.points[name]
	if len(pts) == 0 {
		return 0, false
	}
	return pts[len(pts)-1].Value, true
}

// Series returns all recorded values for name in record order
func (h *MetricHistory) Series(name string) []float64 {
	pts := h.points[name]
	if len(pts) == 0 {
		return nil
	}
	values := make([]float64, len(pts))
	for i, p := range pts {
		values[i] = p.Value
	}
	return values
}

// Len returns how many values have been recorded for name
func (h *MetricHistory) Len(name string) int {
	return len(h.points[name])
}

// Best returns the best recorded value for name under the given mode and
// the epoch it was recorded at. Ties keep the earliest epoch.
func (h *MetricHistory) Best(name string, mode earlystop.Mode) (float64, int, bool) {
	pts := h.points[name]
	if len(pts) == 0 {
		return 0, 0, false
	}
	best := pts[0]
	for _, p := range pts[1:] {
		if earlystop.Improved(p.Value, best.Value, 0, mode) {
			best = p
		}
	}
	return best.Value, best.Epoch, true
}

// Names returns the recorded metric names in sorted order
func (h *MetricHistory) Names() []string {
	names := make([]string, 0, len(h.points))
	for name := range h.points {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
