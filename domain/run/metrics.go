package run

import "sort"

// Metric names
const (
	MetricAccuracy = "accuracy"
	MetricF1       = "f1"
	MetricROCAUC   = "roc_auc"
)

// MetricsReport maps metric name to value for one evaluated partition.
type MetricsReport map[string]float64

// NewMetricsReport builds a report holding the three standard metrics.
func NewMetricsReport(accuracy, f1, rocAUC float64) MetricsReport {
	return MetricsReport{
		MetricAccuracy: accuracy,
		MetricF1:       f1,
		MetricROCAUC:   rocAUC,
	}
}

// Names returns the metric names in sorted order.
func (m MetricsReport) Names() []string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
