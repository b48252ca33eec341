package entropy

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricCollectedBytes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sdrand",
		Subsystem: "entropy",
		Name:      "collected_bytes_total",
		Help:      "Bytes read from the entropy stream and stored in the ring buffer",
	}, []string{"source"})

	metricReadErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sdrand",
		Subsystem: "entropy",
		Name:      "read_errors_total",
		Help:      "Failures opening or reading the entropy stream, each terminating the reader",
	}, []string{"source"})

	metricSamples = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sdrand",
		Subsystem: "entropy",
		Name:      "samples_total",
		Help:      "64 bit samples served out of the ring buffer",
	}, []string{"source"})

	metricRunning = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "sdrand",
		Subsystem: "entropy",
		Name:      "running",
		Help:      "1 if the entropy source is running, 0 otherwise",
	}, []string{"source"})

	// Used by implementations managing an external process.
	MetricProcessStarts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sdrand",
		Subsystem: "entropy",
		Name:      "process_starts_total",
		Help:      "Attempts at starting the process generating entropy, by result",
	}, []string{"source", "result"})
)

type collectorMetrics struct {
	collected prometheus.Counter
	errors    prometheus.Counter
	samples   prometheus.Counter
	running   prometheus.Gauge
}

func newCollectorMetrics(source string) *collectorMetrics {
	return &collectorMetrics{
		collected: metricCollectedBytes.WithLabelValues(source),
		errors:    metricReadErrors.WithLabelValues(source),
		samples:   metricSamples.WithLabelValues(source),
		running:   metricRunning.WithLabelValues(source),
	}
}
