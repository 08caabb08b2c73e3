package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Station processing metrics
var (
	// StationsTotal counts processed stations by final outcome
	StationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cotas_stations_total",
			Help: "Stations processed, by outcome",
		},
		[]string{"outcome"},
	)

	// ReadingsDroppedTotal counts rows discarded while cleaning a series
	ReadingsDroppedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cotas_readings_dropped_total",
			Help: "Measurement rows dropped for a missing timestamp or level",
		},
	)

	// ChartsWrittenTotal counts chart files written
	ChartsWrittenTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cotas_charts_written_total",
			Help: "Chart images written to the output directory",
		},
	)
)

// Remote API metrics
var (
	// APIRequestsTotal tracks calls to the ANA web service
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cotas_api_requests_total",
			Help: "Requests sent to the ANA web service",
		},
		[]string{"endpoint", "status"},
	)

	// APIRequestDuration tracks how long those calls take
	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cotas_api_request_duration_seconds",
			Help:    "Duration of ANA web service requests in seconds",
			Buckets: []float64{0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"endpoint"},
	)
)

// RunStartTime records when the run started
var RunStartTime = promauto.NewGauge(
	prometheus.GaugeOpts{
		Name: "cotas_run_start_time_seconds",
		Help: "Unix timestamp of when the run started",
	},
)

func init() {
	RunStartTime.SetToCurrentTime()
}

// RecordAPIRequest records one request to the given endpoint
func RecordAPIRequest(endpoint string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	APIRequestsTotal.WithLabelValues(endpoint, status).Inc()
	APIRequestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// RecordStation records the final outcome of one station
func RecordStation(outcome string) {
	StationsTotal.WithLabelValues(outcome).Inc()
}

// RecordDropped adds n discarded measurement rows
func RecordDropped(n int) {
	if n > 0 {
		ReadingsDroppedTotal.Add(float64(n))
	}
}

// WriteTextfile dumps every registered metric to path in the text exposition
// format, for the node_exporter textfile collector.
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
}
