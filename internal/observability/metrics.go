package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce         sync.Once
	httpRequestsTotal    *prometheus.CounterVec
	httpLatencySeconds   *prometheus.HistogramVec
	httpErrorsTotal      *prometheus.CounterVec
	statusCorrections    *prometheus.CounterVec
	reservationRejects   *prometheus.CounterVec
	incidentsPrinted     prometheus.Counter
	attendanceEventsSeen *prometheus.CounterVec
	reportCacheLookups   *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors used by the API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "school_http_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "school_http_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		httpErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "school_http_errors_total",
			Help: "Total number of error responses returned by API endpoints.",
		}, []string{"method", "route", "status"})

		statusCorrections = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "school_status_corrections_total",
			Help: "Stored statuses rewritten because they drifted from the derived value.",
		}, []string{"entity"})

		reservationRejects = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "school_reservations_rejected_total",
			Help: "Equipment reservations rejected by admission control.",
		}, []string{"reason"})

		incidentsPrinted = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "school_incidents_printed_total",
			Help: "Incidents handed to the document renderer.",
		})

		attendanceEventsSeen = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "school_attendance_events_total",
			Help: "Late arrivals and early departures recorded.",
		}, []string{"kind"})

		reportCacheLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "school_report_cache_lookups_total",
			Help: "Monthly attendance report cache lookups by result.",
		}, []string{"result"})

		prometheus.MustRegister(
			httpRequestsTotal, httpLatencySeconds, httpErrorsTotal,
			statusCorrections, reservationRejects, incidentsPrinted,
			attendanceEventsSeen, reportCacheLookups,
		)
	})
}

// HTTPRequests exposes the counter for API requests.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the latency histogram for API requests.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// HTTPErrors exposes the counter for API error responses.
func HTTPErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return httpErrorsTotal
}

// StatusCorrections counts self-healing writes, labelled by entity.
func StatusCorrections() *prometheus.CounterVec {
	RegisterMetrics()
	return statusCorrections
}

// ReservationRejections counts reservations refused by admission control.
func ReservationRejections() *prometheus.CounterVec {
	RegisterMetrics()
	return reservationRejects
}

// IncidentsPrinted counts incidents sent to the renderer.
func IncidentsPrinted() prometheus.Counter {
	RegisterMetrics()
	return incidentsPrinted
}

// AttendanceEvents counts late and early events.
func AttendanceEvents() *prometheus.CounterVec {
	RegisterMetrics()
	return attendanceEventsSeen
}

// ReportCacheLookups counts monthly report cache hits and misses.
func ReportCacheLookups() *prometheus.CounterVec {
	RegisterMetrics()
	return reportCacheLookups
}
