package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "chargehub",
			Name:      "http_requests_total",
			Help:      "Count of HTTP requests by handler.",
		},
		[]string{"handler"},
	)

	bookingCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "chargehub",
			Name:      "booking_created_total",
			Help:      "Count of bookings created.",
		},
	)

	bookingConflicts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "chargehub",
			Name:      "booking_conflict_total",
			Help:      "Count of booking requests rejected due to slot conflicts.",
		},
	)

	bookingTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "chargehub",
			Name:      "booking_transition_total",
			Help:      "Count of booking lifecycle transitions by action.",
		},
		[]string{"action"},
	)

	batteryLogsIngested = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "chargehub",
			Name:      "battery_logs_ingested_total",
			Help:      "Count of battery telemetry samples received from hardware.",
		},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, bookingCreated, bookingConflicts, bookingTransitions, batteryLogsIngested)
	})
}

func IncHTTP(handler string) {
	httpRequests.WithLabelValues(handler).Inc()
}

func IncBookingCreated() {
	bookingCreated.Inc()
}

func IncBookingConflict() {
	bookingConflicts.Inc()
}

func IncBookingTransition(action string) {
	bookingTransitions.WithLabelValues(action).Inc()
}

func IncBatteryLogIngested() {
	batteryLogsIngested.Inc()
}
