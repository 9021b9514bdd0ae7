// Package metrics provides Prometheus metrics for the rooms service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// JoinOutcomes counts join resolutions by result.
	JoinOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rooms_join_outcomes_total",
			Help: "Total number of join resolutions by outcome",
		},
		[]string{"outcome"},
	)

	// JoinDuration tracks how long a join resolution takes, remote calls included.
	JoinDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "rooms_join_duration_seconds",
			Help:    "Duration of join resolutions",
			Buckets: prometheus.DefBuckets,
		},
	)

	// RemoteCalls counts calls made to conference servers.
	RemoteCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rooms_remote_calls_total",
			Help: "Total number of conference server API calls",
		},
		[]string{"kind", "call", "status"},
	)

	// TasksEnqueued counts background tasks handed to the scheduler.
	TasksEnqueued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rooms_tasks_enqueued_total",
			Help: "Total number of background tasks enqueued",
		},
		[]string{"class", "status"},
	)

	// MeetingUpdates counts status updater runs.
	MeetingUpdates = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rooms_meeting_updates_total",
			Help: "Total number of meeting status updates by result",
		},
		[]string{"result"},
	)

	// StatusSubscribers tracks open live status connections.
	StatusSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "rooms_status_subscribers",
			Help: "Number of open meeting status websocket connections",
		},
	)
)

func RecordJoinOutcome(outcome string) {
	JoinOutcomes.WithLabelValues(outcome).Inc()
}

func RecordRemoteCall(kind, call string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	RemoteCalls.WithLabelValues(kind, call, status).Inc()
}

func RecordTaskEnqueued(class, status string) {
	TasksEnqueued.WithLabelValues(class, status).Inc()
}

// RecordMeetingUpdate labels a run as running, stopped, skipped or error.
func RecordMeetingUpdate(result string) {
	MeetingUpdates.WithLabelValues(result).Inc()
}
