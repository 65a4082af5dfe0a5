// Package metrics holds the Prometheus collectors of the planner.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups every collector so components can take them as a dependency.
type Metrics struct {
	BusEvents             *prometheus.CounterVec
	BusHandlerPanics      *prometheus.CounterVec
	TripSelections        *prometheus.CounterVec
	TripFetchDuration     prometheus.Histogram
	SyncEvents            prometheus.Counter
	DestinationEvaluation *prometheus.CounterVec
	LoginAttempts         *prometheus.CounterVec
	LocationResolutions   *prometheus.CounterVec
	ViewConnections       prometheus.Gauge

	PublishLatency    prometheus.Histogram
	EventErrors       *prometheus.CounterVec
	Events            *prometheus.CounterVec
	ActiveSubscribers prometheus.Gauge
}

var (
	once     sync.Once
	instance *Metrics
)

// Get returns the process-wide collectors, registering them on first use.
func Get() *Metrics {
	once.Do(func() {
		instance = newMetrics(prometheus.DefaultRegisterer)
	})
	return instance
}

// NewForRegistry builds collectors on a private registry. Used by tests that
// assert on counter values.
func NewForRegistry(reg prometheus.Registerer) *Metrics {
	return newMetrics(reg)
}

func newMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		BusEvents: f.NewCounterVec(prometheus.CounterOpts{
			Name: "planner_bus_events_total",
			Help: "Events published on in-process buses, by bus",
		}, []string{"bus"}),
		BusHandlerPanics: f.NewCounterVec(prometheus.CounterOpts{
			Name: "planner_bus_handler_panics_total",
			Help: "Bus handlers that panicked, by bus",
		}, []string{"bus"}),
		TripSelections: f.NewCounterVec(prometheus.CounterOpts{
			Name: "planner_trip_selections_total",
			Help: "Trip selections by outcome",
		}, []string{"result"}),
		TripFetchDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "planner_trip_fetch_duration_seconds",
			Help:    "Time from fetch to first sync of a selected trip",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}),
		SyncEvents: f.NewCounter(prometheus.CounterOpts{
			Name: "planner_sync_events_total",
			Help: "Sync notifications received by destination watchers",
		}),
		DestinationEvaluation: f.NewCounterVec(prometheus.CounterOpts{
			Name: "planner_destination_evaluations_total",
			Help: "Throttled destination evaluations by result",
		}, []string{"result"}),
		LoginAttempts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "planner_login_attempts_total",
			Help: "Interactive login prompts by result",
		}, []string{"result"}),
		LocationResolutions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "planner_location_resolutions_total",
			Help: "Location detections by source",
		}, []string{"source"}),
		ViewConnections: f.NewGauge(prometheus.GaugeOpts{
			Name: "planner_view_connections",
			Help: "Connected view websockets",
		}),
		PublishLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "planner_event_publish_duration_seconds",
			Help:    "Time taken to publish realtime events",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		}),
		EventErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "planner_event_errors_total",
			Help: "Realtime event errors by operation and type",
		}, []string{"operation", "type"}),
		Events: f.NewCounterVec(prometheus.CounterOpts{
			Name: "planner_events_total",
			Help: "Realtime events by operation and type",
		}, []string{"operation", "type"}),
		ActiveSubscribers: f.NewGauge(prometheus.GaugeOpts{
			Name: "planner_event_active_subscribers",
			Help: "Current number of realtime subscribers",
		}),
	}
}
