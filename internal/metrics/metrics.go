// Package metrics holds the Prometheus collectors exported on /api/metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "campuspulse"

type Metrics struct {
	Registrations     prometheus.Counter
	Leaves            prometheus.Counter
	AttendanceMarks   prometheus.Counter
	FanoutPublished   *prometheus.CounterVec
	FanoutDropped     prometheus.Counter
	WebSocketClients  prometheus.Gauge
	StatusTransitions *prometheus.CounterVec
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		Registrations: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registrations_total",
			Help:      "Successful event registrations.",
		}),
		Leaves: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "leaves_total",
			Help:      "Registrations withdrawn by their user.",
		}),
		AttendanceMarks: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "attendance_marks_total",
			Help:      "Attendance records created.",
		}),
		FanoutPublished: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fanout_published_total",
			Help:      "Messages published to event rooms, by message type.",
		}, []string{"type"}),
		FanoutDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fanout_dropped_total",
			Help:      "Room messages dropped because a client was too slow.",
		}),
		WebSocketClients: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "websocket_clients",
			Help:      "Currently connected WebSocket clients.",
		}),
		StatusTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "event_status_transitions_total",
			Help:      "Event status changes applied by the scheduler, by target status.",
		}, []string{"status"}),
	}
}

// NewRegistry returns a registry with the Go and process collectors.
func NewRegistry() (*prometheus.Registry, error) {
	r := prometheus.NewRegistry()
	if err := r.Register(collectors.NewGoCollector()); err != nil {
		return nil, err
	}
	if err := r.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})); err != nil {
		return nil, err
	}
	return r, nil
}

// NewDiscard returns metrics registered on a private registry, for tests
// and callers that do not export them.
func NewDiscard() *Metrics {
	return New(prometheus.NewRegistry())
}
