package metrics

import "github.com/prometheus/client_golang/prometheus"

// DispatchMetrics tracks notification fan-out outcomes per event type.
type DispatchMetrics struct {
	handled   *prometheus.CounterVec
	delivered *prometheus.CounterVec
	failed    *prometheus.CounterVec
}

// NewDispatchMetrics registers dispatcher metrics on the provided registerer.
func NewDispatchMetrics(reg prometheus.Registerer) *DispatchMetrics {
	if reg == nil {
		return &DispatchMetrics{}
	}
	handled := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_events_handled",
		Help: "Events consumed by the notification dispatcher.",
	}, []string{"event_type"})
	delivered := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_push_delivered",
		Help: "Push sends accepted by FCM.",
	}, []string{"event_type"})
	failed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_push_failed",
		Help: "Push sends rejected or errored.",
	}, []string{"event_type"})
	reg.MustRegister(handled, delivered, failed)
	return &DispatchMetrics{
		handled:   handled,
		delivered: delivered,
		failed:    failed,
	}
}

// IncHandled increments the handled counter for the event type.
func (d *DispatchMetrics) IncHandled(eventType string) {
	if d == nil || d.handled == nil {
		return
	}
	d.handled.WithLabelValues(normalizeLabel(eventType)).Inc()
}

// IncDelivered increments the delivered counter for the event type.
func (d *DispatchMetrics) IncDelivered(eventType string) {
	if d == nil || d.delivered == nil {
		return
	}
	d.delivered.WithLabelValues(normalizeLabel(eventType)).Inc()
}

// IncFailed increments the failure counter for the event type.
func (d *DispatchMetrics) IncFailed(eventType string) {
	if d == nil || d.failed == nil {
		return
	}
	d.failed.WithLabelValues(normalizeLabel(eventType)).Inc()
}
