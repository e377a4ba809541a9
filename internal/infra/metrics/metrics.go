package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "rental"

// Transitions counts state-machine operations by outcome ("ok" or an error kind).
var Transitions = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "transitions_total",
	Help:      "Rental lifecycle operations by operation and outcome.",
}, []string{"operation", "outcome"})

// NotificationDeliveries counts notification writes by delivery mode and outcome.
var NotificationDeliveries = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "notification_deliveries_total",
	Help:      "Notification writes by delivery mode and outcome.",
}, []string{"mode", "outcome"})

// Register adds the collectors to reg.
func Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{Transitions, NotificationDeliveries} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// ObserveTransition records one operation outcome.
func ObserveTransition(operation, outcome string) {
	Transitions.WithLabelValues(operation, outcome).Inc()
}

// ObserveDelivery records one notification write.
func ObserveDelivery(mode, outcome string) {
	NotificationDeliveries.WithLabelValues(mode, outcome).Inc()
}

// Handler serves the collectors registered on g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
