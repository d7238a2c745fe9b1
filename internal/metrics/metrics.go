package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	webhookEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_events_total",
			Help: "Total number of gateway webhook events by outcome",
		},
		[]string{"event", "outcome"},
	)

	paymentTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_transitions_total",
			Help: "Total number of payment status transitions applied",
		},
		[]string{"status"},
	)

	checkoutTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkout_total",
			Help: "Total number of checkout attempts by result",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(webhookEventsTotal)
	prometheus.MustRegister(paymentTransitionsTotal)
	prometheus.MustRegister(checkoutTotal)
}

// Webhookの処理結果。outcomeはapplied/duplicate/orphan/stale/ignored/rejectedあたり。
func RecordWebhookEvent(event string, outcome string) {
	webhookEventsTotal.WithLabelValues(event, outcome).Inc()
}

func RecordPaymentTransition(status string) {
	paymentTransitionsTotal.WithLabelValues(status).Inc()
}

func RecordCheckout(result string) {
	checkoutTotal.WithLabelValues(result).Inc()
}
