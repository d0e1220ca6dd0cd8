package message

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"govvault/pkg/domain"
)

type Metrics struct {
	MessagesPaid      prometheus.Counter
	MessagesProcessed prometheus.Counter
	FeesCollected     prometheus.Counter
}

func NewMetrics() *Metrics {
	return &Metrics{
		MessagesPaid: promauto.NewCounter(prometheus.CounterOpts{
			Name: "govvault_messages_paid_total",
			Help: "Total messages successfully paid for",
		}),
		MessagesProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "govvault_messages_processed_total",
			Help: "Total messages acknowledged by the agent",
		}),
		FeesCollected: promauto.NewCounter(prometheus.CounterOpts{
			Name: "govvault_message_fees_collected_units_total",
			Help: "Total message fees collected, in fee-asset base units",
		}),
	}
}

func (m *Metrics) ObservePaid(fee domain.Amount) {
	if m == nil {
		return
	}
	m.MessagesPaid.Inc()
	m.FeesCollected.Add(float64(fee))
}

func (m *Metrics) ObserveProcessed() {
	if m == nil {
		return
	}
	m.MessagesProcessed.Inc()
}
