package policy

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"govvault/pkg/domain"
)

type Metrics struct {
	Edits         prometheus.Counter
	FeesCollected prometheus.Counter
	DocumentBytes prometheus.Gauge
}

func NewMetrics() *Metrics {
	return &Metrics{
		Edits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "govvault_policy_edits_total",
			Help: "Total successful policy edits",
		}),
		FeesCollected: promauto.NewCounter(prometheus.CounterOpts{
			Name: "govvault_policy_fees_collected_units_total",
			Help: "Total edit fees collected, in fee-asset base units",
		}),
		DocumentBytes: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "govvault_policy_document_bytes",
			Help: "Current policy document length in bytes",
		}),
	}
}

func (m *Metrics) ObserveEdit(fee domain.Amount, docLen int) {
	if m == nil {
		return
	}
	m.Edits.Inc()
	m.FeesCollected.Add(float64(fee))
	m.DocumentBytes.Set(float64(docLen))
}
