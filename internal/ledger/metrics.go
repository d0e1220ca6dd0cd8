package ledger

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"govvault/pkg/domain"
)

type Metrics struct {
	Minted      prometheus.Counter
	Burned      prometheus.Counter
	TotalSupply prometheus.Gauge
}

func NewMetrics() *Metrics {
	return &Metrics{
		Minted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "govvault_claims_minted_units_total",
			Help: "Total claim units minted, in base units",
		}),
		Burned: promauto.NewCounter(prometheus.CounterOpts{
			Name: "govvault_claims_burned_units_total",
			Help: "Total claim units burned, in base units",
		}),
		TotalSupply: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "govvault_claims_total_supply_units",
			Help: "Current claim token supply, in base units",
		}),
	}
}

func (m *Metrics) ObserveMint(amount domain.Amount) {
	if m == nil {
		return
	}
	m.Minted.Add(float64(amount))
	m.TotalSupply.Add(float64(amount))
}

func (m *Metrics) ObserveBurn(amount domain.Amount) {
	if m == nil {
		return
	}
	m.Burned.Add(float64(amount))
	m.TotalSupply.Sub(float64(amount))
}
