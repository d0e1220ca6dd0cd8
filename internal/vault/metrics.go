package vault

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"govvault/pkg/domain"
)

type Metrics struct {
	Swaps       prometheus.Counter
	Redemptions prometheus.Counter
	RedeemedOut prometheus.Counter
}

func NewMetrics() *Metrics {
	return &Metrics{
		Swaps: promauto.NewCounter(prometheus.CounterOpts{
			Name: "govvault_vault_swaps_total",
			Help: "Total swaps executed through the router",
		}),
		Redemptions: promauto.NewCounter(prometheus.CounterOpts{
			Name: "govvault_vault_redemptions_total",
			Help: "Total successful claim redemptions",
		}),
		RedeemedOut: promauto.NewCounter(prometheus.CounterOpts{
			Name: "govvault_vault_redeemed_units_total",
			Help: "Total redemption asset paid out, in base units",
		}),
	}
}

func (m *Metrics) ObserveSwap() {
	if m == nil {
		return
	}
	m.Swaps.Inc()
}

func (m *Metrics) ObserveRedemption(payout domain.Amount) {
	if m == nil {
		return
	}
	m.Redemptions.Inc()
	m.RedeemedOut.Add(float64(payout))
}
