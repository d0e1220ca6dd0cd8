package vault

import (
	"time"

	"govvault/pkg/domain"
)

// Phase is the vault lifecycle. Monotonic: derived from time and balances,
// never regressing.
type Phase uint8

const (
	// PhaseContribution is the active management window before unlock.
	PhaseContribution Phase = iota
	// PhaseConsolidation starts at unlock and lasts while any allowlisted
	// non-redemption asset still has custodied balance.
	PhaseConsolidation
	// PhaseRedemption is terminal: only redemptions are possible.
	PhaseRedemption
)

func (p Phase) String() string {
	switch p {
	case PhaseConsolidation:
		return "consolidation"
	case PhaseRedemption:
		return "redemption"
	default:
		return "contribution"
	}
}

// Snapshot is the externally visible vault state at one instant.
type Snapshot struct {
	Phase           Phase                        `json:"phase"`
	UnlockAt        time.Time                    `json:"unlock_at"`
	Owner           domain.Address               `json:"owner"`
	PendingOwner    *domain.Address              `json:"pending_owner,omitempty"`
	Agent           domain.Address               `json:"agent"`
	RedemptionAsset domain.Asset                 `json:"redemption_asset"`
	Balances        map[domain.Asset]domain.Amount `json:"balances"`
	ClaimSupply     domain.Amount                `json:"claim_supply"`
}
