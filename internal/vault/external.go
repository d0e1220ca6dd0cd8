package vault

import (
	"context"
	"errors"

	"govvault/pkg/domain"
)

// ErrSlippageExceeded is surfaced verbatim from the swap venue when the
// executed output is below the caller's minimum.
var ErrSlippageExceeded = errors.New("slippage exceeded")

// SwapParams describes a single exact-input swap.
type SwapParams struct {
	TokenIn      domain.Asset
	TokenOut     domain.Asset
	AmountIn     domain.Amount
	MinAmountOut domain.Amount
	Recipient    domain.Address
}

// SwapRouter executes swaps against an external venue. Implementations must
// either fully execute or fail without moving funds.
type SwapRouter interface {
	ExactInputSingle(ctx context.Context, params SwapParams) (domain.Amount, error)
}

// LendingMarket supplies and withdraws custodied assets against an external
// lending market. Withdraw returns the amount actually returned to custody.
type LendingMarket interface {
	Supply(ctx context.Context, market domain.Market, asset domain.Asset, amount domain.Amount) error
	Withdraw(ctx context.Context, market domain.Market, asset domain.Asset, amount domain.Amount) (domain.Amount, error)
}

// Rewards claims accrued market rewards for a recipient.
type Rewards interface {
	Claim(ctx context.Context, market domain.Market, recipient domain.Address, accrue bool) (domain.Amount, error)
}
