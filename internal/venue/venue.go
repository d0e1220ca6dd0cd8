// Package venue is an in-process simulation of the external trading and
// lending venues behind the vault's boundary interfaces. It settles against
// the same in-memory bank as the rest of the deployment, so single-process
// runs exercise the full custody flow without real integrations.
package venue

import (
	"context"
	"sync"

	"govvault/internal/treasury"
	"govvault/internal/vault"
	"govvault/pkg/domain"
	dErrors "govvault/pkg/domain-errors"
)

// rewardRateBps is the simulated reward accrual: 1% of every supplied amount.
const rewardRateBps = 100

// Config fixes the simulated venue's accounts and pricing.
type Config struct {
	// Custody is the vault account the venue trades against.
	Custody domain.Address
	// Reserve holds the venue's own liquidity. It must be funded with every
	// asset the venue is expected to quote.
	Reserve domain.Address
	// RewardAsset denominates claimed rewards.
	RewardAsset domain.Asset
	// SpreadBps is charged on every swap, in basis points of the input.
	SpreadBps uint64
}

type positionKey struct {
	market domain.Market
	asset  domain.Asset
}

// Simulated implements the vault's SwapRouter, LendingMarket, and Rewards
// boundaries. Swaps quote 1:1 between assets minus the configured spread.
type Simulated struct {
	cfg  Config
	bank *treasury.InMemoryBank

	mu        sync.Mutex
	positions map[positionKey]domain.Amount
	accrued   map[domain.Market]domain.Amount
}

// New creates a simulated venue settling against bank.
func New(cfg Config, bank *treasury.InMemoryBank) *Simulated {
	return &Simulated{
		cfg:       cfg,
		bank:      bank,
		positions: make(map[positionKey]domain.Amount),
		accrued:   make(map[domain.Market]domain.Amount),
	}
}

// ExactInputSingle swaps params.AmountIn of TokenIn for TokenOut at the 1:1
// simulated price minus the spread. Fails without moving funds when the quote
// is below MinAmountOut or the reserve cannot cover the output.
func (v *Simulated) ExactInputSingle(ctx context.Context, params vault.SwapParams) (domain.Amount, error) {
	out := params.AmountIn * domain.Amount(10_000-v.cfg.SpreadBps) / 10_000
	if out < params.MinAmountOut {
		return 0, dErrors.Wrap(vault.ErrSlippageExceeded, dErrors.CodeExternalFailure, "quote below minimum output")
	}

	reserve, err := v.bank.BalanceOf(ctx, params.TokenOut, v.cfg.Reserve)
	if err != nil {
		return 0, err
	}
	if reserve < out {
		return 0, dErrors.New(dErrors.CodeExternalFailure, "venue reserve cannot cover the output")
	}

	if err := v.bank.Transfer(ctx, params.TokenIn, v.cfg.Custody, v.cfg.Reserve, params.AmountIn); err != nil {
		return 0, err
	}
	if err := v.bank.Transfer(ctx, params.TokenOut, v.cfg.Reserve, params.Recipient, out); err != nil {
		// Undo the input leg so a failed swap has no effect.
		if rbErr := v.bank.Transfer(ctx, params.TokenIn, v.cfg.Reserve, v.cfg.Custody, params.AmountIn); rbErr != nil {
			return 0, rbErr
		}
		return 0, err
	}
	return out, nil
}

// Supply moves the asset from custody into the venue and records the
// position. Rewards accrue proportionally to supplied volume.
func (v *Simulated) Supply(ctx context.Context, market domain.Market, asset domain.Asset, amount domain.Amount) error {
	if err := v.bank.Transfer(ctx, asset, v.cfg.Custody, v.cfg.Reserve, amount); err != nil {
		return err
	}

	v.mu.Lock()
	v.positions[positionKey{market, asset}] += amount
	v.accrued[market] += amount * rewardRateBps / 10_000
	v.mu.Unlock()
	return nil
}

// Withdraw returns supplied assets to custody, capped at the open position.
func (v *Simulated) Withdraw(ctx context.Context, market domain.Market, asset domain.Asset, amount domain.Amount) (domain.Amount, error) {
	v.mu.Lock()
	key := positionKey{market, asset}
	returned := amount
	if v.positions[key] < returned {
		returned = v.positions[key]
	}
	v.positions[key] -= returned
	v.mu.Unlock()

	if returned == 0 {
		return 0, nil
	}
	if err := v.bank.Transfer(ctx, asset, v.cfg.Reserve, v.cfg.Custody, returned); err != nil {
		v.mu.Lock()
		v.positions[key] += returned
		v.mu.Unlock()
		return 0, err
	}
	return returned, nil
}

// Claim pays the rewards accrued for market to recipient and resets the
// accrual. The accrue flag is accepted for interface compatibility; the
// simulation always accrues eagerly on supply.
func (v *Simulated) Claim(ctx context.Context, market domain.Market, recipient domain.Address, _ bool) (domain.Amount, error) {
	v.mu.Lock()
	amount := v.accrued[market]
	v.accrued[market] = 0
	v.mu.Unlock()

	if amount == 0 {
		return 0, nil
	}
	if err := v.bank.Transfer(ctx, v.cfg.RewardAsset, v.cfg.Reserve, recipient, amount); err != nil {
		v.mu.Lock()
		v.accrued[market] += amount
		v.mu.Unlock()
		return 0, err
	}
	return amount, nil
}

// Position reports the open supplied amount for a market and asset.
func (v *Simulated) Position(market domain.Market, asset domain.Asset) domain.Amount {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.positions[positionKey{market, asset}]
}
