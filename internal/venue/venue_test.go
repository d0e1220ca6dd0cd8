package venue

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"govvault/internal/treasury"
	"govvault/internal/vault"
	"govvault/pkg/domain"
)

const (
	usdc = domain.Asset("USDC")
	weth = domain.Asset("WETH")

	wethComet = domain.Market("cWETHv3")
)

func newVenue(t *testing.T) (*Simulated, *treasury.InMemoryBank, Config) {
	t.Helper()
	bank := treasury.NewInMemoryBank()
	cfg := Config{
		Custody:     domain.Address{0xc0},
		Reserve:     domain.Address{0xee},
		RewardAsset: usdc,
		SpreadBps:   30,
	}
	bank.Credit(usdc, cfg.Reserve, 1_000*domain.Unit)
	bank.Credit(weth, cfg.Reserve, 1_000*domain.Unit)
	return New(cfg, bank), bank, cfg
}

func TestSwapChargesSpread(t *testing.T) {
	v, bank, cfg := newVenue(t)
	ctx := context.Background()
	bank.Credit(usdc, cfg.Custody, 100*domain.Unit)

	out, err := v.ExactInputSingle(ctx, vault.SwapParams{
		TokenIn:      usdc,
		TokenOut:     weth,
		AmountIn:     100 * domain.Unit,
		MinAmountOut: 99 * domain.Unit,
		Recipient:    cfg.Custody,
	})
	require.NoError(t, err)

	// 30 bps off 100.
	assert.Equal(t, domain.Amount(99_700_000), out)

	got, err := bank.BalanceOf(ctx, weth, cfg.Custody)
	require.NoError(t, err)
	assert.Equal(t, out, got)
}

func TestSwapRespectsMinimumOutput(t *testing.T) {
	v, bank, cfg := newVenue(t)
	ctx := context.Background()
	bank.Credit(usdc, cfg.Custody, 100*domain.Unit)

	_, err := v.ExactInputSingle(ctx, vault.SwapParams{
		TokenIn:      usdc,
		TokenOut:     weth,
		AmountIn:     100 * domain.Unit,
		MinAmountOut: 100 * domain.Unit,
		Recipient:    cfg.Custody,
	})
	assert.ErrorIs(t, err, vault.ErrSlippageExceeded)

	// Nothing moved.
	got, err := bank.BalanceOf(ctx, usdc, cfg.Custody)
	require.NoError(t, err)
	assert.Equal(t, 100*domain.Unit, got)
}

func TestSupplyWithdrawRoundTrip(t *testing.T) {
	v, bank, cfg := newVenue(t)
	ctx := context.Background()
	bank.Credit(weth, cfg.Custody, 50*domain.Unit)

	require.NoError(t, v.Supply(ctx, wethComet, weth, 50*domain.Unit))
	assert.Equal(t, 50*domain.Unit, v.Position(wethComet, weth))

	// Withdrawing more than supplied is capped at the position.
	returned, err := v.Withdraw(ctx, wethComet, weth, 80*domain.Unit)
	require.NoError(t, err)
	assert.Equal(t, 50*domain.Unit, returned)
	assert.Equal(t, domain.Amount(0), v.Position(wethComet, weth))

	got, err := bank.BalanceOf(ctx, weth, cfg.Custody)
	require.NoError(t, err)
	assert.Equal(t, 50*domain.Unit, got)
}

func TestRewardsAccrueAndClaimOnce(t *testing.T) {
	v, bank, cfg := newVenue(t)
	ctx := context.Background()
	recipient := domain.Address{0x0a}
	bank.Credit(weth, cfg.Custody, 100*domain.Unit)

	require.NoError(t, v.Supply(ctx, wethComet, weth, 100*domain.Unit))

	amount, err := v.Claim(ctx, wethComet, recipient, true)
	require.NoError(t, err)
	assert.Equal(t, domain.Unit, amount)

	// Second claim has nothing left to pay.
	amount, err = v.Claim(ctx, wethComet, recipient, true)
	require.NoError(t, err)
	assert.Equal(t, domain.Amount(0), amount)
}
