// Package vault custodies the portfolio, enforces the phase state machine,
// gates agent actions through admin-curated allowlists, and settles pro-rata
// redemptions against the claim ledger.
package vault

import (
	"context"
	"errors"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"

	"govvault/internal/authz"
	"govvault/internal/events"
	"govvault/internal/guard"
	"govvault/internal/ledger"
	"govvault/internal/treasury"
	"govvault/pkg/domain"
	dErrors "govvault/pkg/domain-errors"
	"govvault/pkg/platform/middleware/requesttime"
)

// Sentinel failures of vault operations.
var (
	ErrAssetNotAllowed          = errors.New("asset not allowlisted")
	ErrMarketNotAllowed         = errors.New("market not allowlisted")
	ErrPhaseNotPermitted        = errors.New("operation not permitted in current phase")
	ErrInsufficientClaimBalance = errors.New("claim balance too low")
	ErrNotPendingOwner          = errors.New("caller is not the pending owner")
)

var tracer = otel.Tracer("govvault/internal/vault")

// Config fixes the vault's deployment-time parameters.
type Config struct {
	// Self is the vault's identity on the claim ledger; it must hold the
	// burner and minter roles to settle redemptions atomically.
	Self domain.Address
	// Custody is the account holding portfolio assets at the settlement
	// boundary.
	Custody domain.Address
	// RedemptionAsset is the single asset the portfolio consolidates into.
	RedemptionAsset domain.Asset
	// UnlockAt ends the contribution phase. Fixed at deployment:
	// deploy time plus the lock duration.
	UnlockAt time.Time
	Owner    domain.Address
	Agent    domain.Address
}

// Service is the portfolio vault.
type Service struct {
	cfg     Config
	roles   *authz.Table
	claims  *ledger.Ledger
	bank    treasury.Bank
	router  SwapRouter
	lending LendingMarket
	rewards Rewards
	emitter *events.Emitter
	logger  *slog.Logger
	metrics *Metrics

	mu            sync.Mutex
	owner         domain.Address
	pendingOwner  *domain.Address
	agent         domain.Address
	allowedAssets map[domain.Asset]bool
	allowedComets map[domain.Market]bool
	assetToComet  map[domain.Asset]domain.Market
	// redemptionReached latches the terminal phase so a stray deposit of a
	// residual asset after consolidation cannot regress it.
	redemptionReached bool
}

// NewService creates the vault and grants the initial owner and agent their
// roles in the shared capability table.
func NewService(cfg Config, roles *authz.Table, claims *ledger.Ledger, bank treasury.Bank, router SwapRouter, lending LendingMarket, rewards Rewards, emitter *events.Emitter, logger *slog.Logger, metrics *Metrics) *Service {
	roles.Grant(authz.RoleOwner, cfg.Owner)
	roles.Grant(authz.RoleAgent, cfg.Agent)
	return &Service{
		cfg:           cfg,
		roles:         roles,
		claims:        claims,
		bank:          bank,
		router:        router,
		lending:       lending,
		rewards:       rewards,
		emitter:       emitter,
		logger:        logger,
		metrics:       metrics,
		owner:         cfg.Owner,
		agent:         cfg.Agent,
		allowedAssets: map[domain.Asset]bool{cfg.RedemptionAsset: true},
		allowedComets: make(map[domain.Market]bool),
		assetToComet:  make(map[domain.Asset]domain.Market),
	}
}

// CurrentPhase derives the phase from the request time and live balances.
func (s *Service) CurrentPhase(ctx context.Context) Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phaseAt(ctx)
}

// phaseAt computes the phase. Caller holds the lock.
func (s *Service) phaseAt(ctx context.Context) Phase {
	if s.redemptionReached {
		return PhaseRedemption
	}
	if requesttime.Now(ctx).Before(s.cfg.UnlockAt) {
		return PhaseContribution
	}
	for asset, allowed := range s.allowedAssets {
		if !allowed || asset == s.cfg.RedemptionAsset {
			continue
		}
		bal, err := s.bank.BalanceOf(ctx, asset, s.cfg.Custody)
		if err != nil {
			s.logger.ErrorContext(ctx, "balance probe failed during phase derivation", "asset", asset.String(), "error", err)
			return PhaseConsolidation
		}
		if bal > 0 {
			return PhaseConsolidation
		}
	}
	s.redemptionReached = true
	return PhaseRedemption
}

// ExecuteSwap swaps between two allowlisted assets through the external
// router. Agent only. Forbidden in redemption; in consolidation only swaps
// into the redemption asset are allowed.
func (s *Service) ExecuteSwap(ctx context.Context, caller domain.Address, assetIn, assetOut domain.Asset, amountIn, minAmountOut domain.Amount) (domain.Amount, error) {
	if err := s.roles.Require(authz.RoleAgent, caller); err != nil {
		return 0, err
	}
	ctx, err := guard.Enter(ctx, "vault")
	if err != nil {
		return 0, err
	}
	ctx, span := tracer.Start(ctx, "vault.ExecuteSwap")
	span.SetAttributes(
		attribute.String("asset_in", assetIn.String()),
		attribute.String("asset_out", assetOut.String()),
	)
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.allowedAssets[assetIn] || !s.allowedAssets[assetOut] {
		return 0, dErrors.Wrap(ErrAssetNotAllowed, dErrors.CodeConflict, "swap leg not on the asset allowlist")
	}
	switch s.phaseAt(ctx) {
	case PhaseRedemption:
		return 0, dErrors.Wrap(ErrPhaseNotPermitted, dErrors.CodeConflict, "no swaps in redemption phase")
	case PhaseConsolidation:
		if assetOut != s.cfg.RedemptionAsset {
			return 0, dErrors.Wrap(ErrPhaseNotPermitted, dErrors.CodeConflict, "consolidation only swaps into the redemption asset")
		}
	}

	out, err := s.router.ExactInputSingle(ctx, SwapParams{
		TokenIn:      assetIn,
		TokenOut:     assetOut,
		AmountIn:     amountIn,
		MinAmountOut: minAmountOut,
		Recipient:    s.cfg.Custody,
	})
	if err != nil {
		span.SetStatus(otelcodes.Error, err.Error())
		return 0, err
	}

	s.emitter.Emit(ctx, events.TypeSwapExecuted, caller.String(), map[string]any{
		"asset_in":   assetIn.String(),
		"asset_out":  assetOut.String(),
		"amount_in":  amountIn,
		"amount_out": out,
	})
	s.metrics.ObserveSwap()
	s.logger.InfoContext(ctx, "swap executed",
		"asset_in", assetIn.String(),
		"asset_out", assetOut.String(),
		"amount_in", amountIn,
		"amount_out", out,
	)
	return out, nil
}

// Supply lends custodied assets into the asset's mapped market. Agent only,
// contribution phase only: after unlock only unwinding is allowed.
func (s *Service) Supply(ctx context.Context, caller domain.Address, asset domain.Asset, amount domain.Amount) error {
	if err := s.roles.Require(authz.RoleAgent, caller); err != nil {
		return err
	}
	ctx, err := guard.Enter(ctx, "vault")
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	market, err := s.marketFor(asset)
	if err != nil {
		return err
	}
	if s.phaseAt(ctx) != PhaseContribution {
		return dErrors.Wrap(ErrPhaseNotPermitted, dErrors.CodeConflict, "supply only permitted before unlock")
	}

	if err := s.lending.Supply(ctx, market, asset, amount); err != nil {
		return err
	}

	s.emitter.Emit(ctx, events.TypeSupplied, caller.String(), map[string]any{
		"asset":  asset.String(),
		"market": market.String(),
		"amount": amount,
	})
	s.logger.InfoContext(ctx, "supplied to market", "asset", asset.String(), "market", market.String(), "amount", amount)
	return nil
}

// Withdraw pulls supplied assets back into custody. Agent only, forbidden in
// redemption.
func (s *Service) Withdraw(ctx context.Context, caller domain.Address, asset domain.Asset, amount domain.Amount) (domain.Amount, error) {
	if err := s.roles.Require(authz.RoleAgent, caller); err != nil {
		return 0, err
	}
	ctx, err := guard.Enter(ctx, "vault")
	if err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	market, err := s.marketFor(asset)
	if err != nil {
		return 0, err
	}
	if s.phaseAt(ctx) == PhaseRedemption {
		return 0, dErrors.Wrap(ErrPhaseNotPermitted, dErrors.CodeConflict, "no withdrawals in redemption phase")
	}

	returned, err := s.lending.Withdraw(ctx, market, asset, amount)
	if err != nil {
		return 0, err
	}

	s.emitter.Emit(ctx, events.TypeWithdrawn, caller.String(), map[string]any{
		"asset":  asset.String(),
		"market": market.String(),
		"amount": returned,
	})
	s.logger.InfoContext(ctx, "withdrawn from market", "asset", asset.String(), "market", market.String(), "amount", returned)
	return returned, nil
}

// marketFor resolves and validates the allowlisted market mapped to asset.
// Caller holds the lock.
func (s *Service) marketFor(asset domain.Asset) (domain.Market, error) {
	if !s.allowedAssets[asset] {
		return "", dErrors.Wrap(ErrAssetNotAllowed, dErrors.CodeConflict, "asset not on the allowlist")
	}
	market, ok := s.assetToComet[asset]
	if !ok || !s.allowedComets[market] {
		return "", dErrors.Wrap(ErrMarketNotAllowed, dErrors.CodeConflict, "asset has no allowlisted market")
	}
	return market, nil
}

// ClaimRewards forwards accrued market rewards to recipient. Owner only, no
// phase restriction.
func (s *Service) ClaimRewards(ctx context.Context, caller domain.Address, market domain.Market, recipient domain.Address) (domain.Amount, error) {
	if err := s.roles.Require(authz.RoleOwner, caller); err != nil {
		return 0, err
	}

	amount, err := s.rewards.Claim(ctx, market, recipient, true)
	if err != nil {
		return 0, err
	}

	s.emitter.Emit(ctx, events.TypeRewardsClaimed, caller.String(), map[string]any{
		"market":    market.String(),
		"recipient": recipient.String(),
		"amount":    amount,
	})
	return amount, nil
}

// Redeem burns claimAmount of the caller's claims and pays out the pro-rata
// share of the redemption asset. The ratio is recomputed from live balances
// on every call; integer division rounds down, so dust accrues to remaining
// holders.
func (s *Service) Redeem(ctx context.Context, caller domain.Address, claimAmount domain.Amount, to domain.Address) (domain.Amount, error) {
	ctx, err := guard.Enter(ctx, "vault")
	if err != nil {
		return 0, err
	}
	ctx, span := tracer.Start(ctx, "vault.Redeem")
	defer span.End()

	if claimAmount == 0 {
		return 0, dErrors.New(dErrors.CodeValidation, "claim amount must be positive")
	}
	if to.IsZero() {
		return 0, dErrors.New(dErrors.CodeValidation, "payout recipient is the null identity")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phaseAt(ctx) != PhaseRedemption {
		return 0, dErrors.Wrap(ErrPhaseNotPermitted, dErrors.CodeConflict, "redemption has not opened")
	}
	if s.claims.BalanceOf(caller) < claimAmount {
		return 0, dErrors.Wrap(ErrInsufficientClaimBalance, dErrors.CodeConflict, "redeem exceeds claim balance")
	}

	balance, err := s.bank.BalanceOf(ctx, s.cfg.RedemptionAsset, s.cfg.Custody)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeExternalFailure, "redemption balance unavailable")
	}
	supply := s.claims.TotalSupply()
	payout := proRata(claimAmount, balance, supply)

	// Burn before paying out; a failed payout re-mints so the operation has
	// no partial effect.
	if err := s.claims.BurnFrom(ctx, s.cfg.Self, caller, claimAmount); err != nil {
		return 0, err
	}
	if payout > 0 {
		if err := s.bank.Transfer(ctx, s.cfg.RedemptionAsset, s.cfg.Custody, to, payout); err != nil {
			if rbErr := s.claims.Mint(ctx, s.cfg.Self, caller, claimAmount); rbErr != nil {
				s.logger.ErrorContext(ctx, "claim restore failed during rollback", "error", rbErr)
			}
			span.SetStatus(otelcodes.Error, err.Error())
			return 0, err
		}
	}

	s.emitter.Emit(ctx, events.TypeRedeemed, caller.String(), map[string]any{
		"holder": caller.String(),
		"to":     to.String(),
		"claims": claimAmount,
		"payout": payout,
	})
	s.metrics.ObserveRedemption(payout)
	s.logger.InfoContext(ctx, "claims redeemed",
		"holder", caller.String(),
		"claims", claimAmount,
		"payout", payout,
	)
	return payout, nil
}

// proRata computes floor(amount * balance / supply) without intermediate
// overflow.
func proRata(amount, balance, supply domain.Amount) domain.Amount {
	if supply == 0 {
		return 0
	}
	num := new(big.Int).Mul(new(big.Int).SetUint64(uint64(amount)), new(big.Int).SetUint64(uint64(balance)))
	num.Div(num, new(big.Int).SetUint64(uint64(supply)))
	return domain.Amount(num.Uint64())
}
