// Package ledger implements the claim token: a fungible balance per holder
// whose supply grows only through role-gated mints and shrinks only through
// role-gated burns. Claim tokens are the pro-rata redemption right against
// the portfolio vault.
package ledger

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"govvault/internal/authz"
	"govvault/internal/events"
	"govvault/pkg/domain"
	dErrors "govvault/pkg/domain-errors"
)

// Sentinel failures of ledger operations.
var (
	ErrInvalidRecipient      = errors.New("mint to the null identity")
	ErrInvalidAccount        = errors.New("burn from the null identity")
	ErrInsufficientBalance   = errors.New("claim balance too low")
	ErrInsufficientAllowance = errors.New("claim allowance too low")
	ErrTransfersPaused       = errors.New("claim transfers are paused")
)

type allowanceKey struct {
	owner   domain.Address
	spender domain.Address
}

// Ledger tracks claim balances, delegated allowances, and total supply.
// Invariant: totalSupply == sum(balances) after every operation.
type Ledger struct {
	roles   *authz.Table
	emitter *events.Emitter
	logger  *slog.Logger
	metrics *Metrics

	mu         sync.Mutex
	balances   map[domain.Address]domain.Amount
	allowances map[allowanceKey]domain.Amount
	supply     domain.Amount
	paused     bool
}

// New creates an empty ledger. Role membership decides who may mint, burn,
// and pause; the payment protocols and the vault are granted their roles at
// wiring time.
func New(roles *authz.Table, emitter *events.Emitter, logger *slog.Logger, metrics *Metrics) *Ledger {
	return &Ledger{
		roles:      roles,
		emitter:    emitter,
		logger:     logger,
		metrics:    metrics,
		balances:   make(map[domain.Address]domain.Amount),
		allowances: make(map[allowanceKey]domain.Amount),
	}
}

// Mint creates amount claim units for to. Minter role required.
func (l *Ledger) Mint(ctx context.Context, caller, to domain.Address, amount domain.Amount) error {
	if err := l.roles.Require(authz.RoleMinter, caller); err != nil {
		return err
	}
	if to.IsZero() {
		return dErrors.Wrap(ErrInvalidRecipient, dErrors.CodeValidation, "mint recipient is the null identity")
	}

	l.mu.Lock()
	l.balances[to] += amount
	l.supply += amount
	l.mu.Unlock()

	l.emitter.Emit(ctx, events.TypeMinted, to.String(), map[string]any{
		"account": to.String(),
		"amount":  amount,
	})
	l.metrics.ObserveMint(amount)
	l.logger.DebugContext(ctx, "claims minted", "account", to.String(), "amount", amount)
	return nil
}

// BurnFrom destroys amount claim units held by account. The caller must hold
// the burner role, or spend a delegated allowance when burning another
// holder's claims. Allowance is decremented on use; burner role bypasses it.
func (l *Ledger) BurnFrom(ctx context.Context, caller, account domain.Address, amount domain.Amount) error {
	if account.IsZero() {
		return dErrors.Wrap(ErrInvalidAccount, dErrors.CodeValidation, "burn account is the null identity")
	}
	isBurner := l.roles.Has(authz.RoleBurner, caller)

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.balances[account] < amount {
		return dErrors.Wrap(ErrInsufficientBalance, dErrors.CodeConflict, "burn exceeds claim balance")
	}
	switch {
	case isBurner:
		// Burner role bypasses allowance.
	case caller == account:
		// Holders may always destroy their own claims.
	default:
		key := allowanceKey{owner: account, spender: caller}
		if l.allowances[key] < amount {
			return dErrors.Wrap(ErrInsufficientAllowance, dErrors.CodeConflict, "caller lacks burner role and delegated allowance")
		}
		l.allowances[key] -= amount
	}

	l.balances[account] -= amount
	l.supply -= amount

	l.emitter.Emit(ctx, events.TypeBurned, account.String(), map[string]any{
		"account": account.String(),
		"amount":  amount,
	})
	l.metrics.ObserveBurn(amount)
	l.logger.DebugContext(ctx, "claims burned", "account", account.String(), "amount", amount)
	return nil
}

// Transfer moves claims between holders. Rejected while paused; mint and burn
// are unaffected by the pause flag.
func (l *Ledger) Transfer(ctx context.Context, from, to domain.Address, amount domain.Amount) error {
	if to.IsZero() {
		return dErrors.Wrap(ErrInvalidRecipient, dErrors.CodeValidation, "transfer recipient is the null identity")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.paused {
		return dErrors.Wrap(ErrTransfersPaused, dErrors.CodeConflict, "claim transfers are paused")
	}
	if l.balances[from] < amount {
		return dErrors.Wrap(ErrInsufficientBalance, dErrors.CodeConflict, "transfer exceeds claim balance")
	}

	l.balances[from] -= amount
	l.balances[to] += amount

	l.emitter.Emit(ctx, events.TypeTransfer, from.String(), map[string]any{
		"from":   from.String(),
		"to":     to.String(),
		"amount": amount,
	})
	return nil
}

// Approve sets the delegated burn/transfer allowance from owner to spender.
func (l *Ledger) Approve(_ context.Context, owner, spender domain.Address, amount domain.Amount) error {
	if spender.IsZero() {
		return dErrors.Wrap(ErrInvalidRecipient, dErrors.CodeValidation, "approve spender is the null identity")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.allowances[allowanceKey{owner: owner, spender: spender}] = amount
	return nil
}

// Pause blocks balance-changing transfers. Pauser role required.
func (l *Ledger) Pause(ctx context.Context, caller domain.Address) error {
	if err := l.roles.Require(authz.RolePauser, caller); err != nil {
		return err
	}
	l.mu.Lock()
	l.paused = true
	l.mu.Unlock()
	l.emitter.Emit(ctx, events.TypePaused, caller.String(), nil)
	return nil
}

// Unpause re-enables transfers. Pauser role required.
func (l *Ledger) Unpause(ctx context.Context, caller domain.Address) error {
	if err := l.roles.Require(authz.RolePauser, caller); err != nil {
		return err
	}
	l.mu.Lock()
	l.paused = false
	l.mu.Unlock()
	l.emitter.Emit(ctx, events.TypeUnpaused, caller.String(), nil)
	return nil
}

// BalanceOf returns holder's claim balance.
func (l *Ledger) BalanceOf(holder domain.Address) domain.Amount {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[holder]
}

// TotalSupply returns the current claim supply.
func (l *Ledger) TotalSupply() domain.Amount {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.supply
}

// Allowance returns the delegated allowance from owner to spender.
func (l *Ledger) Allowance(owner, spender domain.Address) domain.Amount {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.allowances[allowanceKey{owner: owner, spender: spender}]
}

// Paused reports whether transfers are currently blocked.
func (l *Ledger) Paused() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.paused
}
