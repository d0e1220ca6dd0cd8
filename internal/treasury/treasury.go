// Package treasury is the boundary to the asset custody/settlement substrate.
// The core only moves fee and portfolio assets through the Bank interface;
// the in-memory implementation doubles as the settlement ledger for tests and
// single-process deployments.
package treasury

import (
	"context"
	"errors"
	"sync"

	"govvault/pkg/domain"
	dErrors "govvault/pkg/domain-errors"
)

// Sentinel transfer failures, propagated verbatim to callers per the error
// contract of the settlement boundary.
var (
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
)

// Bank moves asset balances between identities. TransferFrom spends the
// owner's allowance for the configured protocol spender; Transfer moves the
// caller-controlled account's own funds.
type Bank interface {
	TransferFrom(ctx context.Context, asset domain.Asset, owner, recipient domain.Address, amount domain.Amount) error
	Transfer(ctx context.Context, asset domain.Asset, from, to domain.Address, amount domain.Amount) error
	BalanceOf(ctx context.Context, asset domain.Asset, holder domain.Address) (domain.Amount, error)
}

type balanceKey struct {
	asset  domain.Asset
	holder domain.Address
}

type allowanceKey struct {
	asset domain.Asset
	owner domain.Address
}

// InMemoryBank is the in-process settlement ledger. All mutating operations
// are serialized through the component locks of its callers plus its own
// mutex, so transfers are atomic.
type InMemoryBank struct {
	mu         sync.Mutex
	balances   map[balanceKey]domain.Amount
	allowances map[allowanceKey]domain.Amount
}

// NewInMemoryBank creates an empty bank.
func NewInMemoryBank() *InMemoryBank {
	return &InMemoryBank{
		balances:   make(map[balanceKey]domain.Amount),
		allowances: make(map[allowanceKey]domain.Amount),
	}
}

// Credit seeds an account balance. Deployment/test helper, not part of Bank.
func (b *InMemoryBank) Credit(asset domain.Asset, holder domain.Address, amount domain.Amount) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.balances[balanceKey{asset, holder}] += amount
}

// Approve sets the protocol allowance for owner's holdings of asset.
func (b *InMemoryBank) Approve(asset domain.Asset, owner domain.Address, amount domain.Amount) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.allowances[allowanceKey{asset, owner}] = amount
}

// Allowance returns the remaining protocol allowance for owner.
func (b *InMemoryBank) Allowance(asset domain.Asset, owner domain.Address) domain.Amount {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.allowances[allowanceKey{asset, owner}]
}

// TransferFrom moves amount of asset from owner to recipient, spending the
// owner's allowance. Fails without any effect if the allowance or balance is
// short.
func (b *InMemoryBank) TransferFrom(_ context.Context, asset domain.Asset, owner, recipient domain.Address, amount domain.Amount) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	ak := allowanceKey{asset, owner}
	if b.allowances[ak] < amount {
		return dErrors.Wrap(ErrInsufficientAllowance, dErrors.CodeConflict, "allowance too low for transfer")
	}
	if err := b.move(asset, owner, recipient, amount); err != nil {
		return err
	}
	b.allowances[ak] -= amount
	return nil
}

// Transfer moves amount of asset from one account to another.
func (b *InMemoryBank) Transfer(_ context.Context, asset domain.Asset, from, to domain.Address, amount domain.Amount) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.move(asset, from, to, amount)
}

// BalanceOf returns holder's balance of asset.
func (b *InMemoryBank) BalanceOf(_ context.Context, asset domain.Asset, holder domain.Address) (domain.Amount, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.balances[balanceKey{asset, holder}], nil
}

// move is the balance mutation shared by Transfer and TransferFrom.
// Caller holds the lock.
func (b *InMemoryBank) move(asset domain.Asset, from, to domain.Address, amount domain.Amount) error {
	fk := balanceKey{asset, from}
	if b.balances[fk] < amount {
		return dErrors.Wrap(ErrInsufficientBalance, dErrors.CodeConflict, "balance too low for transfer")
	}
	b.balances[fk] -= amount
	b.balances[balanceKey{asset, to}] += amount
	return nil
}
