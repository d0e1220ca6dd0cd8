// Package policy implements the shared text policy and its pay-per-edit
// protocol. Any payer may splice a byte range of the document; the fee is
// proportional to the larger of the bytes removed and the bytes inserted,
// charged in 10-byte units.
package policy

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"govvault/internal/events"
	"govvault/internal/guard"
	"govvault/internal/ledger"
	"govvault/internal/treasury"
	"govvault/pkg/domain"
	dErrors "govvault/pkg/domain-errors"
)

// Sentinel failures of the edit protocol.
var (
	ErrInvalidRange = errors.New("invalid edit range")
	ErrSizeExceeded = errors.New("policy size limit exceeded")
)

// bytesPerUnit is the edit granularity: every started 10-byte span of the
// larger side of the splice costs one fee unit.
const bytesPerUnit = 10

// Surcharge minted to the revenue recipient, in basis points of the user mint.
const surchargeBps = 2_000

// Config carries the protocol's economic parameters and identities.
type Config struct {
	// Self is the protocol's own identity; it must hold the minter role.
	Self domain.Address
	// FeeAsset prices edits; one whole fee unit per changed 10-byte unit.
	FeeAsset domain.Asset
	// Custody receives collected fees (the vault custody account).
	Custody domain.Address
	// RevenueRecipient receives the surcharge mint.
	RevenueRecipient domain.Address
	// MaxSize bounds the document length in bytes.
	MaxSize int
	// Initial is the document text at deployment.
	Initial string
}

// EditCost is the priced preview of an edit.
type EditCost struct {
	ChangedUnits uint64
	Fee          domain.Amount
	UserMint     domain.Amount
	DevMint      domain.Amount
}

// Version is a point-in-time view of the document.
type Version struct {
	Text    string
	Version uint64
}

// Service owns the policy document. The version counter increments by exactly
// one on every successful edit and never otherwise.
type Service struct {
	cfg     Config
	claims  *ledger.Ledger
	bank    treasury.Bank
	emitter *events.Emitter
	logger  *slog.Logger
	metrics *Metrics
	cache   *Cache

	mu      sync.RWMutex
	text    []byte
	version uint64
}

// NewService creates the edit protocol around the initial document text.
// cache may be nil when no external read replica is configured.
func NewService(cfg Config, claims *ledger.Ledger, bank treasury.Bank, emitter *events.Emitter, logger *slog.Logger, metrics *Metrics, cache *Cache) *Service {
	s := &Service{
		cfg:     cfg,
		claims:  claims,
		bank:    bank,
		emitter: emitter,
		logger:  logger,
		metrics: metrics,
		cache:   cache,
		text:    []byte(cfg.Initial),
		version: 1,
	}
	s.publish(context.Background())
	return s
}

// Cost prices an edit spanning the given number of changed bytes: integer
// ceiling division, so 1-10 changed bytes cost exactly one unit.
func Cost(changedBytes int) EditCost {
	units := (uint64(changedBytes) + bytesPerUnit - 1) / bytesPerUnit
	userMint := domain.Amount(units) * domain.Unit
	return EditCost{
		ChangedUnits: units,
		Fee:          domain.Amount(units) * domain.Unit,
		UserMint:     userMint,
		DevMint:      userMint * surchargeBps / 10_000,
	}
}

// Edit replaces the byte range [start, end) with replacement. The replacement
// length may differ from the range: this is a splice, not an overwrite. The
// document is only mutated after the fee transfer and claim mints succeed, so
// a failed edit leaves text and version untouched.
func (s *Service) Edit(ctx context.Context, caller domain.Address, start, end int, replacement []byte) (Version, error) {
	ctx, err := guard.Enter(ctx, "policy")
	if err != nil {
		return Version{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if start < 0 || start > end || end > len(s.text) {
		return Version{}, dErrors.Wrap(ErrInvalidRange, dErrors.CodeValidation, "edit range outside document bounds")
	}
	newLen := len(s.text) - (end - start) + len(replacement)
	if newLen > s.cfg.MaxSize {
		return Version{}, dErrors.Wrap(ErrSizeExceeded, dErrors.CodeValidation, "edit would exceed the policy size limit")
	}

	changed := end - start
	if len(replacement) > changed {
		changed = len(replacement)
	}
	cost := Cost(changed)

	if cost.Fee > 0 {
		if err := s.bank.TransferFrom(ctx, s.cfg.FeeAsset, caller, s.cfg.Custody, cost.Fee); err != nil {
			return Version{}, err
		}
		if err := s.mintClaims(ctx, caller, cost); err != nil {
			if rbErr := s.bank.Transfer(ctx, s.cfg.FeeAsset, s.cfg.Custody, caller, cost.Fee); rbErr != nil {
				s.logger.ErrorContext(ctx, "fee refund failed during rollback", "error", rbErr)
			}
			return Version{}, err
		}
	}

	// Splice: remove the range, insert the replacement.
	next := make([]byte, 0, newLen)
	next = append(next, s.text[:start]...)
	next = append(next, replacement...)
	next = append(next, s.text[end:]...)
	s.text = next
	s.version++

	s.emitter.Emit(ctx, events.TypePolicyEdited, caller.String(), map[string]any{
		"editor":          caller.String(),
		"start":           start,
		"end":             end,
		"replacement_len": len(replacement),
		"changed_units":   cost.ChangedUnits,
		"fee":             cost.Fee,
		"user_mint":       cost.UserMint,
		"dev_mint":        cost.DevMint,
		"version":         s.version,
	})
	s.metrics.ObserveEdit(cost.Fee, len(s.text))
	s.logger.InfoContext(ctx, "policy edited",
		"editor", caller.String(),
		"version", s.version,
		"changed_units", cost.ChangedUnits,
	)
	s.publish(ctx)

	return Version{Text: string(s.text), Version: s.version}, nil
}

func (s *Service) mintClaims(ctx context.Context, caller domain.Address, cost EditCost) error {
	if err := s.claims.Mint(ctx, s.cfg.Self, caller, cost.UserMint); err != nil {
		return err
	}
	if err := s.claims.Mint(ctx, s.cfg.Self, s.cfg.RevenueRecipient, cost.DevMint); err != nil {
		if rbErr := s.claims.BurnFrom(ctx, s.cfg.Self, caller, cost.UserMint); rbErr != nil {
			s.logger.ErrorContext(ctx, "mint rollback failed", "error", rbErr)
		}
		return err
	}
	return nil
}

// Document returns the current text and version.
func (s *Service) Document() Version {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Version{Text: string(s.text), Version: s.version}
}

// Slice returns the byte range [start, end) of the current text.
func (s *Service) Slice(start, end int) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if start < 0 || start > end || end > len(s.text) {
		return "", dErrors.Wrap(ErrInvalidRange, dErrors.CodeValidation, "slice range outside document bounds")
	}
	return string(s.text[start:end]), nil
}

// publish mirrors the document into the external read cache, best effort.
// Caller holds at least a read lock.
func (s *Service) publish(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, string(s.text), s.version); err != nil {
		s.logger.WarnContext(ctx, "policy cache publish failed", "error", err)
	}
}
