// Package message implements the signed-message payment protocol: a fixed
// stable-value fee per governance message, paid against a replay-protected
// typed-data signature, minting proportional claim tokens to the payer.
package message

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"govvault/internal/authz"
	"govvault/internal/events"
	"govvault/internal/guard"
	"govvault/internal/ledger"
	"govvault/internal/sentinel"
	"govvault/internal/signer"
	"govvault/internal/treasury"
	"govvault/pkg/domain"
	dErrors "govvault/pkg/domain-errors"
	"govvault/pkg/platform/middleware/requesttime"
)

// Sentinel failures of the payment protocol.
var (
	ErrInvalidSignature = signer.ErrInvalidSignature
	ErrAlreadyPaid      = errors.New("message already paid")
	ErrNotPaid          = errors.New("message not paid")
	ErrAlreadyProcessed = errors.New("message already processed")
)

// Surcharge minted to the revenue recipient, as a fraction of the user mint:
// 20%, expressed in basis points.
const surchargeBps = 2_000

// Config carries the protocol's economic parameters and identities.
type Config struct {
	// Self is the protocol's own identity; it must hold the minter role.
	Self domain.Address
	// FeeAsset and Fee price one message.
	FeeAsset domain.Asset
	Fee      domain.Amount
	// Custody receives collected fees (the vault custody account).
	Custody domain.Address
	// RevenueRecipient receives the surcharge mint.
	RevenueRecipient domain.Address
	// UserMint is the claim amount minted to the payer per message.
	UserMint domain.Amount
}

// Service orchestrates message payment and processing acknowledgement.
type Service struct {
	cfg     Config
	store   *Store
	claims  *ledger.Ledger
	bank    treasury.Bank
	roles   *authz.Table
	emitter *events.Emitter
	logger  *slog.Logger
	metrics *Metrics

	// mu serializes mutating operations; re-entrant calls are rejected via
	// the context guard before the lock is taken.
	mu sync.Mutex
}

// NewService creates the payment protocol service.
func NewService(cfg Config, store *Store, claims *ledger.Ledger, bank treasury.Bank, roles *authz.Table, emitter *events.Emitter, logger *slog.Logger, metrics *Metrics) *Service {
	if cfg.UserMint == 0 {
		cfg.UserMint = domain.Unit
	}
	return &Service{
		cfg:     cfg,
		store:   store,
		claims:  claims,
		bank:    bank,
		roles:   roles,
		emitter: emitter,
		logger:  logger,
		metrics: metrics,
	}
}

// PayForMessage collects the message fee and mints claims. The digest is
// marked Paid before any external transfer happens; a failed transfer rolls
// the mark back, so either everything applies or nothing does.
func (s *Service) PayForMessage(ctx context.Context, msg signer.SignedMessage, signature []byte, messageURI string) (*Receipt, error) {
	ctx, err := guard.Enter(ctx, "message")
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	digest := msg.Digest()

	recovered, err := signer.RecoverSigner(digest, signature)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnauthorized, "signature does not verify")
	}
	if recovered != msg.Payer {
		return nil, dErrors.Wrap(ErrInvalidSignature, dErrors.CodeUnauthorized, "recovered signer does not match payer")
	}

	devMint := s.cfg.UserMint * surchargeBps / 10_000

	rec := &Record{
		Message:  msg,
		URI:      messageURI,
		UserMint: s.cfg.UserMint,
		DevMint:  devMint,
		PaidAt:   requesttime.Now(ctx),
	}
	if err := s.store.PutPaid(digest, rec); err != nil {
		return nil, dErrors.Wrap(ErrAlreadyPaid, dErrors.CodeConflict, "digest already paid")
	}

	if err := s.bank.TransferFrom(ctx, s.cfg.FeeAsset, msg.Payer, s.cfg.Custody, s.cfg.Fee); err != nil {
		s.store.Remove(digest)
		return nil, err
	}
	if err := s.mintClaims(ctx, msg.Payer, devMint); err != nil {
		// Refund the fee and unwind the paid mark; the operation must not
		// leave partial effects.
		if rbErr := s.bank.Transfer(ctx, s.cfg.FeeAsset, s.cfg.Custody, msg.Payer, s.cfg.Fee); rbErr != nil {
			s.logger.ErrorContext(ctx, "fee refund failed during rollback", "digest", digest.String(), "error", rbErr)
		}
		s.store.Remove(digest)
		return nil, err
	}

	s.emitter.Emit(ctx, events.TypeMessagePaid, digest.String(), map[string]any{
		"digest":      digest.String(),
		"payer":       msg.Payer.String(),
		"message_uri": messageURI,
		"user_mint":   s.cfg.UserMint,
		"dev_mint":    devMint,
	})
	s.metrics.ObservePaid(s.cfg.Fee)
	s.logger.InfoContext(ctx, "message paid",
		"digest", digest.String(),
		"payer", msg.Payer.String(),
		"fee", s.cfg.Fee,
	)

	return &Receipt{Digest: digest, Fee: s.cfg.Fee, UserMint: s.cfg.UserMint, DevMint: devMint}, nil
}

func (s *Service) mintClaims(ctx context.Context, payer domain.Address, devMint domain.Amount) error {
	if err := s.claims.Mint(ctx, s.cfg.Self, payer, s.cfg.UserMint); err != nil {
		return err
	}
	if err := s.claims.Mint(ctx, s.cfg.Self, s.cfg.RevenueRecipient, devMint); err != nil {
		// Unwind the payer mint so supply stays consistent.
		if rbErr := s.claims.BurnFrom(ctx, s.cfg.Self, payer, s.cfg.UserMint); rbErr != nil {
			s.logger.ErrorContext(ctx, "mint rollback failed", "error", rbErr)
		}
		return err
	}
	return nil
}

// MarkProcessed acknowledges off-chain consumption of a paid message.
// Restricted to the agent role.
func (s *Service) MarkProcessed(ctx context.Context, caller domain.Address, digest domain.Digest) error {
	if err := s.roles.Require(authz.RoleAgent, caller); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.SetProcessed(digest, requesttime.Now(ctx)); err != nil {
		if errors.Is(err, sentinel.ErrInvalidState) {
			return dErrors.Wrap(ErrAlreadyProcessed, dErrors.CodeConflict, "digest already processed")
		}
		return dErrors.Wrap(ErrNotPaid, dErrors.CodeConflict, "digest has not been paid")
	}

	s.emitter.Emit(ctx, events.TypeMessageProcessed, digest.String(), map[string]any{
		"digest":    digest.String(),
		"processor": caller.String(),
	})
	s.metrics.ObserveProcessed()
	s.logger.InfoContext(ctx, "message processed", "digest", digest.String(), "processor", caller.String())
	return nil
}

// Status returns the state of a digest.
func (s *Service) Status(digest domain.Digest) Status {
	return s.store.Status(digest)
}

// Record returns the paid record for a digest.
func (s *Service) Record(digest domain.Digest) (*Record, error) {
	rec, err := s.store.Record(digest)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeNotFound, "unknown digest")
	}
	return rec, nil
}
