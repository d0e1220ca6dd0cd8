package vault

import (
	"context"

	"govvault/internal/authz"
	"govvault/internal/events"
	"govvault/pkg/domain"
	dErrors "govvault/pkg/domain-errors"
)

// SetAllowedAsset adds or removes an asset from the allowlist. Owner only.
// The redemption asset cannot be removed; phase derivation depends on it.
func (s *Service) SetAllowedAsset(ctx context.Context, caller domain.Address, asset domain.Asset, allowed bool) error {
	if err := s.roles.Require(authz.RoleOwner, caller); err != nil {
		return err
	}
	if asset == s.cfg.RedemptionAsset && !allowed {
		return dErrors.New(dErrors.CodeValidation, "redemption asset cannot be disallowed")
	}

	s.mu.Lock()
	s.allowedAssets[asset] = allowed
	s.mu.Unlock()

	s.emitter.Emit(ctx, events.TypeAssetAllowed, caller.String(), map[string]any{
		"asset":   asset.String(),
		"allowed": allowed,
	})
	return nil
}

// SetAllowedComet adds or removes a lending market from the allowlist.
// Owner only.
func (s *Service) SetAllowedComet(ctx context.Context, caller domain.Address, market domain.Market, allowed bool) error {
	if err := s.roles.Require(authz.RoleOwner, caller); err != nil {
		return err
	}

	s.mu.Lock()
	s.allowedComets[market] = allowed
	s.mu.Unlock()

	s.emitter.Emit(ctx, events.TypeMarketAllowed, caller.String(), map[string]any{
		"market":  market.String(),
		"allowed": allowed,
	})
	return nil
}

// SetAssetComet maps an asset to the market it is supplied through. Owner
// only. Both sides must already be allowlisted.
func (s *Service) SetAssetComet(ctx context.Context, caller domain.Address, asset domain.Asset, market domain.Market) error {
	if err := s.roles.Require(authz.RoleOwner, caller); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.allowedAssets[asset] {
		return dErrors.Wrap(ErrAssetNotAllowed, dErrors.CodeConflict, "asset must be allowlisted before mapping")
	}
	if !s.allowedComets[market] {
		return dErrors.Wrap(ErrMarketNotAllowed, dErrors.CodeConflict, "market must be allowlisted before mapping")
	}
	s.assetToComet[asset] = market

	s.emitter.Emit(ctx, events.TypeAssetMarketSet, caller.String(), map[string]any{
		"asset":  asset.String(),
		"market": market.String(),
	})
	return nil
}

// SetAgent replaces the acting agent. Owner only. The capability table is
// updated in step so role checks stay consistent with the vault's view.
func (s *Service) SetAgent(ctx context.Context, caller domain.Address, agent domain.Address) error {
	if err := s.roles.Require(authz.RoleOwner, caller); err != nil {
		return err
	}
	if agent.IsZero() {
		return dErrors.New(dErrors.CodeValidation, "agent cannot be the null identity")
	}

	s.mu.Lock()
	previous := s.agent
	s.agent = agent
	s.mu.Unlock()

	s.roles.Revoke(authz.RoleAgent, previous)
	s.roles.Grant(authz.RoleAgent, agent)

	s.emitter.Emit(ctx, events.TypeAgentChanged, caller.String(), map[string]any{
		"previous": previous.String(),
		"agent":    agent.String(),
	})
	s.logger.InfoContext(ctx, "agent changed", "previous", previous.String(), "agent", agent.String())
	return nil
}

// TransferOwnership proposes a new owner. Nothing changes hands until the
// proposed owner accepts.
func (s *Service) TransferOwnership(ctx context.Context, caller, proposed domain.Address) error {
	if err := s.roles.Require(authz.RoleOwner, caller); err != nil {
		return err
	}
	if proposed.IsZero() {
		return dErrors.New(dErrors.CodeValidation, "proposed owner cannot be the null identity")
	}

	s.mu.Lock()
	s.pendingOwner = &proposed
	s.mu.Unlock()

	s.emitter.Emit(ctx, events.TypeOwnershipProposed, caller.String(), map[string]any{
		"proposed": proposed.String(),
	})
	return nil
}

// AcceptOwnership completes a proposed transfer. Only the pending owner may
// call it.
func (s *Service) AcceptOwnership(ctx context.Context, caller domain.Address) error {
	s.mu.Lock()
	if s.pendingOwner == nil || *s.pendingOwner != caller {
		s.mu.Unlock()
		return dErrors.Wrap(ErrNotPendingOwner, dErrors.CodeForbidden, "ownership acceptance refused")
	}
	previous := s.owner
	s.owner = caller
	s.pendingOwner = nil
	s.mu.Unlock()

	s.roles.Revoke(authz.RoleOwner, previous)
	s.roles.Grant(authz.RoleOwner, caller)

	s.emitter.Emit(ctx, events.TypeOwnershipAccepted, caller.String(), map[string]any{
		"previous": previous.String(),
		"owner":    caller.String(),
	})
	s.logger.InfoContext(ctx, "ownership transferred", "previous", previous.String(), "owner", caller.String())
	return nil
}

// Snapshot reports the vault's externally visible state, including custody
// balances for every allowlisted asset.
func (s *Service) Snapshot(ctx context.Context) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	balances := make(map[domain.Asset]domain.Amount, len(s.allowedAssets))
	for asset, allowed := range s.allowedAssets {
		if !allowed {
			continue
		}
		bal, err := s.bank.BalanceOf(ctx, asset, s.cfg.Custody)
		if err != nil {
			return Snapshot{}, dErrors.Wrap(err, dErrors.CodeExternalFailure, "custody balance unavailable")
		}
		balances[asset] = bal
	}

	return Snapshot{
		Phase:           s.phaseAt(ctx),
		UnlockAt:        s.cfg.UnlockAt,
		Owner:           s.owner,
		PendingOwner:    s.pendingOwner,
		Agent:           s.agent,
		RedemptionAsset: s.cfg.RedemptionAsset,
		Balances:        balances,
		ClaimSupply:     s.claims.TotalSupply(),
	}, nil
}
