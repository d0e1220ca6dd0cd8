package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"govvault/internal/vault"
	"govvault/pkg/domain"
	dErrors "govvault/pkg/domain-errors"
	"govvault/pkg/platform/httputil"
)

// VaultHandler exposes the portfolio vault: public state reads, authed
// management and redemption operations.
type VaultHandler struct {
	service *vault.Service
	logger  *slog.Logger
}

func NewVaultHandler(service *vault.Service, logger *slog.Logger) *VaultHandler {
	return &VaultHandler{service: service, logger: logger}
}

func (h *VaultHandler) Register(public, authed chi.Router) {
	public.Get("/v1/vault", h.handleSnapshot)

	authed.Post("/v1/vault/swaps", h.handleSwap)
	authed.Post("/v1/vault/supply", h.handleSupply)
	authed.Post("/v1/vault/withdrawals", h.handleWithdraw)
	authed.Post("/v1/vault/rewards/claim", h.handleClaimRewards)
	authed.Post("/v1/vault/redemptions", h.handleRedeem)
	authed.Post("/v1/vault/assets", h.handleSetAsset)
	authed.Post("/v1/vault/markets", h.handleSetMarket)
	authed.Post("/v1/vault/asset-markets", h.handleMapAssetMarket)
	authed.Post("/v1/vault/agent", h.handleSetAgent)
	authed.Post("/v1/vault/ownership/transfer", h.handleTransferOwnership)
	authed.Post("/v1/vault/ownership/accept", h.handleAcceptOwnership)
}

type snapshotResponse struct {
	Phase           string                   `json:"phase"`
	UnlockAt        string                   `json:"unlock_at"`
	Owner           string                   `json:"owner"`
	PendingOwner    string                   `json:"pending_owner,omitempty"`
	Agent           string                   `json:"agent"`
	RedemptionAsset string                   `json:"redemption_asset"`
	Balances        map[string]domain.Amount `json:"balances"`
	ClaimSupply     domain.Amount            `json:"claim_supply"`
}

func (h *VaultHandler) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := h.service.Snapshot(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	resp := snapshotResponse{
		Phase:           snap.Phase.String(),
		UnlockAt:        snap.UnlockAt.UTC().Format(timeFormat),
		Owner:           snap.Owner.String(),
		Agent:           snap.Agent.String(),
		RedemptionAsset: snap.RedemptionAsset.String(),
		Balances:        make(map[string]domain.Amount, len(snap.Balances)),
		ClaimSupply:     snap.ClaimSupply,
	}
	if snap.PendingOwner != nil {
		resp.PendingOwner = snap.PendingOwner.String()
	}
	for asset, amount := range snap.Balances {
		resp.Balances[asset.String()] = amount
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

type swapRequest struct {
	AssetIn      string        `json:"asset_in" validate:"required"`
	AssetOut     string        `json:"asset_out" validate:"required"`
	AmountIn     domain.Amount `json:"amount_in" validate:"required"`
	MinAmountOut domain.Amount `json:"min_amount_out"`
}

func (h *VaultHandler) handleSwap(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeJSON[swapRequest](w, r, h.logger, r.Context())
	if !ok {
		return
	}
	if err := validate.Struct(req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "missing or invalid request fields"))
		return
	}

	out, err := h.service.ExecuteSwap(r.Context(), caller,
		domain.Asset(req.AssetIn), domain.Asset(req.AssetOut), req.AmountIn, req.MinAmountOut)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]domain.Amount{"amount_out": out})
}

type positionRequest struct {
	Asset  string        `json:"asset" validate:"required"`
	Amount domain.Amount `json:"amount" validate:"required"`
}

func (h *VaultHandler) handleSupply(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeJSON[positionRequest](w, r, h.logger, r.Context())
	if !ok {
		return
	}
	if err := validate.Struct(req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "missing or invalid request fields"))
		return
	}

	if err := h.service.Supply(r.Context(), caller, domain.Asset(req.Asset), req.Amount); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "supplied"})
}

func (h *VaultHandler) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeJSON[positionRequest](w, r, h.logger, r.Context())
	if !ok {
		return
	}
	if err := validate.Struct(req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "missing or invalid request fields"))
		return
	}

	returned, err := h.service.Withdraw(r.Context(), caller, domain.Asset(req.Asset), req.Amount)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]domain.Amount{"returned": returned})
}

type claimRewardsRequest struct {
	Market    string `json:"market" validate:"required"`
	Recipient string `json:"recipient" validate:"required"`
}

func (h *VaultHandler) handleClaimRewards(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeJSON[claimRewardsRequest](w, r, h.logger, r.Context())
	if !ok {
		return
	}
	recipient, err := domain.ParseAddress(req.Recipient)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	amount, err := h.service.ClaimRewards(r.Context(), caller, domain.Market(req.Market), recipient)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]domain.Amount{"amount": amount})
}

type redeemRequest struct {
	Claims domain.Amount `json:"claims" validate:"required"`
	To     string        `json:"to" validate:"required"`
}

func (h *VaultHandler) handleRedeem(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeJSON[redeemRequest](w, r, h.logger, r.Context())
	if !ok {
		return
	}
	to, err := domain.ParseAddress(req.To)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	payout, err := h.service.Redeem(r.Context(), caller, req.Claims, to)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]domain.Amount{"payout": payout})
}

type allowAssetRequest struct {
	Asset   string `json:"asset" validate:"required"`
	Allowed bool   `json:"allowed"`
}

func (h *VaultHandler) handleSetAsset(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeJSON[allowAssetRequest](w, r, h.logger, r.Context())
	if !ok {
		return
	}

	if err := h.service.SetAllowedAsset(r.Context(), caller, domain.Asset(req.Asset), req.Allowed); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

type allowMarketRequest struct {
	Market  string `json:"market" validate:"required"`
	Allowed bool   `json:"allowed"`
}

func (h *VaultHandler) handleSetMarket(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeJSON[allowMarketRequest](w, r, h.logger, r.Context())
	if !ok {
		return
	}

	if err := h.service.SetAllowedComet(r.Context(), caller, domain.Market(req.Market), req.Allowed); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

type assetMarketRequest struct {
	Asset  string `json:"asset" validate:"required"`
	Market string `json:"market" validate:"required"`
}

func (h *VaultHandler) handleMapAssetMarket(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeJSON[assetMarketRequest](w, r, h.logger, r.Context())
	if !ok {
		return
	}

	if err := h.service.SetAssetComet(r.Context(), caller, domain.Asset(req.Asset), domain.Market(req.Market)); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "mapped"})
}

type identityRequest struct {
	Address string `json:"address" validate:"required"`
}

func (h *VaultHandler) handleSetAgent(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeJSON[identityRequest](w, r, h.logger, r.Context())
	if !ok {
		return
	}
	agent, err := domain.ParseAddress(req.Address)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := h.service.SetAgent(r.Context(), caller, agent); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"agent": agent.String()})
}

func (h *VaultHandler) handleTransferOwnership(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeJSON[identityRequest](w, r, h.logger, r.Context())
	if !ok {
		return
	}
	proposed, err := domain.ParseAddress(req.Address)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := h.service.TransferOwnership(r.Context(), caller, proposed); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"pending_owner": proposed.String()})
}

func (h *VaultHandler) handleAcceptOwnership(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(w, r)
	if !ok {
		return
	}
	if err := h.service.AcceptOwnership(r.Context(), caller); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"owner": caller.String()})
}
