package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"govvault/internal/ledger"
	"govvault/pkg/domain"
	dErrors "govvault/pkg/domain-errors"
	"govvault/pkg/platform/httputil"
)

// LedgerHandler exposes claim balances and holder-initiated transfers.
// Minting and burning have no HTTP surface; they only happen inside the
// payment protocols and the vault.
type LedgerHandler struct {
	claims *ledger.Ledger
	logger *slog.Logger
}

func NewLedgerHandler(claims *ledger.Ledger, logger *slog.Logger) *LedgerHandler {
	return &LedgerHandler{claims: claims, logger: logger}
}

func (h *LedgerHandler) Register(public, authed chi.Router) {
	public.Get("/v1/claims/supply", h.handleSupply)
	public.Get("/v1/claims/{address}", h.handleBalance)

	authed.Post("/v1/claims/transfers", h.handleTransfer)
	authed.Post("/v1/claims/approvals", h.handleApprove)
	authed.Post("/v1/claims/pause", h.handlePause)
	authed.Post("/v1/claims/unpause", h.handleUnpause)
}

func (h *LedgerHandler) handleSupply(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"total_supply": h.claims.TotalSupply(),
		"paused":       h.claims.Paused(),
	})
}

func (h *LedgerHandler) handleBalance(w http.ResponseWriter, r *http.Request) {
	holder, err := domain.ParseAddress(chi.URLParam(r, "address"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"address": holder.String(),
		"balance": h.claims.BalanceOf(holder),
	})
}

type transferRequest struct {
	To     string        `json:"to" validate:"required"`
	Amount domain.Amount `json:"amount" validate:"required"`
}

func (h *LedgerHandler) handleTransfer(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeJSON[transferRequest](w, r, h.logger, r.Context())
	if !ok {
		return
	}
	if err := validate.Struct(req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "missing or invalid request fields"))
		return
	}
	to, err := domain.ParseAddress(req.To)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := h.claims.Transfer(r.Context(), caller, to, req.Amount); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "transferred"})
}

type approveRequest struct {
	Spender string        `json:"spender" validate:"required"`
	Amount  domain.Amount `json:"amount"`
}

func (h *LedgerHandler) handleApprove(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeJSON[approveRequest](w, r, h.logger, r.Context())
	if !ok {
		return
	}
	spender, err := domain.ParseAddress(req.Spender)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := h.claims.Approve(r.Context(), caller, spender, req.Amount); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "approved"})
}

func (h *LedgerHandler) handlePause(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(w, r)
	if !ok {
		return
	}
	if err := h.claims.Pause(r.Context(), caller); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "paused"})
}

func (h *LedgerHandler) handleUnpause(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(w, r)
	if !ok {
		return
	}
	if err := h.claims.Unpause(r.Context(), caller); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "unpaused"})
}
