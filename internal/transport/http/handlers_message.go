package httptransport

import (
	"encoding/base64"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"govvault/internal/message"
	"govvault/internal/signer"
	"govvault/pkg/domain"
	dErrors "govvault/pkg/domain-errors"
	"govvault/pkg/platform/httputil"
)

// MessageHandler exposes the message payment protocol.
type MessageHandler struct {
	service *message.Service
	logger  *slog.Logger
}

func NewMessageHandler(service *message.Service, logger *slog.Logger) *MessageHandler {
	return &MessageHandler{service: service, logger: logger}
}

// Register mounts the message routes. Paying does not go through bearer auth:
// the typed-data signature inside the request authenticates the payer.
func (h *MessageHandler) Register(public, authed chi.Router) {
	public.Post("/v1/messages/pay", h.handlePay)
	public.Get("/v1/messages/{digest}", h.handleGet)
	authed.Post("/v1/messages/{digest}/processed", h.handleMarkProcessed)
}

type payRequest struct {
	ContentHash string `json:"content_hash" validate:"required"`
	Payer       string `json:"payer" validate:"required"`
	Nonce       uint64 `json:"nonce"`
	// Signature is base64: 32-byte public key plus 64-byte signature.
	Signature  string `json:"signature" validate:"required"`
	MessageURI string `json:"message_uri" validate:"required,max=2048"`
}

type payResponse struct {
	Digest   string        `json:"digest"`
	Fee      domain.Amount `json:"fee"`
	UserMint domain.Amount `json:"user_mint"`
	DevMint  domain.Amount `json:"dev_mint"`
}

func (h *MessageHandler) handlePay(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, ok := httputil.DecodeJSON[payRequest](w, r, h.logger, ctx)
	if !ok {
		return
	}
	if err := validate.Struct(req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "missing or invalid request fields"))
		return
	}

	contentHash, err := domain.ParseDigest(req.ContentHash)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	payer, err := domain.ParseAddress(req.Payer)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	sig, err := base64.StdEncoding.DecodeString(req.Signature)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "signature is not valid base64"))
		return
	}

	receipt, err := h.service.PayForMessage(ctx, signer.SignedMessage{
		ContentHash: contentHash,
		Payer:       payer,
		Nonce:       req.Nonce,
	}, sig, req.MessageURI)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, payResponse{
		Digest:   receipt.Digest.String(),
		Fee:      receipt.Fee,
		UserMint: receipt.UserMint,
		DevMint:  receipt.DevMint,
	})
}

type messageResponse struct {
	Digest      string        `json:"digest"`
	Status      string        `json:"status"`
	Payer       string        `json:"payer,omitempty"`
	MessageURI  string        `json:"message_uri,omitempty"`
	UserMint    domain.Amount `json:"user_mint,omitempty"`
	DevMint     domain.Amount `json:"dev_mint,omitempty"`
	PaidAt      string        `json:"paid_at,omitempty"`
	ProcessedAt string        `json:"processed_at,omitempty"`
}

func (h *MessageHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	digest, err := domain.ParseDigest(chi.URLParam(r, "digest"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	status := h.service.Status(digest)
	resp := messageResponse{Digest: digest.String(), Status: status.String()}
	if status != message.StatusUnseen {
		rec, err := h.service.Record(digest)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		resp.Payer = rec.Message.Payer.String()
		resp.MessageURI = rec.URI
		resp.UserMint = rec.UserMint
		resp.DevMint = rec.DevMint
		resp.PaidAt = rec.PaidAt.UTC().Format(timeFormat)
		if rec.ProcessedAt != nil {
			resp.ProcessedAt = rec.ProcessedAt.UTC().Format(timeFormat)
		}
	}

	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *MessageHandler) handleMarkProcessed(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(w, r)
	if !ok {
		return
	}
	digest, err := domain.ParseDigest(chi.URLParam(r, "digest"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := h.service.MarkProcessed(r.Context(), caller, digest); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"digest": digest.String(),
		"status": message.StatusProcessed.String(),
	})
}
