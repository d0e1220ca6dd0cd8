package httptransport

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"govvault/internal/policy"
	"govvault/pkg/domain"
	dErrors "govvault/pkg/domain-errors"
	"govvault/pkg/platform/httputil"
)

// PolicyHandler exposes the shared policy document and its edit protocol.
type PolicyHandler struct {
	service *policy.Service
	logger  *slog.Logger
}

func NewPolicyHandler(service *policy.Service, logger *slog.Logger) *PolicyHandler {
	return &PolicyHandler{service: service, logger: logger}
}

func (h *PolicyHandler) Register(public, authed chi.Router) {
	public.Get("/v1/policy", h.handleGet)
	public.Get("/v1/policy/slice", h.handleSlice)
	public.Post("/v1/policy/preview", h.handlePreview)
	authed.Post("/v1/policy/edits", h.handleEdit)
}

type policyResponse struct {
	Text    string `json:"text"`
	Version uint64 `json:"version"`
}

func (h *PolicyHandler) handleGet(w http.ResponseWriter, _ *http.Request) {
	doc := h.service.Document()
	httputil.WriteJSON(w, http.StatusOK, policyResponse{Text: doc.Text, Version: doc.Version})
}

func (h *PolicyHandler) handleSlice(w http.ResponseWriter, r *http.Request) {
	start, err1 := strconv.Atoi(r.URL.Query().Get("start"))
	end, err2 := strconv.Atoi(r.URL.Query().Get("end"))
	if err1 != nil || err2 != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "start and end must be integers"))
		return
	}

	text, err := h.service.Slice(start, end)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"text": text})
}

type editRequest struct {
	Start       int    `json:"start" validate:"min=0"`
	End         int    `json:"end" validate:"min=0"`
	Replacement string `json:"replacement"`
}

type previewResponse struct {
	ChangedUnits uint64        `json:"changed_units"`
	Fee          domain.Amount `json:"fee"`
	UserMint     domain.Amount `json:"user_mint"`
	DevMint      domain.Amount `json:"dev_mint"`
}

// handlePreview prices an edit without executing it. The changed size is the
// larger of the removed range and the replacement, same as the edit itself.
func (h *PolicyHandler) handlePreview(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.DecodeJSON[editRequest](w, r, h.logger, r.Context())
	if !ok {
		return
	}
	if err := validate.Struct(req); err != nil || req.Start > req.End {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid edit range"))
		return
	}

	changed := req.End - req.Start
	if len(req.Replacement) > changed {
		changed = len(req.Replacement)
	}
	cost := policy.Cost(changed)
	httputil.WriteJSON(w, http.StatusOK, previewResponse{
		ChangedUnits: cost.ChangedUnits,
		Fee:          cost.Fee,
		UserMint:     cost.UserMint,
		DevMint:      cost.DevMint,
	})
}

func (h *PolicyHandler) handleEdit(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeJSON[editRequest](w, r, h.logger, r.Context())
	if !ok {
		return
	}
	if err := validate.Struct(req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid edit range"))
		return
	}

	version, err := h.service.Edit(r.Context(), caller, req.Start, req.End, []byte(req.Replacement))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, policyResponse{Text: version.Text, Version: version.Version})
}
