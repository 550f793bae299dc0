package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/cloudmarket/backend/pkg/auth"
	"github.com/cloudmarket/backend/pkg/config"
	"github.com/cloudmarket/backend/pkg/logger"
	mw "github.com/cloudmarket/backend/pkg/middleware"
	"github.com/cloudmarket/backend/pkg/request"
	"github.com/cloudmarket/backend/pkg/response"
	"github.com/cloudmarket/backend/services/items/internal/domain"
	"github.com/cloudmarket/backend/services/items/internal/service"
)

// idempotencyTTL is how long a processed Idempotency-Key is remembered.
const idempotencyTTL = 24 * time.Hour

type Handlers struct {
	itemService service.ItemService
	sessions    mw.SessionVerifier
	idempotency mw.IdempotencyStore
	config      *config.Config
}

func New(itemService service.ItemService, sessions mw.SessionVerifier, idempotency mw.IdempotencyStore, config *config.Config) *Handlers {
	return &Handlers{
		itemService: itemService,
		sessions:    sessions,
		idempotency: idempotency,
		config:      config,
	}
}

func (h *Handlers) Routes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(mw.RequireSession(h.sessions, h.config.Session.CookieName))
		r.Post("/claim", h.Claim)
		r.Get("/mine", h.Mine)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(mw.RequireServiceToken(h.config.Auth.JWTSecret, auth.ScopeMint))
		r.Use(mw.Idempotency(h.idempotency, idempotencyTTL))
		r.Post("/items/{id}/claim-code", h.IssueClaimCode)
		r.Post("/mint", h.Mint)
	})
}

func (h *Handlers) Claim(w http.ResponseWriter, r *http.Request) {
	var req domain.ClaimRequest
	if err := request.Decode(r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}

	p, _ := mw.SessionFromContext(r.Context())
	if err := h.itemService.RedeemClaimCode(r.Context(), req.Code, p.AccountID); err != nil {
		writeServiceError(w, r, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *Handlers) Mine(w http.ResponseWriter, r *http.Request) {
	p, _ := mw.SessionFromContext(r.Context())

	items, err := h.itemService.ListOwned(r.Context(), p.AccountID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, map[string]any{"ok": true, "items": items})
}

func (h *Handlers) IssueClaimCode(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid item ID")
		return
	}

	code, err := h.itemService.IssueClaimCode(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, domain.IssuedCode{ItemID: id, Code: code})
}

func (h *Handlers) Mint(w http.ResponseWriter, r *http.Request) {
	var req domain.MintRequest
	if err := request.Decode(r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}

	if c := mw.ClaimsFromContext(r.Context()); c != nil {
		logger.InfoContext(r.Context(), "Mint requested", "operator", c.Subject, "product", req.Product, "serials", req.Serials)
	}

	res, err := h.itemService.Mint(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, res)
}

func writeDecodeError(w http.ResponseWriter, err error) {
	var verr *request.ValidationError
	if errors.As(err, &verr) {
		response.WriteErrorWithDetails(w, http.StatusBadRequest, "Validation failed", response.CodeInvalidPayload, verr.Error())
		return
	}
	response.BadRequest(w, "Invalid JSON format")
}

func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidLength):
		response.WriteError(w, http.StatusBadRequest, "Code must be 10 digits", response.CodeInvalidLength)
	case errors.Is(err, service.ErrChecksumMismatch):
		response.WriteError(w, http.StatusBadRequest, "Check digit mismatch, please re-check the code", response.CodeChecksumMismatch)
	case errors.Is(err, service.ErrNotFound):
		response.NotFound(w, "Code not found. Check it and try again.")
	case errors.Is(err, service.ErrAlreadyClaimed):
		response.WriteError(w, http.StatusConflict, "Item already claimed", response.CodeAlreadyClaimed)
	case errors.Is(err, service.ErrProductNotFound):
		response.NotFound(w, "Product not found")
	case errors.Is(err, domain.ErrInvalidSerials):
		response.WriteErrorWithDetails(w, http.StatusBadRequest, "Invalid serials", response.CodeInvalidPayload, err.Error())
	default:
		logger.ErrorContext(r.Context(), "Request failed", "error", err, "path", r.URL.Path)
		response.InternalError(w, "Something went wrong")
	}
}
