package handlers

import (
	"net/http"

	"github.com/cloudmarket/backend/pkg/request"
	"github.com/cloudmarket/backend/pkg/response"
	"github.com/cloudmarket/backend/services/auth/internal/domain"
)

// RequestOTP accepts as soon as the challenge is stored. Delivery problems
// never reach the caller.
func (h *Handlers) RequestOTP(w http.ResponseWriter, r *http.Request) {
	var req domain.OTPRequest
	if err := request.Decode(r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}

	if err := h.otpService.RequestOTP(r.Context(), req.Phone); err != nil {
		writeServiceError(w, r, err)
		return
	}

	response.WriteJSON(w, http.StatusAccepted, map[string]bool{"ok": true})
}

func (h *Handlers) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req domain.OTPVerify
	if err := request.Decode(r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}

	res, err := h.otpService.VerifyOTP(r.Context(), req.Phone, req.Code)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	// The code was right but there is no account to log into.
	if res.Account == nil {
		response.WriteError(w, http.StatusNotFound, "No account for this phone", response.CodeAccountNotFound)
		return
	}

	h.setSessionCookie(w, res.SessionToken, h.signer.TTL())
	response.WriteJSON(w, http.StatusOK, h.loginResponse(res))
}
