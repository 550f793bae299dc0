package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/cloudmarket/backend/pkg/middleware"
	"github.com/cloudmarket/backend/pkg/response"
	"github.com/cloudmarket/backend/pkg/telegram"
)

// TelegramLogin takes the widget's callback object as JSON and answers with
// the session in the body as well as the cookie.
func (h *Handlers) TelegramLogin(w http.ResponseWriter, r *http.Request) {
	var raw map[string]any
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		response.BadRequest(w, "Invalid JSON format")
		return
	}

	res, err := h.sessionService.LoginWithTelegram(r.Context(), telegram.LoginFields(raw))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	h.setSessionCookie(w, res.SessionToken, h.signer.TTL())
	response.WriteJSON(w, http.StatusOK, h.loginResponse(res))
}

// TelegramCallback serves the widget's redirect mode, where the signed fields
// arrive as query parameters. On success the browser is sent on to the
// storefront with the cookie set.
func (h *Handlers) TelegramCallback(w http.ResponseWriter, r *http.Request) {
	fields := make(map[string]string)
	for k, v := range r.URL.Query() {
		if len(v) > 0 {
			fields[k] = v[0]
		}
	}

	res, err := h.sessionService.LoginWithTelegram(r.Context(), fields)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	h.setSessionCookie(w, res.SessionToken, h.signer.TTL())
	target := h.config.Session.LoginRedirectURL
	if target == "" {
		response.WriteJSON(w, http.StatusOK, h.loginResponse(res))
		return
	}
	http.Redirect(w, r, target, http.StatusFound)
}

func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	p, _ := middleware.SessionFromContext(r.Context())

	profile, err := h.sessionService.Profile(r.Context(), p.AccountID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, map[string]any{
		"ok":      true,
		"account": profile,
		"session": p,
	})
}

// Logout only clears the cookie. Tokens are stateless and stay valid until
// they expire.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	h.clearSessionCookie(w)
	response.WriteJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
