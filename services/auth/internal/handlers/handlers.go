package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cloudmarket/backend/pkg/config"
	"github.com/cloudmarket/backend/pkg/logger"
	mw "github.com/cloudmarket/backend/pkg/middleware"
	"github.com/cloudmarket/backend/pkg/request"
	"github.com/cloudmarket/backend/pkg/response"
	"github.com/cloudmarket/backend/pkg/session"
	"github.com/cloudmarket/backend/services/auth/internal/domain"
	"github.com/cloudmarket/backend/services/auth/internal/repository"
	"github.com/cloudmarket/backend/services/auth/internal/service"
)

type Handlers struct {
	otpService     service.OTPService
	sessionService service.SessionService
	rateLimitRepo  repository.RateLimitRepository
	signer         *session.Signer
	config         *config.Config
}

func New(
	otpService service.OTPService,
	sessionService service.SessionService,
	rateLimitRepo repository.RateLimitRepository,
	signer *session.Signer,
	config *config.Config,
) *Handlers {
	return &Handlers{
		otpService:     otpService,
		sessionService: sessionService,
		rateLimitRepo:  rateLimitRepo,
		signer:         signer,
		config:         config,
	}
}

// Routes mounts the auth API on r.
func (h *Handlers) Routes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.IPRateLimit("otp"))
		r.Post("/otp/request", h.RequestOTP)
		r.Post("/otp/verify", h.VerifyOTP)
	})

	r.Group(func(r chi.Router) {
		r.Use(h.IPRateLimit("telegram"))
		r.Post("/telegram/login", h.TelegramLogin)
		r.Get("/telegram/callback", h.TelegramCallback)
	})

	r.With(mw.RequireSession(h.signer, h.config.Session.CookieName)).Get("/me", h.Me)
	r.Post("/logout", h.Logout)
}

// IPRateLimit throttles unauthenticated endpoints per client address. It
// fails open when the limiter store is unavailable.
func (h *Handlers) IPRateLimit(scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			limit := h.config.OTP.IPLimit
			if limit <= 0 {
				next.ServeHTTP(w, r)
				return
			}

			key := scope + ":ip:" + mw.ClientIP(r)
			allowed, err := h.rateLimitRepo.CheckRateLimit(r.Context(), key, limit, h.config.OTP.LimitWindow)
			if err != nil {
				logger.WarnContext(r.Context(), "IP rate limit check failed", "error", err, "scope", scope)
			} else if !allowed {
				response.RateLimit(w, "Too many requests. Please try again later.")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func (h *Handlers) setSessionCookie(w http.ResponseWriter, token string, ttl time.Duration) {
	c := &http.Cookie{
		Name:     h.config.Session.CookieName,
		Value:    token,
		Path:     "/",
		Domain:   h.config.Session.CookieDomain,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteNoneMode,
	}
	if ttl > 0 {
		c.MaxAge = int(ttl.Seconds())
	}
	http.SetCookie(w, c)
}

func (h *Handlers) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.config.Session.CookieName,
		Value:    "",
		Path:     "/",
		Domain:   h.config.Session.CookieDomain,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteNoneMode,
		MaxAge:   -1,
	})
}

func (h *Handlers) loginResponse(res *domain.LoginResult) domain.LoginResponse {
	return domain.LoginResponse{
		OK:           true,
		SessionToken: res.SessionToken,
		ExpiresIn:    int64(h.signer.TTL().Seconds()),
		Account:      res.Account,
	}
}

func writeDecodeError(w http.ResponseWriter, err error) {
	var verr *request.ValidationError
	switch {
	case errors.As(err, &verr):
		response.WriteErrorWithDetails(w, http.StatusBadRequest, "Validation failed", response.CodeInvalidPayload, verr.Error())
	case errors.Is(err, request.ErrEmptyBody):
		response.BadRequest(w, "Request body is required")
	default:
		response.BadRequest(w, "Invalid JSON format")
	}
}

// writeServiceError maps service errors onto HTTP replies. Anything it does
// not recognise is logged and reported as a 500 without detail.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidPhone):
		response.WriteError(w, http.StatusBadRequest, "Invalid phone number", response.CodeInvalidPayload)
	case errors.Is(err, service.ErrInvalidPayload):
		response.BadRequest(w, "Phone and code are required")
	case errors.Is(err, service.ErrRateLimited):
		response.RateLimit(w, "Too many attempts. Please try again later.")
	case errors.Is(err, service.ErrWrongCode):
		response.WriteError(w, http.StatusUnauthorized, "Wrong code", response.CodeWrongCode)
	case errors.Is(err, service.ErrCodeExpired):
		response.WriteError(w, http.StatusGone, "Code expired", response.CodeCodeExpired)
	case errors.Is(err, service.ErrCodeNotFound):
		response.WriteError(w, http.StatusNotFound, "No active code for this phone", response.CodeCodeNotFound)
	case errors.Is(err, service.ErrInvalidTelegramLogin):
		response.WriteError(w, http.StatusUnauthorized, "Invalid Telegram login", response.CodeInvalidToken)
	case errors.Is(err, service.ErrTelegramLoginExpired):
		response.WriteError(w, http.StatusUnauthorized, "Telegram login expired", response.CodeInvalidToken)
	case errors.Is(err, service.ErrAccountNotFound):
		response.WriteError(w, http.StatusNotFound, "Account not found", response.CodeAccountNotFound)
	default:
		logger.ErrorContext(r.Context(), "Request failed", "error", err, "path", r.URL.Path)
		response.InternalError(w, "Something went wrong")
	}
}
