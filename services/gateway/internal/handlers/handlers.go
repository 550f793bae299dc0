package handlers

import (
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/cloudmarket/backend/pkg/logger"
	"github.com/cloudmarket/backend/pkg/response"
	"github.com/cloudmarket/backend/services/gateway/internal/proxy"
)

type Handlers struct {
	authProxy  *proxy.ServiceProxy
	itemsProxy *proxy.ServiceProxy
}

func New(authProxy, itemsProxy *proxy.ServiceProxy) *Handlers {
	return &Handlers{
		authProxy:  authProxy,
		itemsProxy: itemsProxy,
	}
}

func (h *Handlers) Routes(r chi.Router) {
	r.Route("/v1", func(r chi.Router) {
		r.Handle("/auth/*", h.Forward(h.authProxy, "/v1/auth"))
		r.Handle("/items/*", h.Forward(h.itemsProxy, "/v1/items"))
	})
}

// Forward relays the request to p with prefix removed from the path.
// Upstream status, headers (Set-Cookie included) and body are passed back.
func (h *Handlers) Forward(p *proxy.ServiceProxy, prefix string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := strings.TrimPrefix(r.URL.Path, prefix)
		if path == "" {
			path = "/"
		}
		if r.URL.RawQuery != "" {
			path += "?" + r.URL.RawQuery
		}

		resp, err := p.ProxyRequest(r.Context(), r.Method, path, r.Body, r.Header)
		if err != nil {
			logger.ErrorContext(r.Context(), "Service proxy error", "error", err, "service", p.Name(), "path", path)
			response.WriteError(w, http.StatusBadGateway, "Service unavailable", "SERVICE_UNAVAILABLE")
			return
		}
		defer resp.Body.Close()

		proxy.StripHopHeaders(resp.Header)
		for key, values := range resp.Header {
			for _, value := range values {
				w.Header().Add(key, value)
			}
		}
		w.WriteHeader(resp.StatusCode)

		if _, err := io.Copy(w, resp.Body); err != nil {
			logger.ErrorContext(r.Context(), "Failed to copy response body", "error", err)
		}
	})
}
