// Package handler provides the HTTP endpoints the proxy serves itself: the
// admin AJAX actions, the admin session bootstrap, the MCP tools and health.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"pixelflow-proxy/internal/adapter"
	"pixelflow-proxy/internal/auth"
	"pixelflow-proxy/internal/model"
	"pixelflow-proxy/internal/settings"
)

// BasePath prefixes every route owned by the proxy. Everything else is
// forwarded to the origin.
const BasePath = "/pixelflow"

// AjaxPath is where the admin app posts its actions.
const AjaxPath = BasePath + "/admin-ajax"

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	settings   *settings.Service
	storefront adapter.Storefront
	nonces     *auth.Nonces
	adminKey   *auth.AdminKey
	logger     *slog.Logger
}

// New creates a Handler. The admin key may be nil, which closes the session
// and MCP endpoints.
func New(svc *settings.Service, storefront adapter.Storefront, nonces *auth.Nonces, adminKey *auth.AdminKey, logger *slog.Logger) *Handler {
	return &Handler{
		settings:   svc,
		storefront: storefront,
		nonces:     nonces,
		adminKey:   adminKey,
		logger:     logger,
	}
}

// RegisterRoutes registers all HTTP routes with the given ServeMux.
// Uses Go 1.22+ method routing patterns.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST "+AjaxPath, h.handleAdminAjax)
	mux.Handle("POST "+BasePath+"/admin/session", h.requireAdminKey(http.HandlerFunc(h.handleSession)))

	// MCP transport - JSON-RPC endpoint using official MCP SDK
	mux.Handle(BasePath+"/mcp", h.requireAdminKey(h.NewMCPHandler()))

	mux.HandleFunc("GET "+BasePath+"/health", h.handleHealth)
	mux.HandleFunc("GET "+BasePath+"/healthz", h.handleHealth)
}

// requireAdminKey rejects requests whose bearer token is not the admin key.
func (h *Handler) requireAdminKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.adminKey == nil {
			h.writeError(w, model.NewUnauthorizedError("admin access is not configured"))
			return
		}
		if err := h.adminKey.Check(auth.BearerToken(r)); err != nil {
			h.logger.Warn("admin key rejected", "path", r.URL.Path, "remote_addr", r.RemoteAddr)
			h.writeError(w, model.NewUnauthorizedError("invalid admin key"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// === Response Helpers ===

// writeJSON sends a JSON response with the given status code.
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// writeError sends an error response, extracting status/code from APIError if present.
// Uses errors.As() to unwrap error chains (e.g., fmt.Errorf wrapping).
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	apiErr := h.apiError(err)
	h.writeJSON(w, apiErr.StatusCode, errorResponse{
		Error: errorBody{
			Code:    apiErr.Code,
			Message: apiErr.Message,
		},
	})
}

// apiError finds the APIError in err's chain, or wraps err as an internal
// error and logs it. Internal details never reach the client.
func (h *Handler) apiError(err error) *model.APIError {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	h.logger.Error("internal error", slog.String("error", err.Error()))
	return model.NewInternalError(err)
}

// errorResponse is the JSON structure for error responses.
type errorResponse struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// MaxRequestBodySize limits request bodies to 1MB to prevent DoS.
const MaxRequestBodySize = 1 << 20 // 1MB
