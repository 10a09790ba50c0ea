package handler

import (
	"net/http"

	"pixelflow-proxy/internal/auth"
)

// adminSubject is the nonce subject for sessions opened with the admin key.
const adminSubject = "admin"

// sessionResponse is the settings bootstrap the admin app reads on load.
type sessionResponse struct {
	*settingsData
	Nonce   string `json:"nonce"`
	AjaxURL string `json:"ajax_url"`
	SiteID  string `json:"site_id"`
}

// handleSession opens an admin session: it issues a settings nonce and
// returns it with the current settings.
// POST /pixelflow/admin/session
func (h *Handler) handleSession(w http.ResponseWriter, r *http.Request) {
	nonce, err := h.nonces.Issue(adminSubject, auth.CapManageOptions)
	if err != nil {
		h.writeError(w, err)
		return
	}

	data, err := h.loadSettings(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, sessionResponse{
		settingsData: data,
		Nonce:        nonce,
		AjaxURL:      AjaxPath,
		SiteID:       h.settings.Site(),
	})
}

// handleHealth returns a simple health check response.
// GET /pixelflow/health, GET /pixelflow/healthz
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}

type healthResponse struct {
	Status string `json:"status"`
}
