package handler

import (
	"context"
	"errors"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"pixelflow-proxy/internal/auth"
	"pixelflow-proxy/internal/model"
)

// Admin AJAX action names.
const (
	ActionGetSettings        = "pixelflow_get_settings"
	ActionSaveSettings       = "pixelflow_save_settings"
	ActionSaveScriptParams   = "pixelflow_save_script_params"
	ActionRemoveScriptParams = "pixelflow_remove_script_params"
	ActionSaveScriptCode     = "pixelflow_save_script_code"
	ActionRemoveScriptCode   = "pixelflow_remove_script_code"
)

// msgUnauthorized is returned when a valid nonce lacks the capability.
const msgUnauthorized = "Unauthorized access"

// ajaxAction runs one admin action and returns the success payload.
type ajaxAction func(ctx context.Context, form url.Values) (any, error)

func (h *Handler) ajaxActions() map[string]ajaxAction {
	return map[string]ajaxAction{
		ActionGetSettings:        h.ajaxGetSettings,
		ActionSaveSettings:       h.ajaxSaveSettings,
		ActionSaveScriptParams:   h.ajaxSaveScriptParams,
		ActionRemoveScriptParams: h.ajaxRemoveScriptParams,
		ActionSaveScriptCode:     h.ajaxSaveScriptCode,
		ActionRemoveScriptCode:   h.ajaxRemoveScriptCode,
	}
}

// wpResponse is the {"success":…,"data":…} envelope the admin app expects.
type wpResponse struct {
	Success bool `json:"success"`
	Data    any  `json:"data,omitempty"`
}

type messageData struct {
	Message string `json:"message"`
}

// handleAdminAjax dispatches an admin action.
// POST /pixelflow/admin-ajax
//
// The nonce is verified before the capability, and both before any settings
// are read or written. A bad nonce answers 403 with "-1" like
// check_ajax_referer; an unknown action answers 400 with "0".
func (h *Handler) handleAdminAjax(w http.ResponseWriter, r *http.Request) {
	form, err := parseForm(r)
	if err != nil {
		h.writeAjaxError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	action, ok := h.ajaxActions()[form.Get("action")]
	if !ok {
		writePlain(w, http.StatusBadRequest, "0")
		return
	}

	claims, err := h.nonces.Verify(form.Get("nonce"))
	if err != nil {
		h.logger.Warn("admin ajax nonce rejected",
			"action", form.Get("action"),
			"expired", errors.Is(err, auth.ErrExpiredNonce),
		)
		writePlain(w, http.StatusForbidden, "-1")
		return
	}
	if !claims.Can(auth.CapManageOptions) {
		h.writeAjaxError(w, http.StatusForbidden, msgUnauthorized)
		return
	}

	data, err := action(r.Context(), form)
	if err != nil {
		apiErr := h.apiError(err)
		h.writeAjaxError(w, apiErr.StatusCode, apiErr.Message)
		return
	}
	h.logger.Debug("admin ajax", "action", form.Get("action"), "subject", claims.Subject)
	h.writeJSON(w, http.StatusOK, wpResponse{Success: true, Data: data})
}

func (h *Handler) writeAjaxError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, wpResponse{Success: false, Data: messageData{Message: message}})
}

func writePlain(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

// parseForm reads an urlencoded or multipart body, capped at MaxRequestBodySize.
func parseForm(r *http.Request) (url.Values, error) {
	r.Body = http.MaxBytesReader(nil, r.Body, MaxRequestBodySize)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		if err := r.ParseMultipartForm(MaxRequestBodySize); err != nil {
			return nil, err
		}
		return r.PostForm, nil
	}
	if err := r.ParseForm(); err != nil {
		return nil, err
	}
	return r.PostForm, nil
}

// formMap collects bracketed fields such as general_options[enabled] into
// a map keyed by the bracket contents.
func formMap(form url.Values, name string) map[string]string {
	prefix := name + "["
	out := make(map[string]string)
	for key, values := range form {
		if !strings.HasPrefix(key, prefix) || !strings.HasSuffix(key, "]") || len(values) == 0 {
			continue
		}
		field := key[len(prefix) : len(key)-1]
		if field == "" || strings.ContainsAny(field, "[]") {
			continue
		}
		out[field] = values[len(values)-1]
	}
	return out
}

// === Actions ===

// settingsData is the payload of get_settings and of the session bootstrap.
type settingsData struct {
	General             model.GeneralOptions `json:"general_options"`
	Classes             model.ClassOptions   `json:"class_options"`
	Debug               model.DebugOptions   `json:"debug_options"`
	ScriptParams        any                  `json:"script_params"`
	ScriptCode          string               `json:"script_code,omitempty"`
	IsWooCommerceActive bool                 `json:"is_woocommerce_active"`
}

// loadSettings reads the current records straight from the store so an
// admin always sees the latest save, even one made on another replica.
func (h *Handler) loadSettings(ctx context.Context) (*settingsData, error) {
	snap, err := h.settings.Reload(ctx)
	if err != nil {
		return nil, err
	}
	code, err := h.settings.ScriptCode(ctx)
	if err != nil {
		return nil, err
	}

	data := &settingsData{
		General:      snap.General,
		Classes:      snap.Classes,
		Debug:        snap.Debug,
		ScriptParams: "",
		ScriptCode:   code,
	}
	if snap.Params != nil {
		data.ScriptParams = snap.Params
	}

	active, err := h.storefront.WooCommerceActive(ctx)
	if err != nil {
		h.logger.Warn("woocommerce probe failed", "error", err)
	}
	data.IsWooCommerceActive = active
	return data, nil
}

func (h *Handler) ajaxGetSettings(ctx context.Context, _ url.Values) (any, error) {
	return h.loadSettings(ctx)
}

type saveSettingsData struct {
	Message string               `json:"message"`
	General model.GeneralOptions `json:"general_options"`
	Classes model.ClassOptions   `json:"class_options"`
	Debug   model.DebugOptions   `json:"debug_options"`
}

func (h *Handler) ajaxSaveSettings(ctx context.Context, form url.Values) (any, error) {
	saved, err := h.settings.SaveSettings(ctx,
		formMap(form, "general_options"),
		formMap(form, "class_options"),
		formMap(form, "debug_options"),
	)
	if err != nil {
		return nil, err
	}
	return saveSettingsData{
		Message: "Settings saved successfully",
		General: saved.General,
		Classes: saved.Classes,
		Debug:   saved.Debug,
	}, nil
}

func (h *Handler) ajaxSaveScriptParams(ctx context.Context, form url.Values) (any, error) {
	if _, err := h.settings.SaveScriptParams(ctx, form.Get("params")); err != nil {
		return nil, err
	}
	return messageData{Message: "Script parameters saved successfully"}, nil
}

func (h *Handler) ajaxRemoveScriptParams(ctx context.Context, _ url.Values) (any, error) {
	if err := h.settings.RemoveScriptParams(ctx); err != nil {
		return nil, err
	}
	return messageData{Message: "Script code and parameters removed successfully"}, nil
}

type scriptCodeData struct {
	Message      string              `json:"message"`
	ScriptParams *model.ScriptParams `json:"script_params"`
}

func (h *Handler) ajaxSaveScriptCode(ctx context.Context, form url.Values) (any, error) {
	params, err := h.settings.SaveScriptCode(ctx, form.Get("script_code"))
	if err != nil {
		return nil, err
	}
	return scriptCodeData{Message: "Script code saved successfully", ScriptParams: params}, nil
}

func (h *Handler) ajaxRemoveScriptCode(ctx context.Context, _ url.Values) (any, error) {
	if err := h.settings.RemoveScriptCode(ctx); err != nil {
		return nil, err
	}
	return messageData{Message: "Script code removed successfully"}, nil
}
