package handler

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/crypto/bcrypt"

	"pixelflow-proxy/internal/adapter"
	"pixelflow-proxy/internal/auth"
	"pixelflow-proxy/internal/model"
	"pixelflow-proxy/internal/settings"
	"pixelflow-proxy/internal/store"
)

const (
	testSite     = "wp_test"
	testSecret   = "test-nonce-secret"
	testAdminKey = "admin-key"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

type testEnv struct {
	h      *Handler
	mux    *http.ServeMux
	store  *store.Memory
	svc    *settings.Service
	nonces *auth.Nonces
}

func testHandler(t *testing.T, mock *adapter.Mock) *testEnv {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(testAdminKey), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash admin key: %v", err)
	}
	mem := store.NewMemory()
	svc := settings.NewService(mem, testSite, settings.WithLogger(quiet))
	nonces := auth.NewNonces(testSecret, testSite)
	h := New(svc, mock, nonces, auth.NewAdminKey(string(hash)), quiet)
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	return &testEnv{h: h, mux: mux, store: mem, svc: svc, nonces: nonces}
}

func (e *testEnv) nonce(t *testing.T, caps ...string) string {
	t.Helper()
	n, err := e.nonces.Issue("tester", caps...)
	if err != nil {
		t.Fatalf("Issue() error: %v", err)
	}
	return n
}

// postForm sends an urlencoded admin ajax request.
func (e *testEnv) postForm(form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", AjaxPath, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	e.mux.ServeHTTP(w, req)
	return w
}

type ajaxResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
}

func decodeAjax(t *testing.T, w *httptest.ResponseRecorder) ajaxResponse {
	t.Helper()
	var resp ajaxResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v\nBody: %s", err, w.Body.String())
	}
	return resp
}

func ajaxMessage(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var data messageData
	if err := json.Unmarshal(decodeAjax(t, w).Data, &data); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	return data.Message
}

const validParams = `{
	"pixelIds": ["111"],
	"siteExternalId": "site-1",
	"apiKey": "key-1",
	"currency": "EUR",
	"trackingUrls": [],
	"apiEndpoint": "https://api.example.com",
	"cdnUrl": "https://cdn.example.com/pf.js",
	"enableMetaPixel": true,
	"blockingRules": []
}`

func encodeParams(s string) string {
	return base64.StdEncoding.EncodeToString([]byte(s))
}

func TestHandleHealth(t *testing.T) {
	env := testHandler(t, &adapter.Mock{})

	for _, path := range []string{"/pixelflow/health", "/pixelflow/healthz"} {
		req := httptest.NewRequest("GET", path, nil)
		w := httptest.NewRecorder()
		env.mux.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("%s status = %d, want %d", path, w.Code, http.StatusOK)
		}
		var resp healthResponse
		json.NewDecoder(w.Body).Decode(&resp)
		if resp.Status != "ok" {
			t.Errorf("%s status = %s, want ok", path, resp.Status)
		}
	}
}

func TestAdminAjaxRejectsBeforeReading(t *testing.T) {
	tests := []struct {
		name       string
		nonce      func(e *testEnv) string
		wantStatus int
		wantBody   string
	}{
		{
			name:       "missing nonce",
			nonce:      func(*testEnv) string { return "" },
			wantStatus: http.StatusForbidden,
			wantBody:   "-1",
		},
		{
			name:       "forged nonce",
			nonce:      func(*testEnv) string { return "eyJhbGciOiJIUzI1NiJ9.e30.c2ln" },
			wantStatus: http.StatusForbidden,
			wantBody:   "-1",
		},
		{
			name: "nonce for another site",
			nonce: func(*testEnv) string {
				n, _ := auth.NewNonces(testSecret, "wp_other").Issue("x", auth.CapManageOptions)
				return n
			},
			wantStatus: http.StatusForbidden,
			wantBody:   "-1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := testHandler(t, &adapter.Mock{})
			w := env.postForm(url.Values{
				"action":                   {ActionSaveSettings},
				"nonce":                    {tt.nonce(env)},
				"general_options[enabled]": {"1"},
			})

			if w.Code != tt.wantStatus {
				t.Errorf("Status = %d, want %d", w.Code, tt.wantStatus)
			}
			if got := w.Body.String(); got != tt.wantBody {
				t.Errorf("Body = %q, want %q", got, tt.wantBody)
			}
			if _, err := env.store.Get(context.Background(), testSite, model.OptionGeneral); !errors.Is(err, store.ErrNotFound) {
				t.Errorf("general options written despite rejection: err = %v", err)
			}
		})
	}
}

func TestAdminAjaxRequiresCapability(t *testing.T) {
	env := testHandler(t, &adapter.Mock{})
	w := env.postForm(url.Values{
		"action": {ActionGetSettings},
		"nonce":  {env.nonce(t)},
	})

	if w.Code != http.StatusForbidden {
		t.Errorf("Status = %d, want %d", w.Code, http.StatusForbidden)
	}
	resp := decodeAjax(t, w)
	if resp.Success {
		t.Error("Success = true, want false")
	}
	if msg := ajaxMessage(t, w); msg != msgUnauthorized {
		t.Errorf("message = %q, want %q", msg, msgUnauthorized)
	}
}

func TestAdminAjaxUnknownAction(t *testing.T) {
	env := testHandler(t, &adapter.Mock{})
	w := env.postForm(url.Values{
		"action": {"pixelflow_drop_tables"},
		"nonce":  {env.nonce(t, auth.CapManageOptions)},
	})

	if w.Code != http.StatusBadRequest {
		t.Errorf("Status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	if w.Body.String() != "0" {
		t.Errorf("Body = %q, want 0", w.Body.String())
	}
}

func TestAdminAjaxGetSettings(t *testing.T) {
	env := testHandler(t, &adapter.Mock{
		WooCommerceActiveFunc: func(ctx context.Context) (bool, error) { return false, nil },
	})

	w := env.postForm(url.Values{
		"action": {ActionGetSettings},
		"nonce":  {env.nonce(t, auth.CapManageOptions)},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d, want %d\nBody: %s", w.Code, http.StatusOK, w.Body.String())
	}

	resp := decodeAjax(t, w)
	if !resp.Success {
		t.Fatal("Success = false, want true")
	}
	var data map[string]any
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if data["script_params"] != "" {
		t.Errorf("script_params = %v, want empty string", data["script_params"])
	}
	if data["is_woocommerce_active"] != false {
		t.Errorf("is_woocommerce_active = %v, want false", data["is_woocommerce_active"])
	}
	for _, key := range []string{"general_options", "class_options", "debug_options"} {
		if _, ok := data[key]; !ok {
			t.Errorf("data missing %s", key)
		}
	}
}

func TestAdminAjaxSaveSettings(t *testing.T) {
	env := testHandler(t, &adapter.Mock{})
	w := env.postForm(url.Values{
		"action":                                    {ActionSaveSettings},
		"nonce":                                     {env.nonce(t, auth.CapManageOptions)},
		"general_options[enabled]":                  {"1"},
		"general_options[woo_enabled]":              {"on"},
		"general_options[excluded_user_roles]":      {"editor, author"},
		"class_options[woo_class_cart_item]":        {"0"},
		"class_options[woo_class_cart_price]":       {"1"},
		"class_options[not_a_key]":                  {"1"},
		"debug_options[woo_class_checkout_total]":   {"1"},
		"unrelated[woo_class_checkout_place_order]": {"1"},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d, want %d\nBody: %s", w.Code, http.StatusOK, w.Body.String())
	}

	var data saveSettingsData
	if err := json.Unmarshal(decodeAjax(t, w).Data, &data); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if data.Message != "Settings saved successfully" {
		t.Errorf("message = %q", data.Message)
	}
	wantGeneral := model.GeneralOptions{Enabled: 1, WooEnabled: 1, ExcludedUserRoles: []string{"editor", "author"}}
	if diff := cmp.Diff(wantGeneral, data.General); diff != "" {
		t.Errorf("general_options mismatch (-want +got):\n%s", diff)
	}
	if data.Classes[model.KeyCartItem] != 0 || data.Classes[model.KeyCartPrice] != 1 {
		t.Errorf("class_options = %v", data.Classes)
	}
	if _, ok := data.Classes["not_a_key"]; ok {
		t.Error("unknown class key kept")
	}
	if _, ok := data.Classes[model.KeyCheckoutPlaceOrder]; ok || !data.Classes.Enabled(model.KeyCheckoutPlaceOrder) {
		t.Errorf("unposted class key should stay absent and enabled, got %v", data.Classes)
	}
	if !data.Debug.Enabled(model.KeyCheckoutTotal) || data.Debug.Enabled(model.KeyCheckoutPlaceOrder) {
		t.Errorf("debug_options = %v", data.Debug)
	}

	snap, err := env.svc.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot() error: %v", err)
	}
	if !snap.General.WooIntegrationEnabled() {
		t.Error("saved settings not visible in snapshot")
	}
}

func TestAdminAjaxSaveSettingsMultipart(t *testing.T) {
	env := testHandler(t, &adapter.Mock{})

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	mw.WriteField("action", ActionSaveSettings)
	mw.WriteField("nonce", env.nonce(t, auth.CapManageOptions))
	mw.WriteField("general_options[debug_enabled]", "1")
	mw.Close()

	req := httptest.NewRequest("POST", AjaxPath, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	env.mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d, want %d\nBody: %s", w.Code, http.StatusOK, w.Body.String())
	}
	snap, _ := env.svc.Snapshot(context.Background())
	if !snap.General.Debug() {
		t.Error("debug_enabled not saved from multipart body")
	}
}

func TestAdminAjaxSaveScriptParams(t *testing.T) {
	tests := []struct {
		name        string
		params      string
		wantStatus  int
		wantMessage string
	}{
		{
			name:        "valid",
			params:      encodeParams(validParams),
			wantStatus:  http.StatusOK,
			wantMessage: "Script parameters saved successfully",
		},
		{
			name:        "not base64",
			params:      "not base64!",
			wantStatus:  http.StatusBadRequest,
			wantMessage: "Invalid base64 params payload",
		},
		{
			name:        "empty",
			params:      "",
			wantStatus:  http.StatusBadRequest,
			wantMessage: "Invalid base64 params payload",
		},
		{
			name:        "not JSON",
			params:      encodeParams("{nope"),
			wantStatus:  http.StatusBadRequest,
			wantMessage: "Invalid JSON payload",
		},
		{
			name:        "missing key",
			params:      encodeParams(strings.Replace(validParams, `"currency": "EUR",`, "", 1)),
			wantStatus:  http.StatusBadRequest,
			wantMessage: "Missing required parameter: currency",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := testHandler(t, &adapter.Mock{})
			w := env.postForm(url.Values{
				"action": {ActionSaveScriptParams},
				"nonce":  {env.nonce(t, auth.CapManageOptions)},
				"params": {tt.params},
			})

			if w.Code != tt.wantStatus {
				t.Errorf("Status = %d, want %d\nBody: %s", w.Code, tt.wantStatus, w.Body.String())
			}
			if resp := decodeAjax(t, w); resp.Success != (tt.wantStatus == http.StatusOK) {
				t.Errorf("Success = %v", resp.Success)
			}
			if msg := ajaxMessage(t, w); msg != tt.wantMessage {
				t.Errorf("message = %q, want %q", msg, tt.wantMessage)
			}

			snap, _ := env.svc.Snapshot(context.Background())
			if saved := snap.Params.Complete(); saved != (tt.wantStatus == http.StatusOK) {
				t.Errorf("params saved = %v", saved)
			}
		})
	}
}

func TestAdminAjaxRemoveScriptParams(t *testing.T) {
	env := testHandler(t, &adapter.Mock{})
	ctx := context.Background()
	if _, err := env.svc.SaveScriptParams(ctx, encodeParams(validParams)); err != nil {
		t.Fatalf("SaveScriptParams() error: %v", err)
	}

	w := env.postForm(url.Values{
		"action": {ActionRemoveScriptParams},
		"nonce":  {env.nonce(t, auth.CapManageOptions)},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d, want %d", w.Code, http.StatusOK)
	}
	if msg := ajaxMessage(t, w); msg != "Script code and parameters removed successfully" {
		t.Errorf("message = %q", msg)
	}
	snap, _ := env.svc.Snapshot(ctx)
	if snap.Params != nil {
		t.Error("params still present after remove")
	}
}

func TestAdminAjaxScriptCode(t *testing.T) {
	env := testHandler(t, &adapter.Mock{})
	code := `<script data-meta-pixel-ids='["7"]' data-site-id="s" data-api-key="k" src="https://cdn.example.com/a.js?ver=1"></script>`

	w := env.postForm(url.Values{
		"action":      {ActionSaveScriptCode},
		"nonce":       {env.nonce(t, auth.CapManageOptions)},
		"script_code": {code},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d, want %d\nBody: %s", w.Code, http.StatusOK, w.Body.String())
	}
	var data scriptCodeData
	if err := json.Unmarshal(decodeAjax(t, w).Data, &data); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if data.ScriptParams == nil || data.ScriptParams.CDNURL != "https://cdn.example.com/a.js" {
		t.Errorf("script_params = %+v", data.ScriptParams)
	}

	w = env.postForm(url.Values{
		"action":      {ActionSaveScriptCode},
		"nonce":       {env.nonce(t, auth.CapManageOptions)},
		"script_code": {"just text"},
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("invalid code status = %d, want %d", w.Code, http.StatusBadRequest)
	}

	w = env.postForm(url.Values{
		"action": {ActionRemoveScriptCode},
		"nonce":  {env.nonce(t, auth.CapManageOptions)},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("remove status = %d, want %d", w.Code, http.StatusOK)
	}
	if code, _ := env.svc.ScriptCode(context.Background()); code != "" {
		t.Errorf("script code after remove = %q", code)
	}
}

func TestSession(t *testing.T) {
	env := testHandler(t, &adapter.Mock{})

	t.Run("without key", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/pixelflow/admin/session", nil)
		w := httptest.NewRecorder()
		env.mux.ServeHTTP(w, req)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("Status = %d, want %d", w.Code, http.StatusUnauthorized)
		}
	})

	t.Run("wrong key", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/pixelflow/admin/session", nil)
		req.Header.Set("Authorization", "Bearer nope")
		w := httptest.NewRecorder()
		env.mux.ServeHTTP(w, req)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("Status = %d, want %d", w.Code, http.StatusUnauthorized)
		}
	})

	t.Run("admin key", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/pixelflow/admin/session", nil)
		req.Header.Set("Authorization", "Bearer "+testAdminKey)
		w := httptest.NewRecorder()
		env.mux.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("Status = %d, want %d\nBody: %s", w.Code, http.StatusOK, w.Body.String())
		}

		var resp struct {
			Nonce               string `json:"nonce"`
			AjaxURL             string `json:"ajax_url"`
			SiteID              string `json:"site_id"`
			IsWooCommerceActive bool   `json:"is_woocommerce_active"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if resp.AjaxURL != AjaxPath {
			t.Errorf("ajax_url = %q, want %q", resp.AjaxURL, AjaxPath)
		}
		if resp.SiteID != testSite {
			t.Errorf("site_id = %q, want %q", resp.SiteID, testSite)
		}
		if !resp.IsWooCommerceActive {
			t.Error("is_woocommerce_active = false, want true")
		}
		claims, err := env.nonces.Verify(resp.Nonce)
		if err != nil {
			t.Fatalf("Verify(nonce) error: %v", err)
		}
		if !claims.Can(auth.CapManageOptions) {
			t.Error("session nonce lacks manage_options")
		}
	})
}

func TestSessionWithoutAdminKey(t *testing.T) {
	mem := store.NewMemory()
	h := New(settings.NewService(mem, testSite), &adapter.Mock{}, auth.NewNonces(testSecret, testSite), nil, quiet)
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	req := httptest.NewRequest("POST", "/pixelflow/admin/session", nil)
	req.Header.Set("Authorization", "Bearer anything")
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("Status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestFormMap(t *testing.T) {
	form := url.Values{
		"general_options[enabled]":     {"0", "1"},
		"general_options[woo_enabled]": {"1"},
		"general_options[]":            {"x"},
		"general_options[a][b]":        {"x"},
		"general_options":              {"x"},
		"class_options[enabled]":       {"1"},
	}
	want := map[string]string{"enabled": "1", "woo_enabled": "1"}
	if diff := cmp.Diff(want, formMap(form, "general_options")); diff != "" {
		t.Errorf("formMap() mismatch (-want +got):\n%s", diff)
	}
}

func TestErrorResponses(t *testing.T) {
	env := testHandler(t, &adapter.Mock{})

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"validation", model.NewValidationError("field", "bad"), 400, "VALIDATION_ERROR"},
		{"unauthorized", model.NewUnauthorizedError("no"), 401, "UNAUTHORIZED"},
		{"upstream", model.NewUpstreamError("woocommerce", io.EOF), 502, "UPSTREAM_ERROR"},
		{"plain error", io.ErrUnexpectedEOF, 500, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			env.h.writeError(w, tt.err)
			if w.Code != tt.wantStatus {
				t.Errorf("Status = %d, want %d", w.Code, tt.wantStatus)
			}
			var resp errorResponse
			json.Unmarshal(w.Body.Bytes(), &resp)
			if resp.Error.Code != tt.wantCode {
				t.Errorf("Code = %s, want %s", resp.Error.Code, tt.wantCode)
			}
		})
	}
}
