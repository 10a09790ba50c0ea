package settings

import (
	"encoding/base64"
	"encoding/json"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"pixelflow-proxy/internal/model"
	"pixelflow-proxy/internal/sanitize"
)

// SanitizeGeneral turns posted general options into stored form. The five
// toggles are always present as 0 or 1; excluded_user_roles only when posted.
func SanitizeGeneral(input map[string]string) model.GeneralOptions {
	out := model.GeneralOptions{
		Enabled:             flag(input, "enabled"),
		WooEnabled:          flag(input, "woo_enabled"),
		WooPurchaseTracking: flag(input, "woo_purchase_tracking"),
		DebugEnabled:        flag(input, "debug_enabled"),
		RemoveOnUninstall:   flag(input, "remove_on_uninstall"),
	}
	if raw, ok := input["excluded_user_roles"]; ok {
		out.ExcludedUserRoles = []string{}
		for _, role := range strings.Split(raw, ",") {
			if role = sanitize.Text(role); role != "" {
				out.ExcludedUserRoles = append(out.ExcludedUserRoles, role)
			}
		}
	}
	return out
}

// SanitizeClasses turns posted class toggles into stored form. Known keys
// that were posted become 0 or 1; unposted keys stay absent, so their
// Enabled default applies. Unknown keys are dropped.
func SanitizeClasses(input map[string]string) map[model.ClassKey]int {
	out := make(map[model.ClassKey]int, len(input))
	for _, key := range model.ClassKeys {
		if _, ok := input[string(key)]; ok {
			out[key] = flag(input, string(key))
		}
	}
	return out
}

func flag(input map[string]string, key string) int {
	if sanitize.Truthy(sanitize.Text(input[key])) {
		return 1
	}
	return 0
}

// requiredParams must all be present (and not null) in a params payload.
var requiredParams = []string{
	"pixelIds",
	"siteExternalId",
	"apiKey",
	"currency",
	"trackingUrls",
	"apiEndpoint",
	"cdnUrl",
	"enableMetaPixel",
	"blockingRules",
}

var base64Re = regexp.MustCompile(`^[A-Za-z0-9/+=]+$`)

// DecodeScriptParams validates and sanitizes a base64 JSON params payload.
func DecodeScriptParams(encoded string) (*model.ScriptParams, error) {
	if encoded == "" || !base64Re.MatchString(encoded) {
		return nil, model.NewPayloadError("Invalid base64 params payload")
	}
	raw, err := base64.StdEncoding.Strict().DecodeString(encoded)
	if err != nil {
		return nil, model.NewPayloadError("Invalid base64 params payload")
	}

	var params map[string]any
	if err := json.Unmarshal(raw, &params); err != nil || params == nil {
		return nil, model.NewPayloadError("Invalid JSON payload")
	}
	return SanitizeScriptParams(params)
}

// SanitizeScriptParams checks required keys and sanitizes every field of a
// decoded params object.
func SanitizeScriptParams(params map[string]any) (*model.ScriptParams, error) {
	for _, key := range requiredParams {
		if v, ok := params[key]; !ok || v == nil {
			return nil, model.NewMissingParamError(key)
		}
	}

	enableMetaPixel := truthy(params["enableMetaPixel"])
	out := &model.ScriptParams{
		PixelIDs:        []string{},
		SiteExternalID:  sanitize.Text(scalar(params["siteExternalId"])),
		APIKey:          sanitize.Text(scalar(params["apiKey"])),
		Currency:        sanitize.Text(scalar(params["currency"])),
		TrackingURLs:    []model.TrackingURL{},
		APIEndpoint:     sanitize.URL(scalar(params["apiEndpoint"])),
		CDNURL:          sanitize.URL(scalar(params["cdnUrl"])),
		EnableMetaPixel: &enableMetaPixel,
		BlockingRules:   []model.BlockingRule{},
	}

	for _, id := range list(params["pixelIds"]) {
		out.PixelIDs = append(out.PixelIDs, sanitize.Text(scalar(id)))
	}
	for _, entry := range list(params["trackingUrls"]) {
		obj, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		out.TrackingURLs = append(out.TrackingURLs, model.TrackingURL{
			URL:   sanitize.URL(scalar(obj["url"])),
			Event: sanitize.Text(scalar(obj["event"])),
		})
	}
	for _, entry := range list(params["blockingRules"]) {
		obj, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		rule := make(model.BlockingRule, len(obj))
		for key, value := range obj {
			if b, ok := value.(bool); ok {
				rule[sanitize.Key(key)] = b
				continue
			}
			rule[sanitize.Key(key)] = sanitize.Text(scalar(value))
		}
		out.BlockingRules = append(out.BlockingRules, rule)
	}
	return out, nil
}

// list reads v as an array. Objects yield their values in key order and a
// scalar becomes a one-element list.
func list(v any) []any {
	switch t := v.(type) {
	case nil:
		return nil
	case []any:
		return t
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make([]any, 0, len(t))
		for _, k := range keys {
			out = append(out, t[k])
		}
		return out
	default:
		return []any{t}
	}
}

// scalar renders a JSON scalar as text. Arrays and objects render empty.
func scalar(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		if t {
			return "1"
		}
		return ""
	default:
		return ""
	}
}

// truthy follows loose boolean casting: false, 0, "", "0", null and empty
// arrays are false.
func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		return t != "" && t != "0"
	case []any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	default:
		return true
	}
}
