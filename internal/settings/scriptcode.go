package settings

import (
	"encoding/json"
	"errors"
	"strings"

	"golang.org/x/net/html"
)

// ErrNoScriptTag is returned when pasted script code has no <script> tag.
var ErrNoScriptTag = errors.New("no script tag found")

// ParseScriptTag reads the data attributes of the first <script> tag in code
// back into a params object, the inverse of the rendered tracking tag.
// Attributes that are absent are left out so required-key checks still apply.
func ParseScriptTag(code string) (map[string]any, error) {
	z := html.NewTokenizer(strings.NewReader(code))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return nil, ErrNoScriptTag
		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			if tok.Data != "script" {
				continue
			}
			return scriptAttrs(tok.Attr), nil
		}
	}
}

func scriptAttrs(attrs []html.Attribute) map[string]any {
	params := make(map[string]any)
	for _, a := range attrs {
		switch a.Key {
		case "src":
			params["cdnUrl"] = stripVersion(a.Val)
		case "data-site-id":
			params["siteExternalId"] = a.Val
		case "data-api-key":
			params["apiKey"] = a.Val
		case "data-currency":
			params["currency"] = a.Val
		case "data-api-endpoint":
			params["apiEndpoint"] = a.Val
		case "data-enable-meta-pixel":
			params["enableMetaPixel"] = a.Val == "true"
		case "data-meta-pixel-ids":
			params["pixelIds"] = jsonValue(a.Val)
		case "data-tracked-urls":
			params["trackingUrls"] = jsonValue(a.Val)
		case "data-blocking-rules":
			params["blockingRules"] = jsonValue(a.Val)
		}
	}

	// Tags saved before these attributes existed carry neither.
	if _, ok := params["currency"]; !ok {
		params["currency"] = ""
	}
	if _, ok := params["enableMetaPixel"]; !ok {
		params["enableMetaPixel"] = true
	}
	if _, ok := params["trackingUrls"]; !ok {
		params["trackingUrls"] = []any{}
	}
	if _, ok := params["blockingRules"]; !ok {
		params["blockingRules"] = []any{}
	}
	if _, ok := params["apiEndpoint"]; !ok {
		params["apiEndpoint"] = ""
	}
	return params
}

// jsonValue decodes an attribute holding JSON, falling back to the raw text.
func jsonValue(s string) any {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return s
	}
	return v
}

// stripVersion drops the cache-busting ver query parameter.
func stripVersion(src string) string {
	if i := strings.Index(src, "?ver="); i >= 0 {
		return src[:i]
	}
	return src
}
