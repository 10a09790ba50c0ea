// Package inject renders the tags the proxy adds to <head>: the tracking
// script and the debug highlighting stylesheet.
package inject

import (
	"encoding/json"
	"strings"

	"golang.org/x/net/html"

	"pixelflow-proxy/internal/markup"
	"pixelflow-proxy/internal/model"
	"pixelflow-proxy/internal/sanitize"
)

// TrackingScriptID is the id of the injected tracking script tag.
const TrackingScriptID = "pixelflow-tracking-js"

// ScriptTag renders the async tracking script tag. It returns "" when the
// params are missing a required field or the CDN URL is not http(s).
func ScriptTag(p *model.ScriptParams, debug bool) string {
	if !p.Complete() {
		return ""
	}
	src := sanitize.URL(p.CDNURL)
	if src == "" {
		return ""
	}

	pixelIDs := p.PixelIDs
	trackingURLs := p.TrackingURLs
	if trackingURLs == nil {
		trackingURLs = []model.TrackingURL{}
	}
	blockingRules := p.BlockingRules
	if blockingRules == nil {
		blockingRules = []model.BlockingRule{}
	}

	var b strings.Builder
	b.WriteString("<script")
	b.WriteString(` data-meta-pixel-ids='` + jsonAttr(pixelIDs) + `'`)
	b.WriteString(` data-site-id="` + html.EscapeString(p.SiteExternalID) + `"`)
	b.WriteString(` data-api-key="` + html.EscapeString(p.APIKey) + `"`)
	b.WriteString(` data-currency="` + html.EscapeString(p.CurrencyOrDefault()) + `"`)
	b.WriteString(` data-api-endpoint="` + html.EscapeString(sanitize.URL(p.APIEndpoint)) + `"`)
	b.WriteString(` data-tracked-urls='` + jsonAttr(trackingURLs) + `'`)
	b.WriteString(` data-blocking-rules='` + jsonAttr(blockingRules) + `'`)
	if p.MetaPixelEnabled() {
		b.WriteString(` data-enable-meta-pixel="true"`)
	} else {
		b.WriteString(` data-enable-meta-pixel="false"`)
	}
	if debug {
		b.WriteString(` data-debug="true"`)
	}
	b.WriteString(` async src="` + html.EscapeString(src) + `" id="` + TrackingScriptID + `"></script>`)
	return b.String()
}

// jsonAttr encodes v for a single-quoted attribute. encoding/json already
// escapes <, > and &; apostrophes only occur inside strings and are
// hex-escaped there.
func jsonAttr(v any) string {
	raw, err := json.Marshal(v)
	if err != nil {
		return "[]"
	}
	return strings.ReplaceAll(string(raw), "'", `\u0027`)
}

// HeadEdit returns an edit inserting snippet just before </head>. It reports
// false when the document has no usable head.
func HeadEdit(doc *markup.Document, snippet string) (markup.Edit, bool) {
	head := doc.Head()
	if head == nil || snippet == "" {
		return markup.Edit{}, false
	}
	at := head.CloseStart
	// An unclosed head swallows the body; fall back to just before <body>.
	if body := doc.Body(); body != nil && at > body.Start {
		at = body.Start
	}
	return markup.Edit{Start: at, End: at, Text: snippet + "\n"}, true
}

// Present reports whether the document already carries an element with id.
func Present(doc *markup.Document, id string) bool {
	return strings.Contains(string(doc.Source()), `id="`+id+`"`)
}
