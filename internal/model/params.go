package model

// ScriptParams is everything needed to render the tracking script tag.
// Stored as a single record and replaced wholesale on every save.
type ScriptParams struct {
	PixelIDs        []string       `json:"pixelIds"`
	SiteExternalID  string         `json:"siteExternalId"`
	APIKey          string         `json:"apiKey"`
	Currency        string         `json:"currency"`
	TrackingURLs    []TrackingURL  `json:"trackingUrls"`
	APIEndpoint     string         `json:"apiEndpoint"`
	CDNURL          string         `json:"cdnUrl"`
	EnableMetaPixel *bool          `json:"enableMetaPixel,omitempty"`
	BlockingRules   []BlockingRule `json:"blockingRules"`
}

// TrackingURL pairs a URL with the conversion event it fires.
type TrackingURL struct {
	URL   string `json:"url"`
	Event string `json:"event"`
}

// BlockingRule is owned by the tracking service; the proxy only sanitizes and forwards it.
type BlockingRule map[string]any

// DefaultCurrency is rendered when no currency was saved.
const DefaultCurrency = "USD"

// Complete reports whether the fields required to render the tag are present.
func (p *ScriptParams) Complete() bool {
	if p == nil {
		return false
	}
	return len(p.PixelIDs) > 0 && p.SiteExternalID != "" && p.APIKey != "" && p.CDNURL != ""
}

// CurrencyOrDefault returns the saved currency or USD.
func (p *ScriptParams) CurrencyOrDefault() string {
	if p.Currency == "" {
		return DefaultCurrency
	}
	return p.Currency
}

// MetaPixelEnabled defaults to true when the flag was never saved.
func (p *ScriptParams) MetaPixelEnabled() bool {
	if p.EnableMetaPixel == nil {
		return true
	}
	return *p.EnableMetaPixel
}
