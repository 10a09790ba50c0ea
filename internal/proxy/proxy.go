// Package proxy forwards storefront traffic to the WordPress origin and
// rewrites rendered HTML pages on the way back: WooCommerce markup is
// annotated, the tracking script and debug stylesheet are added to <head>
// and the purchase script to order-received pages.
//
// Each response reads one settings snapshot and never mutates it. Anything
// that goes wrong while rewriting serves the origin's bytes unchanged.
package proxy

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"pixelflow-proxy/internal/adapter"
	"pixelflow-proxy/internal/annotate"
	"pixelflow-proxy/internal/inject"
	"pixelflow-proxy/internal/markup"
	"pixelflow-proxy/internal/purchase"
	"pixelflow-proxy/internal/settings"
	"pixelflow-proxy/internal/viewer"
)

// DefaultMaxRewriteBytes caps the HTML body buffered for rewriting.
const DefaultMaxRewriteBytes = 8 << 20

// skipPrefixes are origin paths whose responses are never rewritten.
var skipPrefixes = []string{"/wp-admin", "/wp-login.php", "/wp-json"}

// Config holds the proxy's dependencies.
type Config struct {
	Origin          *url.URL
	Transport       http.RoundTripper // nil uses http.DefaultTransport
	MaxRewriteBytes int64
	Settings        *settings.Service
	Storefront      adapter.Storefront
	Emitter         *purchase.Emitter // nil disables purchase events
	Logger          *slog.Logger
}

// Proxy is an http.Handler forwarding to the origin.
type Proxy struct {
	rp         *httputil.ReverseProxy
	settings   *settings.Service
	storefront adapter.Storefront
	emitter    *purchase.Emitter
	maxBytes   int64
	logger     *slog.Logger

	mu       sync.Mutex
	pipeline *annotate.Pipeline
	builtFor pipelineKey
	built    bool
}

// pipelineKey identifies the inputs a pipeline was built from.
type pipelineKey struct {
	revision  uint64
	wooActive bool
}

// New creates a Proxy for cfg.
func New(cfg Config) (*Proxy, error) {
	if cfg.Origin == nil || cfg.Origin.Host == "" {
		return nil, errors.New("proxy: origin URL is required")
	}
	if cfg.Settings == nil || cfg.Storefront == nil {
		return nil, errors.New("proxy: settings and storefront are required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.MaxRewriteBytes <= 0 {
		cfg.MaxRewriteBytes = DefaultMaxRewriteBytes
	}

	p := &Proxy{
		settings:   cfg.Settings,
		storefront: cfg.Storefront,
		emitter:    cfg.Emitter,
		maxBytes:   cfg.MaxRewriteBytes,
		logger:     cfg.Logger,
	}
	origin := cfg.Origin
	p.rp = &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(origin)
			pr.SetXForwarded()
			if targetFor(pr.In) != targetNone {
				// Only identity bodies can be rewritten.
				pr.Out.Header.Set("Accept-Encoding", "identity")
			}
		},
		Transport:      cfg.Transport,
		ModifyResponse: p.modifyResponse,
		ErrorHandler:   p.errorHandler,
	}
	return p, nil
}

// ServeHTTP forwards r to the origin.
func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p.rp.ServeHTTP(w, r)
}

// target is what the response to a request may be rewritten as.
type target int

const (
	targetNone target = iota
	targetPage
	// targetCartPost is a POST answered with a full page. Only cart pages
	// are rewritten, since WooCommerce re-renders the cart form that way.
	targetCartPost
	// targetFragments is a WooCommerce AJAX response whose JSON carries
	// re-rendered markup.
	targetFragments
)

// targetFor classifies r by method, path and wc-ajax endpoint.
func targetFor(r *http.Request) target {
	for _, prefix := range skipPrefixes {
		if strings.HasPrefix(r.URL.Path, prefix) {
			return targetNone
		}
	}
	if _, ok := ajaxKind(r); ok {
		return targetFragments
	}
	switch r.Method {
	case http.MethodGet:
		return targetPage
	case http.MethodPost:
		return targetCartPost
	default:
		return targetNone
	}
}

func mediaType(h http.Header) string {
	mt, _, err := mime.ParseMediaType(h.Get("Content-Type"))
	if err != nil {
		return ""
	}
	return mt
}

func (p *Proxy) modifyResponse(resp *http.Response) error {
	// The viewer header never reaches the browser, rewritten or not.
	v, err := viewer.Take(resp.Header)
	if err != nil {
		p.logger.Warn("ignoring viewer header", "error", err)
	}

	tgt := targetFor(resp.Request)
	if tgt == targetNone || resp.StatusCode != http.StatusOK {
		return nil
	}
	want := "text/html"
	if tgt == targetFragments {
		want = "application/json"
	}
	if mediaType(resp.Header) != want {
		return nil
	}
	if enc := resp.Header.Get("Content-Encoding"); enc != "" && enc != "identity" {
		p.logger.Debug("skipping encoded html", "path", resp.Request.URL.Path, "encoding", enc)
		return nil
	}
	if resp.ContentLength > p.maxBytes {
		return nil
	}

	src, err := io.ReadAll(io.LimitReader(resp.Body, p.maxBytes+1))
	if err != nil {
		return fmt.Errorf("read origin body: %w", err)
	}
	if int64(len(src)) > p.maxBytes {
		// Too large to buffer: stream what was read followed by the rest.
		p.logger.Debug("html too large to rewrite", "path", resp.Request.URL.Path, "limit", p.maxBytes)
		resp.Body = struct {
			io.Reader
			io.Closer
		}{io.MultiReader(bytes.NewReader(src), resp.Body), resp.Body}
		return nil
	}
	resp.Body.Close()

	var out []byte
	if tgt == targetFragments {
		kind, _ := ajaxKind(resp.Request)
		out = p.renderFragments(resp.Request.Context(), src, kind)
	} else {
		out = p.render(resp.Request.Context(), resp.Request.URL, src, v, tgt == targetCartPost)
	}
	if !bytes.Equal(out, src) {
		resp.Header.Del("ETag")
	}
	resp.Body = io.NopCloser(bytes.NewReader(out))
	resp.ContentLength = int64(len(out))
	resp.Header.Set("Content-Length", strconv.Itoa(len(out)))
	return nil
}

func (p *Proxy) errorHandler(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, context.Canceled) {
		return
	}
	p.logger.Error("origin request failed",
		"method", r.Method,
		"path", r.URL.Path,
		"error", err,
	)
	http.Error(w, http.StatusText(http.StatusBadGateway), http.StatusBadGateway)
}

// render rewrites one HTML document. It returns src unchanged when the
// settings cannot be read, or when cartOnly is set and src is not a cart page.
func (p *Proxy) render(ctx context.Context, u *url.URL, src []byte, v viewer.Viewer, cartOnly bool) []byte {
	doc := markup.Parse(src)
	if cartOnly && doc.Classify() != markup.KindCart {
		return src
	}

	snap, err := p.settings.Snapshot(ctx)
	if err != nil {
		p.logger.Warn("settings unavailable, serving page unchanged", "error", err)
		return src
	}

	if doc.LoggedIn() {
		v.LoggedIn = true
	}

	wooActive := false
	if snap.General.WooIntegrationEnabled() {
		wooActive = p.wooActive(ctx)
	}
	doc = p.pipelineFor(snap, wooActive).Run(doc)

	var edits []markup.Edit
	var head strings.Builder
	if tag := p.scriptTag(snap, doc, v); tag != "" {
		head.WriteString(tag)
	}
	if style := inject.DebugStyle(snap.General, snap.Debug); style != "" && !inject.Present(doc, inject.DebugStyleID) {
		if head.Len() > 0 {
			head.WriteString("\n")
		}
		head.WriteString(style)
	}
	if edit, ok := inject.HeadEdit(doc, head.String()); ok {
		edits = append(edits, edit)
	}

	if wooActive {
		if script := p.purchaseScript(ctx, snap, u, v); script != "" {
			if body := doc.Body(); body != nil {
				edits = append(edits, markup.AppendInside(body, script+"\n"))
			} else {
				edits = append(edits, markup.Edit{Start: len(doc.Source()), End: len(doc.Source()), Text: script})
			}
		}
	}

	out, skipped := markup.Apply(doc.Source(), edits)
	if skipped > 0 {
		p.logger.Debug("overlapping injection edits dropped", "path", u.Path, "skipped", skipped)
	}
	return out
}

// scriptTag returns the tracking script for the page or "" when tracking is
// off, the params are incomplete, the viewer is excluded or the page already
// carries the tag.
func (p *Proxy) scriptTag(snap *settings.Snapshot, doc *markup.Document, v viewer.Viewer) string {
	if !snap.General.TrackingEnabled() {
		return ""
	}
	if v.LoggedIn && snap.General.Excludes(v.Roles) {
		return ""
	}
	if inject.Present(doc, inject.TrackingScriptID) {
		return ""
	}
	return inject.ScriptTag(snap.Params, snap.General.Debug())
}

func (p *Proxy) purchaseScript(ctx context.Context, snap *settings.Snapshot, u *url.URL, v viewer.Viewer) string {
	if p.emitter == nil {
		return ""
	}
	id, key, ok := purchase.ParseOrderReceived(u)
	if !ok {
		return ""
	}
	script, err := p.emitter.Script(ctx, purchase.Request{
		Site:    snap.Site,
		OrderID: id,
		Key:     key,
		Viewer:  v,
		General: snap.General,
	})
	if err != nil {
		p.logger.Warn("purchase event skipped", "order_id", id, "error", err)
		return ""
	}
	return script
}

// wooActive asks the storefront whether WooCommerce runs on the origin. A
// failed probe counts as inactive.
func (p *Proxy) wooActive(ctx context.Context) bool {
	active, err := p.storefront.WooCommerceActive(ctx)
	if err != nil {
		p.logger.Warn("woocommerce probe failed", "error", err)
		return false
	}
	return active
}

// pipelineFor returns the annotation pipeline for the snapshot, rebuilding
// it only when the settings revision or WooCommerce state changed.
func (p *Proxy) pipelineFor(snap *settings.Snapshot, wooActive bool) *annotate.Pipeline {
	key := pipelineKey{revision: snap.Revision, wooActive: wooActive}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.built && p.builtFor == key {
		return p.pipeline
	}
	p.pipeline = annotate.New(snap.General, snap.Classes, wooActive, p.logger)
	p.builtFor = key
	p.built = true
	p.logger.Debug("annotation pipeline built",
		"revision", snap.Revision,
		"woo_active", wooActive,
		"hooks", p.pipeline.Hooks(),
	)
	return p.pipeline
}
