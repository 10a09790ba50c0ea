// Package annotate tags WooCommerce markup with the CSS classes the
// tracking script reads.
//
// A Pipeline is built once per settings revision from the registry, keeping
// only the registrations whose class key is enabled. Running it never fails:
// a transform that panics or produces overlapping edits is dropped and the
// page is served with whatever the other transforms produced.
package annotate

import (
	"log/slog"

	"pixelflow-proxy/internal/markup"
	"pixelflow-proxy/internal/model"
)

// Pipeline is the active subset of the registry for one settings revision.
type Pipeline struct {
	active []Registration
	logger *slog.Logger
}

// New builds the pipeline. It returns nil when tracking or the WooCommerce
// integration is off, or when WooCommerce is not active on the origin; a nil
// Pipeline runs as a no-op.
func New(general model.GeneralOptions, classes model.ClassOptions, wooActive bool, logger *slog.Logger) *Pipeline {
	if !general.WooIntegrationEnabled() || !wooActive {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}

	p := &Pipeline{logger: logger}
	for _, reg := range registry {
		if classes.Enabled(reg.Key) {
			p.active = append(p.active, reg)
		}
	}

	script, err := BlockCartScript(classes)
	if err != nil {
		logger.Warn("block cart tagger disabled", "error", err)
	} else if script != "" {
		p.active = append(p.active, Registration{Hook: "block_cart", Scope: scopeCart, Apply: blockCart(script)})
	}
	return p
}

// Hooks returns the hook names of the active registrations in run order.
func (p *Pipeline) Hooks() []string {
	if p == nil {
		return nil
	}
	hooks := make([]string, len(p.active))
	for i, reg := range p.active {
		hooks[i] = reg.Hook
	}
	return hooks
}

// Run applies every active registration in scope for the document's page
// kind and returns the rewritten document.
func (p *Pipeline) Run(doc *markup.Document) *markup.Document {
	if p == nil {
		return doc
	}
	return p.RunAs(doc, doc.Classify())
}

// RunAs is Run with the page kind given by the caller, for markup such as
// AJAX fragments that has no <body> to classify.
//
// Edits from consecutive registrations are collected against one parse and
// applied together. The document is applied and parsed again only when a
// registration's edits overlap edits still pending, so a registration never
// sees offsets that an earlier one has shifted.
func (p *Pipeline) RunAs(doc *markup.Document, kind markup.Kind) *markup.Document {
	if p == nil || len(p.active) == 0 {
		return doc
	}
	var pending []markup.Edit
	for _, reg := range p.active {
		if !reg.Scope.Has(kind) {
			continue
		}
		edits := p.collect(reg, kind, doc)
		if len(edits) == 0 {
			continue
		}
		if overlapsAny(pending, edits) {
			doc = p.flush(doc, pending)
			pending = nil
			edits = p.collect(reg, kind, doc)
		}
		pending = append(pending, edits...)
	}
	return p.flush(doc, pending)
}

// collect runs one registration and returns its edits, or nil if it panicked.
func (p *Pipeline) collect(reg Registration, kind markup.Kind, doc *markup.Document) []markup.Edit {
	page := &Page{Kind: kind, doc: doc, hook: reg.Hook, logger: p.logger}
	if !p.apply(reg, page) {
		return nil
	}
	return page.edits
}

// flush applies edits to doc and parses the result.
func (p *Pipeline) flush(doc *markup.Document, edits []markup.Edit) *markup.Document {
	if len(edits) == 0 {
		return doc
	}
	out, skipped := markup.Apply(doc.Source(), edits)
	if skipped > 0 {
		p.logger.Debug("overlapping annotation edits dropped", "skipped", skipped)
	}
	return markup.Parse(out)
}

// overlapsAny reports whether any edit in next touches a span in pending.
// Two insertions at the same offset count as overlapping, since their order
// would depend on the batch.
func overlapsAny(pending, next []markup.Edit) bool {
	for _, a := range next {
		for _, b := range pending {
			if a.Start == b.Start || (a.Start < b.End && b.Start < a.End) {
				return true
			}
		}
	}
	return false
}

// apply runs one transform, reporting false if it panicked.
func (p *Pipeline) apply(reg Registration, page *Page) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Warn("annotation transform panicked", "hook", reg.Hook, "page", page.Kind.String(), "panic", r)
			ok = false
		}
	}()
	reg.Apply(page)
	return true
}
