package annotate

import (
	"log/slog"

	"github.com/andybalholm/cascadia"

	"pixelflow-proxy/internal/markup"
)

// Filter rewrites a markup fragment.
type Filter func(string) string

// Page is the buffered document one registration works on. Transforms
// queue edits against the current source; the pipeline applies them once the
// transform returns.
type Page struct {
	Kind markup.Kind

	doc    *markup.Document
	edits  []markup.Edit
	hook   string
	logger *slog.Logger
}

// Doc returns the indexed document.
func (p *Page) Doc() *markup.Document { return p.doc }

// Select returns the elements matching sel.
func (p *Page) Select(sel cascadia.Selector) []*markup.Element { return p.doc.Select(sel) }

// AddClass adds class to el's start tag.
func (p *Page) AddClass(el *markup.Element, class string) {
	tag := p.doc.StartTag(el)
	if out := markup.AddClassToStartTag(tag, class); out != tag {
		p.edits = append(p.edits, markup.Edit{Start: el.Start, End: el.OpenEnd, Text: out})
	}
}

// FilterInner passes the markup between el's tags through f.
func (p *Page) FilterInner(el *markup.Element, f Filter) {
	in := p.doc.Inner(el)
	if out := p.safely(f, in); out != in {
		p.edits = append(p.edits, markup.Edit{Start: el.OpenEnd, End: el.CloseStart, Text: out})
	}
}

// FilterOuter passes el's full markup through f.
func (p *Page) FilterOuter(el *markup.Element, f Filter) {
	in := p.doc.Outer(el)
	if out := p.safely(f, in); out != in {
		p.edits = append(p.edits, markup.Edit{Start: el.Start, End: el.End, Text: out})
	}
}

// AppendInside inserts text just before el's end tag.
func (p *Page) AppendInside(el *markup.Element, text string) {
	p.edits = append(p.edits, markup.AppendInside(el, text))
}

// Begin opens a buffered section over el. The caller must arrange for End to
// run, normally with defer.
func (p *Page) Begin(el *markup.Element, filter Filter) *Section {
	return &Section{page: p, el: el, filter: filter}
}

// Buffer runs el through filter as one buffered section.
func (p *Page) Buffer(el *markup.Element, filter Filter) {
	sec := p.Begin(el, filter)
	defer sec.End()
}

// safely runs f, returning in unchanged if f panics.
func (p *Page) safely(f Filter, in string) (out string) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Warn("annotation filter panicked", "hook", p.hook, "page", p.Kind.String(), "panic", r)
			out = in
		}
	}()
	return f(in)
}

// Section is a captured span of output awaiting its filter.
type Section struct {
	page   *Page
	el     *markup.Element
	filter Filter
	done   bool
}

// End flushes the section through its filter. Only the first call has an
// effect. If the filter panics the captured markup is emitted unmodified.
func (s *Section) End() {
	if s.done {
		return
	}
	s.done = true
	s.page.FilterOuter(s.el, s.filter)
}
