// Package markup indexes buffered HTML documents and rewrites them in place.
//
// The index keeps byte offsets into the original source, so a rewrite only
// touches the bytes it targets and everything else passes through verbatim.
// Elements are mirrored into a bare html.Node tree (elements only, no text)
// so cascadia selectors can be used to find them.
package markup

import (
	"bytes"
	"strings"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

// Element is one element of the indexed document.
//
//	Start      OpenEnd            CloseStart     End
//	  |<td class="x">|inner markup...|</td>|
type Element struct {
	Tag        string
	Attrs      []html.Attribute
	Start      int
	OpenEnd    int
	CloseStart int
	End        int

	node *html.Node
}

// Attr returns the value of the named attribute.
func (e *Element) Attr(name string) (string, bool) {
	for _, a := range e.Attrs {
		if a.Key == name {
			return a.Val, true
		}
	}
	return "", false
}

// HasClass reports whether the element's class list contains class.
func (e *Element) HasClass(class string) bool {
	v, _ := e.Attr("class")
	return HasClassToken(v, class)
}

// Document is an indexed HTML source.
type Document struct {
	src   []byte
	root  *html.Node
	elems map[*html.Node]*Element
	body  *Element
	head  *Element
}

// voidElements never have a closing tag.
var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "link": true, "meta": true,
	"param": true, "source": true, "track": true, "wbr": true,
}

// Parse indexes src. Malformed markup never fails: unclosed elements end
// where their parent ends, stray end tags are ignored.
func Parse(src []byte) *Document {
	doc := &Document{
		src:   src,
		root:  &html.Node{Type: html.DocumentNode},
		elems: make(map[*html.Node]*Element),
	}

	z := html.NewTokenizer(bytes.NewReader(src))
	var stack []*Element
	offset := 0

	parentNode := func() *html.Node {
		if len(stack) == 0 {
			return doc.root
		}
		return stack[len(stack)-1].node
	}

	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			break
		}
		raw := z.Raw()
		start := offset
		offset += len(raw)

		switch tt {
		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			el := &Element{
				Tag:     tok.Data,
				Attrs:   tok.Attr,
				Start:   start,
				OpenEnd: offset,
			}
			el.node = &html.Node{Type: html.ElementNode, Data: tok.Data, DataAtom: tok.DataAtom, Attr: tok.Attr}
			parentNode().AppendChild(el.node)
			doc.elems[el.node] = el

			switch el.Tag {
			case "body":
				if doc.body == nil {
					doc.body = el
				}
			case "head":
				if doc.head == nil {
					doc.head = el
				}
			}

			if tt == html.SelfClosingTagToken || voidElements[el.Tag] {
				el.CloseStart, el.End = offset, offset
				continue
			}
			stack = append(stack, el)

		case html.EndTagToken:
			name, _ := z.TagName()
			tag := string(name)
			match := -1
			for i := len(stack) - 1; i >= 0; i-- {
				if stack[i].Tag == tag {
					match = i
					break
				}
			}
			if match < 0 {
				continue
			}
			// Implicitly closed children end where the matching end tag starts.
			for i := len(stack) - 1; i > match; i-- {
				stack[i].CloseStart, stack[i].End = start, start
			}
			stack[match].CloseStart, stack[match].End = start, offset
			stack = stack[:match]
		}
	}

	for _, el := range stack {
		el.CloseStart, el.End = len(src), len(src)
	}
	return doc
}

// Source returns the indexed bytes.
func (d *Document) Source() []byte { return d.src }

// Body returns the first <body> element, or nil.
func (d *Document) Body() *Element { return d.body }

// Head returns the first <head> element, or nil.
func (d *Document) Head() *Element { return d.head }

// Select returns the elements matching sel in document order.
func (d *Document) Select(sel cascadia.Selector) []*Element {
	nodes := sel.MatchAll(d.root)
	out := make([]*Element, 0, len(nodes))
	for _, n := range nodes {
		if el, ok := d.elems[n]; ok {
			out = append(out, el)
		}
	}
	return out
}

// SelectWithin returns the elements matching sel inside parent, excluding parent.
func (d *Document) SelectWithin(parent *Element, sel cascadia.Selector) []*Element {
	var out []*Element
	for c := parent.node.FirstChild; c != nil; c = c.NextSibling {
		for _, n := range sel.MatchAll(c) {
			if el, ok := d.elems[n]; ok {
				out = append(out, el)
			}
		}
	}
	return out
}

// Outer returns the full markup of el including its tags.
func (d *Document) Outer(el *Element) string { return string(d.src[el.Start:el.End]) }

// Inner returns the markup between el's start and end tags.
func (d *Document) Inner(el *Element) string { return string(d.src[el.OpenEnd:el.CloseStart]) }

// StartTag returns el's start tag markup.
func (d *Document) StartTag(el *Element) string { return string(d.src[el.Start:el.OpenEnd]) }

// BodyClasses returns the class tokens on <body>, which WordPress uses to
// describe the current template.
func (d *Document) BodyClasses() []string {
	if d.body == nil {
		return nil
	}
	v, _ := d.body.Attr("class")
	return strings.Fields(v)
}

// Closest returns the nearest ancestor of el matching sel, or nil.
func (d *Document) Closest(el *Element, sel cascadia.Selector) *Element {
	for n := el.node.Parent; n != nil && n.Type == html.ElementNode; n = n.Parent {
		if sel.Match(n) {
			return d.elems[n]
		}
	}
	return nil
}
