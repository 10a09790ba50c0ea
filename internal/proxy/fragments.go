package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"pixelflow-proxy/internal/annotate"
	"pixelflow-proxy/internal/markup"
)

// ajaxKinds maps the wc-ajax endpoints that answer with a "fragments" object
// to the page kind their markup is rendered for. The checkout re-renders its
// order review through update_order_review; the others refresh cart markup.
var ajaxKinds = map[string]markup.Kind{
	"update_order_review":     markup.KindCheckout,
	"get_refreshed_fragments": markup.KindCart,
	"add_to_cart":             markup.KindCart,
	"remove_from_cart":        markup.KindCart,
}

func ajaxKind(r *http.Request) (markup.Kind, bool) {
	endpoint := r.URL.Query().Get("wc-ajax")
	if endpoint == "" {
		return markup.KindOther, false
	}
	kind, ok := ajaxKinds[endpoint]
	return kind, ok
}

// renderFragments annotates the markup fragments of a WooCommerce AJAX
// response. It returns src unchanged when annotation is off or the body is
// not the expected JSON.
func (p *Proxy) renderFragments(ctx context.Context, src []byte, kind markup.Kind) []byte {
	snap, err := p.settings.Snapshot(ctx)
	if err != nil {
		p.logger.Warn("settings unavailable, serving fragments unchanged", "error", err)
		return src
	}
	if !snap.General.WooIntegrationEnabled() {
		return src
	}
	pipeline := p.pipelineFor(snap, p.wooActive(ctx))
	if pipeline == nil {
		return src
	}

	out, err := annotateFragments(pipeline, src, kind)
	if err != nil {
		p.logger.Debug("fragments left unchanged", "page", kind.String(), "error", err)
		return src
	}
	return out
}

// annotateFragments runs every string in the top-level "fragments" object
// through pipeline as markup of the given kind. Other members and non-string
// fragments are kept as they are.
func annotateFragments(pipeline *annotate.Pipeline, src []byte, kind markup.Kind) ([]byte, error) {
	var body map[string]json.RawMessage
	if err := json.Unmarshal(src, &body); err != nil {
		return src, fmt.Errorf("decode ajax response: %w", err)
	}
	raw, ok := body["fragments"]
	if !ok {
		return src, nil
	}
	var fragments map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fragments); err != nil {
		return src, fmt.Errorf("decode fragments: %w", err)
	}

	changed := false
	for selector, value := range fragments {
		var in string
		if err := json.Unmarshal(value, &in); err != nil {
			continue
		}
		out := string(pipeline.RunAs(markup.Parse([]byte(in)), kind).Source())
		if out == in {
			continue
		}
		enc, err := marshalJSON(out)
		if err != nil {
			return src, fmt.Errorf("encode fragment %q: %w", selector, err)
		}
		fragments[selector] = enc
		changed = true
	}
	if !changed {
		return src, nil
	}

	enc, err := marshalJSON(fragments)
	if err != nil {
		return src, fmt.Errorf("encode fragments: %w", err)
	}
	body["fragments"] = enc
	out, err := marshalJSON(body)
	if err != nil {
		return src, fmt.Errorf("encode ajax response: %w", err)
	}
	return out, nil
}

// marshalJSON encodes v without escaping <, > and &, which fragments are
// full of.
func marshalJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
