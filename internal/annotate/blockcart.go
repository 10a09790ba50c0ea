package annotate

import (
	_ "embed"
	"encoding/json"
	"strings"

	"github.com/andybalholm/cascadia"

	"pixelflow-proxy/internal/model"
)

//go:embed blockcart.js
var blockCartJS string

// Polling budget of the block cart tagger: 50 ms x 500 attempts.
const (
	BlockCartInterval    = 50
	BlockCartMaxAttempts = 500
)

// BlockCartScriptID is the id of the injected tagger script.
const BlockCartScriptID = "pixelflow-block-cart-js"

// The block cart renders in the browser, so its rows can only be tagged
// client-side once they exist.
var blockCartSelectors = []struct {
	key      model.ClassKey
	selector string
}{
	{model.KeyCartItem, ".wc-block-cart-items__row"},
	{model.KeyCartPrice, ".wc-block-cart-item__prices .wc-block-components-product-price__value"},
	{model.KeyCartQuantity, ".wc-block-components-quantity-selector__input"},
	{model.KeyCartCheckoutButton, ".wc-block-cart__submit-button"},
	{model.KeyCartProductName, ".wc-block-components-product-name"},
	{model.KeyCartProductsContainer, ".wc-block-cart-items"},
}

var (
	selBlockCart   = cascadia.MustCompile(".wp-block-woocommerce-cart")
	selClassicCart = cascadia.MustCompile("form.woocommerce-cart-form")
)

// BlockCartRule tags every element matching Selector with ClassName.
type BlockCartRule struct {
	Selector  string `json:"selector"`
	ClassName string `json:"className"`
}

type blockCartConfig struct {
	Container   string          `json:"container"`
	Ready       string          `json:"ready"`
	Classic     string          `json:"classic"`
	Interval    int             `json:"interval"`
	MaxAttempts int             `json:"maxAttempts"`
	Rules       []BlockCartRule `json:"rules"`
}

// BlockCartRules returns the client-side rules for the enabled cart keys.
func BlockCartRules(classes model.ClassOptions) []BlockCartRule {
	var rules []BlockCartRule
	for _, s := range blockCartSelectors {
		if classes.Enabled(s.key) {
			rules = append(rules, BlockCartRule{Selector: s.selector, ClassName: s.key.Class()})
		}
	}
	return rules
}

// BlockCartScript renders the tagger with its configuration, or "" when no
// cart key is enabled.
func BlockCartScript(classes model.ClassOptions) (string, error) {
	rules := BlockCartRules(classes)
	if len(rules) == 0 {
		return "", nil
	}
	cfg, err := json.Marshal(blockCartConfig{
		Container:   ".wp-block-woocommerce-cart",
		Ready:       ".wc-block-cart-items",
		Classic:     "form.woocommerce-cart-form",
		Interval:    BlockCartInterval,
		MaxAttempts: BlockCartMaxAttempts,
		Rules:       rules,
	})
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString(`<script id="` + BlockCartScriptID + `">`)
	b.WriteString("window.pixelflowBlockCart = ")
	b.Write(cfg)
	b.WriteString(";\n")
	b.WriteString(blockCartJS)
	b.WriteString("</script>\n")
	return b.String(), nil
}

// blockCart appends the tagger to a cart page that uses the cart block.
func blockCart(script string) Transform {
	return func(p *Page) {
		body := p.doc.Body()
		if body == nil || len(p.Select(selClassicCart)) > 0 || len(p.Select(selBlockCart)) == 0 {
			return
		}
		if strings.Contains(p.doc.Inner(body), `id="`+BlockCartScriptID+`"`) {
			return
		}
		p.AppendInside(body, script)
	}
}
