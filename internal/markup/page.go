package markup

import "github.com/andybalholm/cascadia"

// Kind is the WooCommerce page type of a rendered document.
type Kind int

const (
	KindOther Kind = iota
	KindShop
	KindProduct
	KindCart
	KindCheckout
	KindOrderReceived
)

func (k Kind) String() string {
	switch k {
	case KindShop:
		return "shop"
	case KindProduct:
		return "product"
	case KindCart:
		return "cart"
	case KindCheckout:
		return "checkout"
	case KindOrderReceived:
		return "order-received"
	default:
		return "other"
	}
}

// Page-identity guards, evaluated against <body>. Order matters: the
// order-received template also carries the checkout body class.
var kindSelectors = []struct {
	kind Kind
	sel  cascadia.Selector
}{
	{KindOrderReceived, cascadia.MustCompile("body.woocommerce-order-received")},
	{KindCheckout, cascadia.MustCompile("body.woocommerce-checkout")},
	{KindCart, cascadia.MustCompile("body.woocommerce-cart")},
	{KindProduct, cascadia.MustCompile("body.single-product")},
	{KindShop, cascadia.MustCompile("body.woocommerce-shop, body.post-type-archive-product, body.tax-product_cat, body.tax-product_tag")},
}

var loggedInSel = cascadia.MustCompile("body.logged-in")

// Classify returns the page kind from the body classes.
func (d *Document) Classify() Kind {
	if d.body == nil {
		return KindOther
	}
	for _, ks := range kindSelectors {
		if ks.sel.Match(d.body.node) {
			return ks.kind
		}
	}
	return KindOther
}

// LoggedIn reports whether WordPress rendered the page for a logged-in user.
func (d *Document) LoggedIn() bool {
	return d.body != nil && loggedInSel.Match(d.body.node)
}
