package annotate

import (
	"github.com/andybalholm/cascadia"

	"pixelflow-proxy/internal/markup"
	"pixelflow-proxy/internal/model"
)

// Scope is the set of page kinds a registration runs on.
type Scope uint8

func scopeOf(kinds ...markup.Kind) Scope {
	var s Scope
	for _, k := range kinds {
		s |= 1 << uint(k)
	}
	return s
}

// Has reports whether k is in the scope.
func (s Scope) Has(k markup.Kind) bool { return s&(1<<uint(k)) != 0 }

// Product markup also renders in loops on the front page and in widgets, so
// product registrations run everywhere except the order funnel.
var (
	scopeProduct  = scopeOf(markup.KindProduct, markup.KindShop, markup.KindOther)
	scopeSingle   = scopeOf(markup.KindProduct)
	scopeCart     = scopeOf(markup.KindCart)
	scopeCheckout = scopeOf(markup.KindCheckout)
)

// Transform queues the edits for one hook.
type Transform func(p *Page)

// Registration binds a class key to one hook point.
type Registration struct {
	Key   model.ClassKey
	Hook  string
	Scope Scope
	Apply Transform
}

var (
	selProductContainer = cascadia.MustCompile(".product.type-product")
	selLoopTitle        = cascadia.MustCompile(".woocommerce-loop-product__title")
	selSummary          = cascadia.MustCompile(".summary")
	selPrice            = cascadia.MustCompile(".price")
	selVariationPrice   = cascadia.MustCompile(".woocommerce-variation-price")
	selGroupedRow       = cascadia.MustCompile("tr.woocommerce-grouped-product-list-item")
	selProductQuantity  = cascadia.MustCompile("form.cart input.qty")
	selLoopButton       = cascadia.MustCompile(`a.button[class*="product_type_"]`)
	selAddToCartForm    = cascadia.MustCompile("form.cart")

	selCartItem     = cascadia.MustCompile("form.woocommerce-cart-form tr.cart_item")
	selCartPrice    = cascadia.MustCompile("form.woocommerce-cart-form td.product-price")
	selCartQuantity = cascadia.MustCompile("form.woocommerce-cart-form input.qty")
	selProceed      = cascadia.MustCompile(".wc-proceed-to-checkout")
	selCartName     = cascadia.MustCompile("form.woocommerce-cart-form td.product-name")
	selCartForm     = cascadia.MustCompile("form.woocommerce-cart-form")

	selCheckoutForm = cascadia.MustCompile("form.checkout")
	selReviewItem   = cascadia.MustCompile(".woocommerce-checkout-review-order-table tr.cart_item")
	selReviewName   = cascadia.MustCompile(".woocommerce-checkout-review-order-table td.product-name")
	selReviewBody   = cascadia.MustCompile(".woocommerce-checkout-review-order-table tbody")
	selOrderTotal   = cascadia.MustCompile("tr.order-total td")
	selPlaceOrder   = cascadia.MustCompile("#place_order")
)

// registry lists every hook point. A key may own several registrations.
var registry = []Registration{
	{model.KeyProductContainer, "product_container", scopeProduct, classOn(selProductContainer, model.ClassItem)},
	{model.KeyProductName, "loop_title", scopeProduct, classOn(selLoopTitle, model.ClassItemName)},
	{model.KeyProductName, "single_title", scopeSingle, bufferOn(selSummary, SingleTitleHTML)},
	{model.KeyProductPrice, "price_html", scopeProduct, productPrice},
	{model.KeyProductQuantity, "quantity_input", scopeSingle, classOn(selProductQuantity, model.ClassQuantity)},
	{model.KeyProductAddToCart, "loop_add_to_cart", scopeProduct, loopAddToCart},
	{model.KeyProductAddToCart, "single_add_to_cart", scopeSingle, bufferOn(selAddToCartForm, SingleAddToCartHTML)},

	{model.KeyCartItem, "cart_item", scopeCart, classOn(selCartItem, model.ClassItem)},
	{model.KeyCartPrice, "cart_item_price", scopeCart, innerOn(selCartPrice, CartPriceHTML)},
	{model.KeyCartQuantity, "cart_quantity", scopeCart, classOn(selCartQuantity, model.ClassQuantity)},
	{model.KeyCartCheckoutButton, "proceed_to_checkout", scopeCart, bufferOn(selProceed, CheckoutButtonHTML)},
	{model.KeyCartProductName, "cart_item_name", scopeCart, innerOn(selCartName, CartNameHTML)},
	{model.KeyCartProductsContainer, "cart_table", scopeCart, bufferOn(selCartForm, CartTableHTML)},

	{model.KeyCheckoutForm, "checkout_form", scopeCheckout, bufferOn(selCheckoutForm, CheckoutFormHTML)},
	{model.KeyCheckoutItem, "review_item", scopeCheckout, classOn(selReviewItem, model.ClassItem)},
	{model.KeyCheckoutItemName, "review_item_name", scopeCheckout, innerOn(selReviewName, WrapName)},
	{model.KeyCheckoutItemPrice, "review_item_total", scopeCheckout, bufferOn(selReviewBody, ReviewPriceHTML)},
	{model.KeyCheckoutItemQuantity, "review_item_quantity", scopeCheckout, innerOn(selReviewName, QuantityHTML)},
	{model.KeyCheckoutTotal, "order_total", scopeCheckout, innerOn(selOrderTotal, TotalHTML)},
	{model.KeyCheckoutPlaceOrder, "place_order", scopeCheckout, outerStartTag(selPlaceOrder, PlaceOrderHTML)},
}

// Registry returns a copy of the full registration table.
func Registry() []Registration {
	out := make([]Registration, len(registry))
	copy(out, registry)
	return out
}

func classOn(sel cascadia.Selector, class string) Transform {
	return func(p *Page) {
		for _, el := range p.Select(sel) {
			p.AddClass(el, class)
		}
	}
}

func innerOn(sel cascadia.Selector, f Filter) Transform {
	return func(p *Page) {
		for _, el := range p.Select(sel) {
			p.FilterInner(el, f)
		}
	}
}

func bufferOn(sel cascadia.Selector, f Filter) Transform {
	return func(p *Page) {
		for _, el := range p.Select(sel) {
			p.Buffer(el, f)
		}
	}
}

// outerStartTag filters only the start tag, so the button label is never touched.
func outerStartTag(sel cascadia.Selector, f Filter) Transform {
	return func(p *Page) {
		for _, el := range p.Select(sel) {
			tag := p.doc.StartTag(el)
			if out := p.safely(f, tag); out != tag {
				p.edits = append(p.edits, markup.Edit{Start: el.Start, End: el.OpenEnd, Text: out})
			}
		}
	}
}

func shapeOf(product *markup.Element) Shape {
	switch {
	case product == nil:
		return ShapeSimple
	case product.HasClass("product-type-variable"):
		return ShapeVariable
	case product.HasClass("product-type-grouped"):
		return ShapeGrouped
	default:
		return ShapeSimple
	}
}

func productPrice(p *Page) {
	for _, el := range p.Select(selPrice) {
		shape := shapeOf(p.doc.Closest(el, selProductContainer))
		p.FilterInner(el, func(s string) string { return PriceHTML(s, shape) })
	}
	for _, el := range p.Select(selVariationPrice) {
		p.FilterOuter(el, func(s string) string { return PriceHTML(s, ShapeVariable) })
	}
	for _, el := range p.Select(selGroupedRow) {
		p.FilterOuter(el, func(s string) string { return PriceHTML(s, ShapeGrouped) })
	}
}

// loopAddToCart tags archive buttons. Variable and grouped products link to
// the product page instead of adding to the cart, so they are left alone.
func loopAddToCart(p *Page) {
	for _, el := range p.Select(selLoopButton) {
		if el.HasClass("product_type_variable") || el.HasClass("product_type_grouped") {
			continue
		}
		p.AddClass(el, model.ClassAddToCart)
	}
}
