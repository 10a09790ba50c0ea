package annotate

import (
	"regexp"
	"strings"

	"pixelflow-proxy/internal/markup"
	"pixelflow-proxy/internal/model"
)

// Filters take a markup fragment and return it with one annotation class
// added. A pattern that does not match returns the input unchanged, and a
// class that is already present is never inserted twice.

// Shape is the WooCommerce product type as far as price markup is concerned.
type Shape int

const (
	ShapeSimple Shape = iota
	ShapeVariable
	ShapeGrouped
)

// classAttr matches a class attribute in either quote style whose value
// contains token.
func classAttr(token string) string {
	return `\sclass\s*=\s*(?:"[^"]*` + token + `[^"]*"|'[^']*` + token + `[^']*')`
}

// startTag captures a start tag named name that carries a class attribute
// containing token.
func startTag(name, token string) string {
	return `(<` + name + `\b[^>]*?` + classAttr(token) + `[^>]*>)`
}

const anyTag = `[a-z][a-z0-9-]*`

var (
	amountTag = startTag("span", "woocommerce-Price-amount")
	variation = `<div\b[^>]*?` + classAttr("woocommerce-variation-price") + `[^>]*>.*?`

	discountedPriceRe = regexp.MustCompile(`(?i)<ins[^>]*>\s*` + amountTag)
	plainPriceRe      = regexp.MustCompile(`(?i)` + amountTag)

	variationDiscountedRe = regexp.MustCompile(`(?is)` + variation + `<ins[^>]*>\s*` + amountTag)
	variationPlainRe      = regexp.MustCompile(`(?is)` + variation + amountTag)

	cartAmountRe      = regexp.MustCompile(`(?i)` + startTag("span", "amount"))
	checkoutButtonRe  = regexp.MustCompile(`(?i)` + startTag(anyTag, "checkout-button"))
	singleTitleRe     = regexp.MustCompile(`(?i)` + startTag("h1", ""))
	singleAddToCartRe = regexp.MustCompile(`(?i)` + startTag(anyTag, `\b(?:single_)?add_to_cart_button\b`))
	cartTableRe       = regexp.MustCompile(`(?i)` + startTag(anyTag, "shop_table shop_table_responsive"))
	checkoutFormRe    = regexp.MustCompile(`(?i)` + startTag(anyTag, "checkout woocommerce-checkout"))
	reviewTotalRe     = regexp.MustCompile(`(?i)` + startTag("td", `\bproduct-total\b`))
	quantityRe        = regexp.MustCompile(`(?i)` + startTag(anyTag, `\bproduct-quantity\b`))
	anyClassRe        = regexp.MustCompile(`(?i)` + startTag(anyTag, ""))
	firstAnchorRe     = regexp.MustCompile(`(?i)<a\s[^>]*>`)
	leadingNameRe     = regexp.MustCompile(`(?is)^(\s*)(.*?)(\s*(?:&nbsp;|\x{00a0})?\s*<(?:(?:strong|dl|div|p)\b|span\s+class\s*=\s*["']product-quantity).*|\s*)$`)
)

// addClassAt adds class to the start tag captured by group 1 of the first
// limit matches of re (all matches when limit < 0).
func addClassAt(re *regexp.Regexp, s, class string, limit int) string {
	locs := re.FindAllStringSubmatchIndex(s, limit)
	if locs == nil {
		return s
	}
	var b strings.Builder
	pos := 0
	for _, loc := range locs {
		start, end := loc[2], loc[3]
		if start < 0 {
			continue
		}
		tag := s[start:end]
		out := markup.AddClassToStartTag(tag, class)
		if out == tag {
			continue
		}
		b.WriteString(s[pos:start])
		b.WriteString(out)
		pos = end
	}
	if pos == 0 {
		return s
	}
	b.WriteString(s[pos:])
	return b.String()
}

// discountedOrPlain tags the sale price when the fragment has one, and falls
// back to the regular price span otherwise.
func discountedOrPlain(s string, discounted, plain *regexp.Regexp) string {
	out := addClassAt(discounted, s, model.ClassPrice, 1)
	if !strings.Contains(out, "<ins") {
		out = addClassAt(plain, out, model.ClassPrice, 1)
	}
	return out
}

// PriceHTML tags the price amount span of a product price fragment.
// Variable products are only tagged inside a variation price block and
// grouped products only inside a child row; range prices stay untouched.
func PriceHTML(s string, shape Shape) string {
	if s == "" {
		return s
	}
	switch shape {
	case ShapeVariable:
		if !strings.Contains(s, "woocommerce-variation-price") {
			return s
		}
		return discountedOrPlain(s, variationDiscountedRe, variationPlainRe)
	case ShapeGrouped:
		if !strings.Contains(s, "woocommerce-grouped-product-list-item") {
			return s
		}
	}
	return discountedOrPlain(s, discountedPriceRe, plainPriceRe)
}

// CartPriceHTML tags the first amount span of a cart line price.
func CartPriceHTML(s string) string {
	return addClassAt(cartAmountRe, s, model.ClassPrice, 1)
}

// CheckoutButtonHTML tags every proceed-to-checkout button in the section.
func CheckoutButtonHTML(s string) string {
	return addClassAt(checkoutButtonRe, s, model.ClassBuy, -1)
}

// SingleTitleHTML tags the product title heading of a single product summary.
func SingleTitleHTML(s string) string {
	return addClassAt(singleTitleRe, s, model.ClassItemName, -1)
}

// SingleAddToCartHTML tags the add-to-cart button of a single product form.
func SingleAddToCartHTML(s string) string {
	return addClassAt(singleAddToCartRe, s, model.ClassAddToCart, 1)
}

// CartTableHTML tags the cart table that wraps every cart line.
func CartTableHTML(s string) string {
	return addClassAt(cartTableRe, s, model.ClassContainer, 1)
}

// CheckoutFormHTML tags the main checkout form.
func CheckoutFormHTML(s string) string {
	return addClassAt(checkoutFormRe, s, model.ClassContainer, 1)
}

// ReviewPriceHTML tags every line total cell of the order review table.
func ReviewPriceHTML(s string) string {
	return addClassAt(reviewTotalRe, s, model.ClassPrice, -1)
}

// QuantityHTML tags the quantity badge of an order review line.
func QuantityHTML(s string) string {
	return addClassAt(quantityRe, s, model.ClassQuantity, 1)
}

// TotalHTML tags the order total. A bare <strong> gets a class attribute,
// otherwise the first class attribute in the fragment is extended.
func TotalHTML(s string) string {
	if s == "" || strings.Contains(s, model.ClassTotal) {
		return s
	}
	if !strings.Contains(s, "class=") {
		return strings.Replace(s, "<strong", `<strong class="`+model.ClassTotal+`"`, 1)
	}
	return addClassAt(anyClassRe, s, model.ClassTotal, 1)
}

// PlaceOrderHTML tags the place order button markup.
func PlaceOrderHTML(s string) string {
	return addClassAt(anyClassRe, s, model.ClassPlaceOrder, 1)
}

// WrapName wraps the leading product name of a review line in a tagged span,
// leaving the quantity badge and item meta that follow it outside.
func WrapName(s string) string {
	if strings.Contains(s, model.ClassItemName) {
		return s
	}
	m := leadingNameRe.FindStringSubmatch(s)
	if m == nil || strings.TrimSpace(m[2]) == "" {
		return s
	}
	return m[1] + `<span class="` + model.ClassItemName + `">` + m[2] + `</span>` + m[3]
}

// CartNameHTML tags the product link of a cart line, or wraps the name when
// the product is not linked.
func CartNameHTML(s string) string {
	if strings.Contains(s, model.ClassItemName) {
		return s
	}
	if loc := firstAnchorRe.FindStringIndex(s); loc != nil {
		return s[:loc[0]] + markup.AddClassToStartTag(s[loc[0]:loc[1]], model.ClassItemName) + s[loc[1]:]
	}
	return WrapName(s)
}
