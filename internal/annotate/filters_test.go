package annotate

import "testing"

func TestPriceHTML(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		shape Shape
		want  string
	}{
		{
			name:  "simple",
			in:    `<span class="woocommerce-Price-amount amount"><bdi>$10</bdi></span>`,
			shape: ShapeSimple,
			want:  `<span class="woocommerce-Price-amount amount info-itm-prc-pf"><bdi>$10</bdi></span>`,
		},
		{
			name:  "simple on sale tags the sale price only",
			in:    `<del aria-hidden="true"><span class="woocommerce-Price-amount amount">$20</span></del> <ins><span class="woocommerce-Price-amount amount">$10</span></ins>`,
			shape: ShapeSimple,
			want:  `<del aria-hidden="true"><span class="woocommerce-Price-amount amount">$20</span></del> <ins><span class="woocommerce-Price-amount amount info-itm-prc-pf">$10</span></ins>`,
		},
		{
			name:  "variable range untouched",
			in:    `<span class="woocommerce-Price-amount amount">$5</span> – <span class="woocommerce-Price-amount amount">$9</span>`,
			shape: ShapeVariable,
			want:  `<span class="woocommerce-Price-amount amount">$5</span> – <span class="woocommerce-Price-amount amount">$9</span>`,
		},
		{
			name:  "variation price",
			in:    `<div class="woocommerce-variation-price"><span class="price"><span class="woocommerce-Price-amount amount">$15</span></span></div>`,
			shape: ShapeVariable,
			want:  `<div class="woocommerce-variation-price"><span class="price"><span class="woocommerce-Price-amount amount info-itm-prc-pf">$15</span></span></div>`,
		},
		{
			name:  "variation price on sale",
			in:    `<div class="woocommerce-variation-price"><span class="price"><del><span class="woocommerce-Price-amount amount">$20</span></del> <ins><span class="woocommerce-Price-amount amount">$15</span></ins></span></div>`,
			shape: ShapeVariable,
			want:  `<div class="woocommerce-variation-price"><span class="price"><del><span class="woocommerce-Price-amount amount">$20</span></del> <ins><span class="woocommerce-Price-amount amount info-itm-prc-pf">$15</span></ins></span></div>`,
		},
		{
			name:  "grouped parent untouched",
			in:    `<span class="woocommerce-Price-amount amount">$3</span> – <span class="woocommerce-Price-amount amount">$8</span>`,
			shape: ShapeGrouped,
			want:  `<span class="woocommerce-Price-amount amount">$3</span> – <span class="woocommerce-Price-amount amount">$8</span>`,
		},
		{
			name:  "grouped child row",
			in:    `<tr class="woocommerce-grouped-product-list-item"><td><span class="woocommerce-Price-amount amount">$3</span></td></tr>`,
			shape: ShapeGrouped,
			want:  `<tr class="woocommerce-grouped-product-list-item"><td><span class="woocommerce-Price-amount amount info-itm-prc-pf">$3</span></td></tr>`,
		},
		{
			name:  "single quoted class",
			in:    `<span class='woocommerce-Price-amount amount'><bdi>$10</bdi></span>`,
			shape: ShapeSimple,
			want:  `<span class='woocommerce-Price-amount amount info-itm-prc-pf'><bdi>$10</bdi></span>`,
		},
		{
			name:  "single quoted sale price",
			in:    `<del><span class='woocommerce-Price-amount amount'>$20</span></del> <ins><span data-x="1" class='woocommerce-Price-amount amount'>$10</span></ins>`,
			shape: ShapeSimple,
			want:  `<del><span class='woocommerce-Price-amount amount'>$20</span></del> <ins><span data-x="1" class='woocommerce-Price-amount amount info-itm-prc-pf'>$10</span></ins>`,
		},
		{
			name:  "single quoted variation price",
			in:    `<div class='woocommerce-variation-price'><span class='price'><span class='woocommerce-Price-amount amount'>$15</span></span></div>`,
			shape: ShapeVariable,
			want:  `<div class='woocommerce-variation-price'><span class='price'><span class='woocommerce-Price-amount amount info-itm-prc-pf'>$15</span></span></div>`,
		},
		{
			name:  "already tagged",
			in:    `<span class="woocommerce-Price-amount amount info-itm-prc-pf">$10</span>`,
			shape: ShapeSimple,
			want:  `<span class="woocommerce-Price-amount amount info-itm-prc-pf">$10</span>`,
		},
		{name: "empty", in: "", shape: ShapeSimple, want: ""},
		{name: "no match", in: "Free", shape: ShapeSimple, want: "Free"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PriceHTML(tt.in, tt.shape); got != tt.want {
				t.Errorf("PriceHTML() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFragmentFilters(t *testing.T) {
	tests := []struct {
		name string
		f    Filter
		in   string
		want string
	}{
		{
			name: "cart price",
			f:    CartPriceHTML,
			in:   `<span class="woocommerce-Price-amount amount"><bdi>$10</bdi></span>`,
			want: `<span class="woocommerce-Price-amount amount info-itm-prc-pf"><bdi>$10</bdi></span>`,
		},
		{
			name: "cart price single quoted",
			f:    CartPriceHTML,
			in:   `<span class='woocommerce-Price-amount amount'><bdi>$10</bdi></span>`,
			want: `<span class='woocommerce-Price-amount amount info-itm-prc-pf'><bdi>$10</bdi></span>`,
		},
		{
			name: "checkout button",
			f:    CheckoutButtonHTML,
			in:   `<a href="/checkout/" class="checkout-button button alt wc-forward">Proceed</a>`,
			want: `<a href="/checkout/" class="checkout-button button alt wc-forward action-btn-buy-004-pf">Proceed</a>`,
		},
		{
			name: "single title",
			f:    SingleTitleHTML,
			in:   `<h1 class="product_title entry-title">Mug</h1>`,
			want: `<h1 class="product_title entry-title info-itm-name-pf">Mug</h1>`,
		},
		{
			name: "single add to cart picks the button",
			f:    SingleAddToCartHTML,
			in:   `<form class="cart"><button class="single_add_to_cart_button button alt">Add</button></form>`,
			want: `<form class="cart"><button class="single_add_to_cart_button button alt action-btn-cart-005-pf">Add</button></form>`,
		},
		{
			name: "cart table",
			f:    CartTableHTML,
			in:   `<table class="shop_table shop_table_responsive cart">`,
			want: `<table class="shop_table shop_table_responsive cart info-chk-itm-ctnr-pf">`,
		},
		{
			name: "checkout form",
			f:    CheckoutFormHTML,
			in:   `<form name="checkout" class="checkout woocommerce-checkout" action="/checkout/">`,
			want: `<form name="checkout" class="checkout woocommerce-checkout info-chk-itm-ctnr-pf" action="/checkout/">`,
		},
		{
			name: "review line totals",
			f:    ReviewPriceHTML,
			in:   `<td class="product-total">$1</td><td class="product-total">$2</td>`,
			want: `<td class="product-total info-itm-prc-pf">$1</td><td class="product-total info-itm-prc-pf">$2</td>`,
		},
		{
			name: "quantity badge",
			f:    QuantityHTML,
			in:   `Mug&nbsp;<strong class="product-quantity">&times;&nbsp;2</strong>`,
			want: `Mug&nbsp;<strong class="product-quantity info-itm-qnty-pf">&times;&nbsp;2</strong>`,
		},
		{
			name: "review line total single quoted",
			f:    ReviewPriceHTML,
			in:   `<td class='product-total'>$1</td>`,
			want: `<td class='product-total info-itm-prc-pf'>$1</td>`,
		},
		{
			name: "wrap name before single quoted quantity",
			f:    WrapName,
			in:   `Mug <span class='product-quantity'>2</span>`,
			want: `<span class="info-itm-name-pf">Mug</span> <span class='product-quantity'>2</span>`,
		},
		{
			name: "total without class",
			f:    TotalHTML,
			in:   `<strong>$20</strong>`,
			want: `<strong class="info-totl-amt-pf">$20</strong>`,
		},
		{
			name: "total with amount span",
			f:    TotalHTML,
			in:   `<strong><span class="woocommerce-Price-amount amount">$20</span></strong>`,
			want: `<strong><span class="woocommerce-Price-amount amount info-totl-amt-pf">$20</span></strong>`,
		},
		{
			name: "place order",
			f:    PlaceOrderHTML,
			in:   `<button type="submit" class="button alt" id="place_order">`,
			want: `<button type="submit" class="button alt action-btn-plc-ord-018-pf" id="place_order">`,
		},
		{
			name: "wrap name before quantity",
			f:    WrapName,
			in:   "\n\tMug&nbsp;\t<strong class=\"product-quantity\">&times;&nbsp;2</strong>",
			want: "\n\t<span class=\"info-itm-name-pf\">Mug</span>&nbsp;\t<strong class=\"product-quantity\">&times;&nbsp;2</strong>",
		},
		{
			name: "wrap bare name",
			f:    WrapName,
			in:   "Mug",
			want: `<span class="info-itm-name-pf">Mug</span>`,
		},
		{
			name: "wrap skips blank",
			f:    WrapName,
			in:   "  ",
			want: "  ",
		},
		{
			name: "cart name link",
			f:    CartNameHTML,
			in:   `<a href="/p/mug/">Mug</a>`,
			want: `<a href="/p/mug/" class="info-itm-name-pf">Mug</a>`,
		},
		{
			name: "cart name unlinked",
			f:    CartNameHTML,
			in:   `Mug`,
			want: `<span class="info-itm-name-pf">Mug</span>`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.f(tt.in)
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
			if again := tt.f(got); again != got {
				t.Errorf("second application changed output: %q", again)
			}
		})
	}
}
