package woocommerce

// WooOrder is the subset of a REST v3 order the proxy reads.
// GET /wp-json/wc/v3/orders/{id}
type WooOrder struct {
	ID        int            `json:"id"`
	OrderKey  string         `json:"order_key"`
	Status    string         `json:"status"`
	Currency  string         `json:"currency"`
	Total     string         `json:"total"` // Decimal string: "29.99"
	Billing   WooBilling     `json:"billing"`
	LineItems []WooLineItem  `json:"line_items"`
	MetaData  []WooOrderMeta `json:"meta_data,omitempty"`
}

// WooBilling is the billing address block of an order.
type WooBilling struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Company   string `json:"company"`
	Address1  string `json:"address_1"`
	Address2  string `json:"address_2"`
	City      string `json:"city"`
	State     string `json:"state"`
	Postcode  string `json:"postcode"`
	Country   string `json:"country"` // ISO 3166-1 alpha-2
	Email     string `json:"email"`
	Phone     string `json:"phone"`
}

// WooLineItem is one product line of an order.
type WooLineItem struct {
	ID          int     `json:"id"`
	Name        string  `json:"name"`
	ProductID   int     `json:"product_id"`
	VariationID int     `json:"variation_id"`
	Quantity    int     `json:"quantity"`
	Subtotal    string  `json:"subtotal"`
	Total       string  `json:"total"` // After discounts, excluding tax
	SKU         string  `json:"sku"`
	Price       float64 `json:"price"`
}

// WooOrderMeta is a custom field attached to an order.
type WooOrderMeta struct {
	ID    int    `json:"id"`
	Key   string `json:"key"`
	Value any    `json:"value"`
}

// WooIndex is the REST API index served at /wp-json/.
type WooIndex struct {
	Name       string   `json:"name"`
	URL        string   `json:"url"`
	Namespaces []string `json:"namespaces"`
}

// WooErrorResponse represents a WooCommerce API error.
type WooErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Data    struct {
		Status int `json:"status"`
	} `json:"data"`
}
