package model

// Order is the storefront view of a placed order used for purchase events.
// Totals stay as the store's decimal strings until payload construction.
type Order struct {
	ID       int
	Key      string
	Status   string
	Currency string
	Total    string
	Items    []OrderItem
	Billing  BillingContact
}

// OrderItem is one line of an order. ProductID is 0 when the product was deleted.
type OrderItem struct {
	Name      string
	ProductID int
	SKU       string
	Quantity  int
	Total     string
}

// BillingContact holds the billing fields forwarded to the tracking script.
type BillingContact struct {
	FirstName string
	LastName  string
	Email     string
	Phone     string
	City      string
	State     string
	Postcode  string
	Country   string // ISO 3166-1 alpha-2
}
