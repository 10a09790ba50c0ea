// Package purchase renders the purchase event script for the
// order-received page.
package purchase

import (
	"bytes"
	"crypto/subtle"
	_ "embed"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"text/template"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"pixelflow-proxy/internal/model"
)

// ScriptID is the id of the injected purchase script.
const ScriptID = "pixelflow-purchase-js"

// Polling budget while waiting for the tracker: 200 ms steps for 10 s.
const (
	WaitStep   = 200
	WaitBudget = 10000
)

//go:embed purchase.js
var scriptSource string

var scriptTmpl = template.Must(template.New("purchase").Parse(scriptSource))

// Billing is the customer block of the payload. Country carries the
// English country name, not the code.
type Billing struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	City      string `json:"city"`
	State     string `json:"state"`
	Postcode  string `json:"postcode"`
	Country   string `json:"country"`
}

// Product is one purchased line. Price is per unit.
type Product struct {
	Name  string  `json:"name"`
	Qty   int     `json:"qty"`
	Price float64 `json:"price"`
	ID    int     `json:"id"`
	SKU   string  `json:"sku"`
}

// Payload is the data the purchase script hands to the tracker.
type Payload struct {
	OrderID     int       `json:"orderId"`
	Currency    string    `json:"currency"`
	Value       float64   `json:"value"`
	NumItems    int       `json:"numItems"`
	ContentType string    `json:"contentType"`
	Billing     Billing   `json:"billing"`
	Products    []Product `json:"products"`
}

// NewPayload builds the event payload. Lines whose product no longer exists
// are left out of both products and the item count.
func NewPayload(order *model.Order) Payload {
	p := Payload{
		OrderID:     order.ID,
		Currency:    order.Currency,
		Value:       model.Amount(order.Total),
		ContentType: "product",
		Billing: Billing{
			FirstName: order.Billing.FirstName,
			LastName:  order.Billing.LastName,
			Email:     order.Billing.Email,
			Phone:     order.Billing.Phone,
			City:      order.Billing.City,
			State:     order.Billing.State,
			Postcode:  order.Billing.Postcode,
			Country:   CountryName(order.Billing.Country),
		},
		Products: []Product{},
	}
	for _, item := range order.Items {
		if item.ProductID == 0 {
			continue
		}
		p.NumItems += item.Quantity
		p.Products = append(p.Products, Product{
			Name:  item.Name,
			Qty:   item.Quantity,
			Price: model.UnitPrice(item.Total, item.Quantity),
			ID:    item.ProductID,
			SKU:   item.SKU,
		})
	}
	return p
}

// CountryName expands an ISO 3166-1 alpha-2 code to its English name.
// Unknown codes are returned unchanged.
func CountryName(code string) string {
	if code == "" {
		return ""
	}
	region, err := language.ParseRegion(code)
	if err != nil {
		return code
	}
	if name := display.English.Regions().Name(region); name != "" {
		return name
	}
	return code
}

// ValidKey reports whether key matches the order key.
func ValidKey(order *model.Order, key string) bool {
	if order.Key == "" || key == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(order.Key), []byte(key)) == 1
}

var orderReceivedRe = regexp.MustCompile(`/order-received/(\d+)/?$`)

// ParseOrderReceived extracts the order id and key from an order-received
// URL, with pretty (/checkout/order-received/123/) or plain
// (?order-received=123) permalinks.
func ParseOrderReceived(u *url.URL) (id int, key string, ok bool) {
	q := u.Query()
	raw := q.Get("order-received")
	if m := orderReceivedRe.FindStringSubmatch(u.Path); m != nil {
		raw = m[1]
	}
	id, err := strconv.Atoi(raw)
	if err != nil || id <= 0 {
		return 0, "", false
	}
	return id, q.Get("key"), true
}

// Script renders the inline purchase script. Unless alwaysSend is set the
// script skips orders already recorded in localStorage.
func Script(p Payload, alwaysSend bool) (string, error) {
	data, err := scriptJSON(p)
	if err != nil {
		return "", err
	}
	var b bytes.Buffer
	err = scriptTmpl.Execute(&b, struct {
		Data       string
		AlwaysSend bool
		Step       int
		Budget     int
	}{data, alwaysSend, WaitStep, WaitBudget})
	if err != nil {
		return "", fmt.Errorf("render purchase script: %w", err)
	}
	return b.String(), nil
}

// scriptJSON encodes p for a script element. encoding/json escapes <, >
// and &, so no value can close the element.
func scriptJSON(p Payload) (string, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("encode purchase payload: %w", err)
	}
	return string(raw), nil
}
