package woocommerce

import (
	"strings"

	"pixelflow-proxy/internal/model"
)

// toOrder converts a REST v3 order to the storefront order view.
func toOrder(wo *WooOrder) *model.Order {
	order := &model.Order{
		ID:       wo.ID,
		Key:      wo.OrderKey,
		Status:   wo.Status,
		Currency: strings.ToUpper(wo.Currency),
		Total:    wo.Total,
		Billing: model.BillingContact{
			FirstName: wo.Billing.FirstName,
			LastName:  wo.Billing.LastName,
			Email:     wo.Billing.Email,
			Phone:     wo.Billing.Phone,
			City:      wo.Billing.City,
			State:     wo.Billing.State,
			Postcode:  wo.Billing.Postcode,
			Country:   strings.ToUpper(wo.Billing.Country),
		},
		Items: make([]model.OrderItem, 0, len(wo.LineItems)),
	}

	for _, li := range wo.LineItems {
		order.Items = append(order.Items, model.OrderItem{
			Name:      li.Name,
			ProductID: li.ProductID,
			SKU:       li.SKU,
			Quantity:  li.Quantity,
			Total:     li.Total,
		})
	}
	return order
}

// hasWooCommerce reports whether the index advertises a WooCommerce namespace.
func hasWooCommerce(idx *WooIndex) bool {
	for _, ns := range idx.Namespaces {
		if strings.HasPrefix(ns, "wc/") {
			return true
		}
	}
	return false
}
