// Package adapter defines what the proxy needs from the commerce platform
// behind the origin.
package adapter

import (
	"context"

	"pixelflow-proxy/internal/model"
)

// Storefront abstracts the platform reads the proxy performs outside the
// proxied request itself. WooCommerce provides the implementation.
type Storefront interface {
	// GetOrder fetches an order for purchase emission on the
	// order-received page. Returns a NotFound APIError for unknown ids.
	GetOrder(ctx context.Context, id int) (*model.Order, error)

	// WooCommerceActive reports whether the commerce plugin is active on
	// the origin. Annotation is only registered when it is.
	WooCommerceActive(ctx context.Context) (bool, error)
}
