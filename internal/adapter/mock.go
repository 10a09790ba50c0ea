package adapter

import (
	"context"

	"pixelflow-proxy/internal/model"
)

// Mock implements Storefront for testing.
// Each method can be configured via function fields.
type Mock struct {
	GetOrderFunc          func(ctx context.Context, id int) (*model.Order, error)
	WooCommerceActiveFunc func(ctx context.Context) (bool, error)
}

// GetOrder calls the configured GetOrderFunc or returns an error.
func (m *Mock) GetOrder(ctx context.Context, id int) (*model.Order, error) {
	if m.GetOrderFunc != nil {
		return m.GetOrderFunc(ctx, id)
	}
	return nil, model.NewNotFoundError("order")
}

// WooCommerceActive calls the configured WooCommerceActiveFunc or reports active.
func (m *Mock) WooCommerceActive(ctx context.Context) (bool, error) {
	if m.WooCommerceActiveFunc != nil {
		return m.WooCommerceActiveFunc(ctx)
	}
	return true, nil
}

// Verify Mock implements Storefront interface at compile time.
var _ Storefront = (*Mock)(nil)
