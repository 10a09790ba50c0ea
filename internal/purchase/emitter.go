package purchase

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"

	"pixelflow-proxy/internal/adapter"
	"pixelflow-proxy/internal/model"
	"pixelflow-proxy/internal/viewer"
)

// staffRoles never trigger purchase events unless debug is on.
var staffRoles = []string{"administrator", "editor", "shop_manager"}

// Decision adjusts a boolean decision, like a WordPress filter.
type Decision func(current bool) bool

// Deduper records orders whose purchase script was served.
type Deduper interface {
	// First reports whether this is the first time the order is seen.
	First(ctx context.Context, site string, orderID int) (bool, error)
}

// Emitter decides whether an order-received page gets the purchase script
// and renders it.
type Emitter struct {
	storefront adapter.Storefront
	dedup      Deduper
	alwaysSend Decision
	visible    Decision
	logger     *slog.Logger
}

// Option configures an Emitter.
type Option func(*Emitter)

// WithDeduper enables server-side de-duplication.
func WithDeduper(d Deduper) Option {
	return func(e *Emitter) { e.dedup = d }
}

// WithAlwaysSend overrides whether already-sent orders are sent again.
// It receives the debug setting.
func WithAlwaysSend(f Decision) Option {
	return func(e *Emitter) {
		if f != nil {
			e.alwaysSend = f
		}
	}
}

// WithVisibility overrides whether the current viewer gets the script.
// It receives the role-based decision.
func WithVisibility(f Decision) Option {
	return func(e *Emitter) {
		if f != nil {
			e.visible = f
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Emitter) { e.logger = l }
}

// Override returns a Decision forcing the parsed boolean value, or nil when
// value is empty or not a boolean.
func Override(value string) Decision {
	forced, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		return nil
	}
	return func(bool) bool { return forced }
}

func keep(current bool) bool { return current }

// NewEmitter returns an emitter reading orders from storefront.
func NewEmitter(storefront adapter.Storefront, opts ...Option) *Emitter {
	e := &Emitter{
		storefront: storefront,
		alwaysSend: keep,
		visible:    keep,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Request describes one order-received page view.
type Request struct {
	Site    string
	OrderID int
	Key     string
	Viewer  viewer.Viewer
	General model.GeneralOptions
}

// Script returns the purchase script for the page, or "" when none should
// be emitted. Errors are storefront failures other than an unknown order.
func (e *Emitter) Script(ctx context.Context, req Request) (string, error) {
	if !req.General.WooIntegrationEnabled() || req.General.WooPurchaseTracking != 1 {
		return "", nil
	}
	if req.OrderID <= 0 {
		return "", nil
	}

	order, err := e.storefront.GetOrder(ctx, req.OrderID)
	if errors.Is(err, model.ErrNotFound) {
		e.logger.Debug("purchase order not found", "order_id", req.OrderID)
		return "", nil
	}
	if err != nil {
		return "", err
	}
	if !ValidKey(order, req.Key) {
		e.logger.Debug("purchase order key mismatch", "order_id", req.OrderID)
		return "", nil
	}

	debug := req.General.Debug()
	alwaysSend := e.alwaysSend(debug)

	show := debug || !req.Viewer.HasRole(staffRoles...)
	if !e.visible(show) {
		return "", nil
	}

	if e.dedup != nil && !alwaysSend {
		first, err := e.dedup.First(ctx, req.Site, order.ID)
		if err != nil {
			e.logger.Warn("purchase dedup unavailable", "order_id", order.ID, "error", err)
		} else if !first {
			e.logger.Debug("purchase already emitted", "order_id", order.ID)
			return "", nil
		}
	}

	return Script(NewPayload(order), alwaysSend)
}
