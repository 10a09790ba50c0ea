package model

// Option record names in the options store.
const (
	OptionGeneral      = "pixelflow_general_options"
	OptionClasses      = "pixelflow_class_options"
	OptionDebug        = "pixelflow_debug_options"
	OptionScriptParams = "pixelflow_script_params"
	OptionScriptCode   = "pixelflow_script_code"
	OptionCode         = "pixelflow_code"
	OptionDBVersion    = "pixelflow_db_version"
)

// AllOptions lists every record the plugin owns, used by uninstall.
var AllOptions = []string{
	OptionGeneral,
	OptionClasses,
	OptionDebug,
	OptionScriptParams,
	OptionScriptCode,
	OptionCode,
	OptionDBVersion,
}

// GeneralOptions holds the top-level toggles. Checkbox values are 0 or 1.
type GeneralOptions struct {
	Enabled             int      `json:"enabled"`
	WooEnabled          int      `json:"woo_enabled"`
	WooPurchaseTracking int      `json:"woo_purchase_tracking"`
	DebugEnabled        int      `json:"debug_enabled"`
	RemoveOnUninstall   int      `json:"remove_on_uninstall"`
	ExcludedUserRoles   []string `json:"excluded_user_roles,omitempty"`
}

// TrackingEnabled reports whether the tracking script may be injected at all.
func (g GeneralOptions) TrackingEnabled() bool { return g.Enabled == 1 }

// WooIntegrationEnabled reports whether WooCommerce annotation is switched on.
func (g GeneralOptions) WooIntegrationEnabled() bool {
	return g.Enabled == 1 && g.WooEnabled == 1
}

// Debug reports whether debug visualization is on.
func (g GeneralOptions) Debug() bool { return g.DebugEnabled == 1 }

// Excludes reports whether any of the viewer's roles is in the excluded list.
func (g GeneralOptions) Excludes(roles []string) bool {
	for _, role := range roles {
		for _, excluded := range g.ExcludedUserRoles {
			if role == excluded {
				return true
			}
		}
	}
	return false
}

// ClassKey identifies one annotatable element.
type ClassKey string

// Product page keys.
const (
	KeyProductContainer ClassKey = "woo_class_product_container"
	KeyProductName      ClassKey = "woo_class_product_name"
	KeyProductPrice     ClassKey = "woo_class_product_price"
	KeyProductQuantity  ClassKey = "woo_class_product_quantity"
	KeyProductAddToCart ClassKey = "woo_class_product_add_to_cart"
)

// Cart page keys.
const (
	KeyCartItem              ClassKey = "woo_class_cart_item"
	KeyCartPrice             ClassKey = "woo_class_cart_price"
	KeyCartQuantity          ClassKey = "woo_class_cart_quantity"
	KeyCartCheckoutButton    ClassKey = "woo_class_cart_checkout_button"
	KeyCartProductName       ClassKey = "woo_class_cart_product_name"
	KeyCartProductsContainer ClassKey = "woo_class_cart_products_container"
)

// Checkout page keys.
const (
	KeyCheckoutForm         ClassKey = "woo_class_checkout_form"
	KeyCheckoutItem         ClassKey = "woo_class_checkout_item"
	KeyCheckoutItemName     ClassKey = "woo_class_checkout_item_name"
	KeyCheckoutItemPrice    ClassKey = "woo_class_checkout_item_price"
	KeyCheckoutItemQuantity ClassKey = "woo_class_checkout_item_quantity"
	KeyCheckoutTotal        ClassKey = "woo_class_checkout_total"
	KeyCheckoutPlaceOrder   ClassKey = "woo_class_checkout_place_order"
)

// Annotation class names. The external tracking script matches these verbatim,
// renaming one is a breaking change.
const (
	ClassItem       = "info-chk-itm-pf"
	ClassItemName   = "info-itm-name-pf"
	ClassPrice      = "info-itm-prc-pf"
	ClassQuantity   = "info-itm-qnty-pf"
	ClassAddToCart  = "action-btn-cart-005-pf"
	ClassBuy        = "action-btn-buy-004-pf"
	ClassContainer  = "info-chk-itm-ctnr-pf"
	ClassTotal      = "info-totl-amt-pf"
	ClassPlaceOrder = "action-btn-plc-ord-018-pf"
)

// ClassKeys is the full key space in settings-page order.
var ClassKeys = []ClassKey{
	KeyProductContainer,
	KeyProductName,
	KeyProductPrice,
	KeyProductQuantity,
	KeyProductAddToCart,
	KeyCartItem,
	KeyCartPrice,
	KeyCartQuantity,
	KeyCartCheckoutButton,
	KeyCartProductName,
	KeyCartProductsContainer,
	KeyCheckoutForm,
	KeyCheckoutItem,
	KeyCheckoutItemName,
	KeyCheckoutItemPrice,
	KeyCheckoutItemQuantity,
	KeyCheckoutTotal,
	KeyCheckoutPlaceOrder,
}

var classNames = map[ClassKey]string{
	KeyProductContainer:      ClassItem,
	KeyProductName:           ClassItemName,
	KeyProductPrice:          ClassPrice,
	KeyProductQuantity:       ClassQuantity,
	KeyProductAddToCart:      ClassAddToCart,
	KeyCartItem:              ClassItem,
	KeyCartPrice:             ClassPrice,
	KeyCartQuantity:          ClassQuantity,
	KeyCartCheckoutButton:    ClassBuy,
	KeyCartProductName:       ClassItemName,
	KeyCartProductsContainer: ClassContainer,
	KeyCheckoutForm:          ClassContainer,
	KeyCheckoutItem:          ClassItem,
	KeyCheckoutItemName:      ClassItemName,
	KeyCheckoutItemPrice:     ClassPrice,
	KeyCheckoutItemQuantity:  ClassQuantity,
	KeyCheckoutTotal:         ClassTotal,
	KeyCheckoutPlaceOrder:    ClassPlaceOrder,
}

// Class returns the CSS class injected for the key, or "" for unknown keys.
func (k ClassKey) Class() string { return classNames[k] }

// Known reports whether k belongs to the key space.
func (k ClassKey) Known() bool {
	_, ok := classNames[k]
	return ok
}

// ClassOptions toggles annotation per key.
type ClassOptions map[ClassKey]int

// Enabled is fail-open: a key that predates the install's saved options is on.
func (o ClassOptions) Enabled(key ClassKey) bool {
	v, ok := o[key]
	if !ok {
		return true
	}
	return v != 0
}

// DebugOptions toggles debug highlighting per key.
type DebugOptions map[ClassKey]int

// Enabled is fail-closed: debug highlighting is opt-in.
func (o DebugOptions) Enabled(key ClassKey) bool {
	return o[key] == 1
}
