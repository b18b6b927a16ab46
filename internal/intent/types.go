// Package intent defines the closed set of conversational intents the
// assistant understands, along with the slot model produced by entity
// extraction and the fixed business vocabularies slots are validated against.
package intent

import (
	"strconv"
	"strings"
)

// Intent is the classified purpose of a user utterance.
type Intent string

const (
	// IntentSearchProduct is a read-only product catalogue search.
	IntentSearchProduct Intent = "search_product"
	// IntentProductDetails looks up a single product by id.
	IntentProductDetails Intent = "get_product_details"
	// IntentCreateProduct creates a new product record.
	IntentCreateProduct Intent = "create_product"
	// IntentUpdateProduct modifies an existing product record.
	IntentUpdateProduct Intent = "update_product"
	// IntentSearchSales is a read-only sales record search.
	IntentSearchSales Intent = "search_sales"
	// IntentCreateSale records a new sale.
	IntentCreateSale Intent = "create_sale"
	// IntentUpdateSale modifies an existing sale record.
	IntentUpdateSale Intent = "update_sale"
	// IntentGetAnalytics requests an aggregate sales summary.
	IntentGetAnalytics Intent = "get_analytics"
	// IntentRecommend requests product recommendations.
	IntentRecommend Intent = "get_recommendations"
	// IntentSearchVendor looks up vendor records.
	IntentSearchVendor Intent = "vendor_query"
	// IntentConfirm approves a pending operation.
	IntentConfirm Intent = "confirm"
	// IntentCancel abandons a pending operation.
	IntentCancel Intent = "cancel"
	// IntentUnknown is the fallback when classification fails or degrades.
	IntentUnknown Intent = "unknown"
)

// AllIntents returns every valid intent, for validation and prompting.
func AllIntents() []Intent {
	return []Intent{
		IntentSearchProduct,
		IntentProductDetails,
		IntentCreateProduct,
		IntentUpdateProduct,
		IntentSearchSales,
		IntentCreateSale,
		IntentUpdateSale,
		IntentGetAnalytics,
		IntentRecommend,
		IntentSearchVendor,
		IntentConfirm,
		IntentCancel,
		IntentUnknown,
	}
}

// String returns the wire representation of the intent.
func (i Intent) String() string {
	return string(i)
}

// IsValid reports whether the intent is a member of the closed set.
func (i Intent) IsValid() bool {
	for _, valid := range AllIntents() {
		if i == valid {
			return true
		}
	}
	return false
}

// IsMutating reports whether executing the intent creates or modifies a
// stored record. Mutating intents always require explicit confirmation.
func (i Intent) IsMutating() bool {
	switch i {
	case IntentCreateProduct, IntentUpdateProduct, IntentCreateSale, IntentUpdateSale:
		return true
	default:
		return false
	}
}

// Parse maps a classifier label to an Intent, tolerating common aliases.
// Unrecognised labels map to IntentUnknown.
func Parse(label string) Intent {
	normalized := strings.ReplaceAll(strings.TrimSpace(strings.ToLower(label)), "-", "_")
	switch normalized {
	case "search_product", "search_products", "find_product":
		return IntentSearchProduct
	case "get_product_details", "product_details":
		return IntentProductDetails
	case "create_product", "add_product":
		return IntentCreateProduct
	case "update_product":
		return IntentUpdateProduct
	case "search_sales", "search_sale":
		return IntentSearchSales
	case "create_sale", "add_sale":
		return IntentCreateSale
	case "update_sale":
		return IntentUpdateSale
	case "get_analytics", "analytics":
		return IntentGetAnalytics
	case "get_recommendations", "recommend":
		return IntentRecommend
	case "vendor_query", "search_vendor", "search_vendors":
		return IntentSearchVendor
	case "confirm":
		return IntentConfirm
	case "cancel":
		return IntentCancel
	default:
		return IntentUnknown
	}
}

// Slot names extracted by the classifier. Values are free-form strings or
// numbers depending on the slot; Slots accessors handle coercion.
const (
	SlotProductID   = "product_id"
	SlotProductName = "product_name"
	SlotCategory    = "category"
	SlotBrand       = "brand"
	SlotDescription = "description"
	SlotPrice       = "price"
	SlotPriceMin    = "price_min"
	SlotPriceMax    = "price_max"
	SlotRatingMin   = "rating_min"
	SlotRating      = "rating"
	SlotQuantity    = "quantity"
	SlotVariantID   = "variant_id"
	SlotSaleID      = "sale_id"
	SlotCustomerID  = "customer_id"
	SlotTotal       = "total"
	SlotDiscount    = "discount"
	SlotStatus      = "status"
	SlotMethod      = "payment_method"
	SlotVendorID    = "vendor_id"
	SlotVendorName  = "vendor_name"
	SlotDateFrom    = "date_from"
	SlotDateTo      = "date_to"
	SlotLimit       = "limit"
)

// Slots is a mapping of slot name to extracted value.
type Slots map[string]any

// Clone returns a shallow copy of the slot map.
func (s Slots) Clone() Slots {
	out := make(Slots, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Has reports whether the slot is present with a non-empty value.
func (s Slots) Has(name string) bool {
	v, ok := s[name]
	if !ok || v == nil {
		return false
	}
	if str, isStr := v.(string); isStr {
		return strings.TrimSpace(str) != ""
	}
	return true
}

// String returns the slot value as a trimmed string, or "" when absent.
func (s Slots) String(name string) string {
	switch v := s[name].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	default:
		return ""
	}
}

// Float returns the slot value as a float64. Numeric-looking strings are
// coerced. The second return reports whether a usable number was present.
func (s Slots) Float(name string) (float64, bool) {
	switch v := s[name].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// Int returns the slot value as an int, coercing floats and numeric strings.
func (s Slots) Int(name string) (int, bool) {
	f, ok := s.Float(name)
	if !ok {
		return 0, false
	}
	return int(f), true
}

// ClassifiedIntent is the result of one classification pass over an
// utterance. It lives for a single turn unless captured by a pending
// operation.
type ClassifiedIntent struct {
	Intent     Intent  `json:"intent"`
	Confidence float64 `json:"confidence"`
	Slots      Slots   `json:"slots"`
}
