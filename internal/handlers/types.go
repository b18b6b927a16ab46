// Package handlers executes classified intents against the record store.
// Each handler receives a fully validated slot set and returns a Result
// with a user-facing message and structured data. Handlers never touch
// conversational memory; entity hints for follow-up turns travel back in
// Result.Entities and are applied by the orchestrator.
package handlers

import (
	"context"
	"errors"
	"fmt"

	"github.com/veract/salesmind/internal/intent"
	"github.com/veract/salesmind/internal/store"
)

// DefaultCompanyID is attached to records created through the assistant.
const DefaultCompanyID = "comp_001"

// Result is the outcome of executing one intent.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`

	// Entities are follow-up anchors (product id, category, ...) the
	// orchestrator stores in conversational memory.
	Entities map[string]string `json:"-"`
}

// Registry dispatches intents to their domain handlers.
type Registry struct {
	products  *ProductHandler
	sales     *SalesHandler
	analytics *AnalyticsHandler
	vendors   *VendorHandler
}

// NewRegistry wires all domain handlers over the given store.
func NewRegistry(st store.Store) *Registry {
	return &Registry{
		products:  &ProductHandler{store: st},
		sales:     &SalesHandler{store: st},
		analytics: &AnalyticsHandler{store: st},
		vendors:   &VendorHandler{store: st},
	}
}

// Dispatch executes the intent. Domain misses (no results, unknown id)
// come back as an unsuccessful Result; an error means the store failed or
// a write raced, in which case errors.Is against store.ErrConflict and
// store.ErrNotFound tells the caller whether a retry can succeed.
func (r *Registry) Dispatch(ctx context.Context, ci intent.ClassifiedIntent) (*Result, error) {
	switch ci.Intent {
	case intent.IntentSearchProduct:
		return r.products.Search(ctx, ci.Slots)
	case intent.IntentProductDetails:
		return r.products.Details(ctx, ci.Slots)
	case intent.IntentCreateProduct:
		return r.products.Create(ctx, ci.Slots)
	case intent.IntentUpdateProduct:
		return r.products.Update(ctx, ci.Slots)
	case intent.IntentSearchSales:
		return r.sales.Search(ctx, ci.Slots)
	case intent.IntentCreateSale:
		return r.sales.Create(ctx, ci.Slots)
	case intent.IntentUpdateSale:
		return r.sales.Update(ctx, ci.Slots)
	case intent.IntentGetAnalytics:
		return r.analytics.Summary(ctx, ci.Slots)
	case intent.IntentRecommend:
		return r.analytics.Recommend(ctx, ci.Slots)
	case intent.IntentSearchVendor:
		return r.vendors.Query(ctx, ci.Slots)
	}
	return nil, fmt.Errorf("no handler for intent %q", ci.Intent)
}

// isMiss reports whether the error is a plain record miss rather than a
// store failure.
func isMiss(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}
