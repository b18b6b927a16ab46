// Package validate implements the per-intent business-rule checks that run
// between entity extraction and routing. Validation never mutates state:
// referential checks are read-only lookups against the record store, and
// re-running a validation on the same input yields the same result.
package validate

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/veract/salesmind/internal/intent"
	"github.com/veract/salesmind/internal/store"
)

// Result reports whether an intent is complete and well-formed.
type Result struct {
	// Missing lists required slots absent from the intent.
	Missing []string
	// Violations lists user-facing rule violation messages.
	Violations []string
}

// OK reports whether the intent passed all checks.
func (r *Result) OK() bool {
	return len(r.Missing) == 0 && len(r.Violations) == 0
}

// Summary joins all problems into one user-facing line.
func (r *Result) Summary() string {
	var parts []string
	if len(r.Missing) > 0 {
		parts = append(parts, "missing: "+strings.Join(r.Missing, ", "))
	}
	parts = append(parts, r.Violations...)
	return strings.Join(parts, "; ")
}

// requiredSlots is the fixed per-intent required-slot table. Intents not
// listed require nothing.
var requiredSlots = map[intent.Intent][]string{
	intent.IntentCreateProduct:  {intent.SlotProductName, intent.SlotCategory, intent.SlotPrice},
	intent.IntentUpdateProduct:  {intent.SlotProductID},
	intent.IntentCreateSale:     {intent.SlotCustomerID, intent.SlotVariantID, intent.SlotQuantity},
	intent.IntentUpdateSale:     {intent.SlotSaleID},
	intent.IntentProductDetails: {intent.SlotProductID},
}

// updatableProductSlots are the fields an update_product may change.
var updatableProductSlots = []string{
	intent.SlotProductName, intent.SlotCategory, intent.SlotBrand,
	intent.SlotDescription, intent.SlotRating, intent.SlotPrice,
}

// updatableSaleSlots are the fields an update_sale may change.
var updatableSaleSlots = []string{
	intent.SlotStatus, intent.SlotMethod, intent.SlotDiscount, intent.SlotTotal,
}

// Engine checks classified intents against the rule tables and the store.
type Engine struct {
	store store.Store
}

// NewEngine creates a validation engine over the given record store.
func NewEngine(s store.Store) *Engine {
	return &Engine{store: s}
}

// RequiredSlots returns the required slot names for an intent.
func RequiredSlots(in intent.Intent) []string {
	return requiredSlots[in]
}

// AcceptedSlots returns the set of slot names the given intent consumes,
// required slots plus any updatable fields. The router uses it to decide
// whether a turn contributes to an outstanding operation.
func AcceptedSlots(in intent.Intent) map[string]struct{} {
	out := make(map[string]struct{})
	for _, name := range requiredSlots[in] {
		out[name] = struct{}{}
	}
	switch in {
	case intent.IntentCreateProduct, intent.IntentUpdateProduct:
		for _, name := range updatableProductSlots {
			out[name] = struct{}{}
		}
		// A create may carry a caller-chosen id, so an id offered while
		// the operation is outstanding counts as a contribution.
		out[intent.SlotProductID] = struct{}{}
	case intent.IntentCreateSale, intent.IntentUpdateSale:
		for _, name := range updatableSaleSlots {
			out[name] = struct{}{}
		}
	}
	return out
}

// Validate checks one classified intent. The returned error is reserved
// for store failures; rule problems land in the Result.
func (e *Engine) Validate(ctx context.Context, ci intent.ClassifiedIntent) (*Result, error) {
	res := &Result{}

	for _, name := range requiredSlots[ci.Intent] {
		if !ci.Slots.Has(name) {
			res.Missing = append(res.Missing, name)
		}
	}

	e.checkVocabulary(ci, res)
	e.checkNumbers(ci, res)

	if err := e.checkReferences(ctx, ci, res); err != nil {
		return nil, err
	}

	switch ci.Intent {
	case intent.IntentUpdateProduct:
		if ci.Slots.Has(intent.SlotProductID) && !hasAny(ci.Slots, updatableProductSlots) {
			res.Violations = append(res.Violations, "nothing to update: provide a new name, category, brand, description, rating, or price")
		}
	case intent.IntentUpdateSale:
		if ci.Slots.Has(intent.SlotSaleID) && !hasAny(ci.Slots, updatableSaleSlots) {
			res.Violations = append(res.Violations, "nothing to update: provide a new status, payment method, discount, or total")
		}
	}

	return res, nil
}

func hasAny(slots intent.Slots, names []string) bool {
	for _, n := range names {
		if slots.Has(n) {
			return true
		}
	}
	return false
}

func (e *Engine) checkVocabulary(ci intent.ClassifiedIntent, res *Result) {
	if ci.Slots.Has(intent.SlotCategory) {
		if c := ci.Slots.String(intent.SlotCategory); !intent.ValidCategory(c) {
			res.Violations = append(res.Violations,
				fmt.Sprintf("category must be one of: %s", strings.Join(intent.Categories, ", ")))
		}
	}
	if ci.Slots.Has(intent.SlotStatus) {
		if s := ci.Slots.String(intent.SlotStatus); !intent.ValidStatus(s) {
			res.Violations = append(res.Violations,
				fmt.Sprintf("payment status must be one of: %s", strings.Join(intent.PaymentStatuses, ", ")))
		}
	}
	if ci.Slots.Has(intent.SlotMethod) {
		if m := ci.Slots.String(intent.SlotMethod); !intent.ValidMethod(m) {
			res.Violations = append(res.Violations,
				fmt.Sprintf("payment method must be one of: %s", strings.Join(intent.PaymentMethods, ", ")))
		}
	}
}

func (e *Engine) checkNumbers(ci intent.ClassifiedIntent, res *Result) {
	positive := map[string]string{
		intent.SlotPrice: "retail price must be greater than 0",
		intent.SlotTotal: "total amount must be greater than 0",
	}
	for name, msg := range positive {
		if !ci.Slots.Has(name) {
			continue
		}
		if f, ok := ci.Slots.Float(name); !ok || f <= 0 {
			res.Violations = append(res.Violations, msg)
		}
	}

	// Quantities are counted in units; 0.5 of a line item is as invalid
	// as -1 of one.
	if ci.Slots.Has(intent.SlotQuantity) {
		if f, ok := ci.Slots.Float(intent.SlotQuantity); !ok || f < 1 || f != math.Trunc(f) {
			res.Violations = append(res.Violations, "quantity must be a whole number of at least 1")
		}
	}

	if ci.Slots.Has(intent.SlotDiscount) {
		if f, ok := ci.Slots.Float(intent.SlotDiscount); !ok || f < 0 {
			res.Violations = append(res.Violations, "discount cannot be negative")
		}
	}
	for _, name := range []string{intent.SlotRating, intent.SlotRatingMin} {
		if !ci.Slots.Has(name) {
			continue
		}
		if f, ok := ci.Slots.Float(name); !ok || f < 0 || f > 5 {
			res.Violations = append(res.Violations, "rating must be between 0 and 5")
		}
	}
}

// checkReferences runs read-only existence lookups for id slots.
func (e *Engine) checkReferences(ctx context.Context, ci intent.ClassifiedIntent, res *Result) error {
	switch ci.Intent {
	case intent.IntentCreateSale:
		if ci.Slots.Has(intent.SlotVariantID) {
			ok, err := e.store.VariantExists(ctx, ci.Slots.String(intent.SlotVariantID))
			if err != nil {
				return fmt.Errorf("variant lookup: %w", err)
			}
			if !ok {
				res.Violations = append(res.Violations,
					fmt.Sprintf("variant %q does not exist", ci.Slots.String(intent.SlotVariantID)))
			}
		}
	case intent.IntentUpdateProduct:
		if ci.Slots.Has(intent.SlotProductID) {
			if _, err := e.store.GetProduct(ctx, ci.Slots.String(intent.SlotProductID)); err != nil {
				if !errors.Is(err, store.ErrNotFound) {
					return fmt.Errorf("product lookup: %w", err)
				}
				res.Violations = append(res.Violations,
					fmt.Sprintf("product %q was not found", ci.Slots.String(intent.SlotProductID)))
			}
		}
	case intent.IntentUpdateSale:
		if ci.Slots.Has(intent.SlotSaleID) {
			if _, err := e.store.GetSale(ctx, ci.Slots.String(intent.SlotSaleID)); err != nil {
				if !errors.Is(err, store.ErrNotFound) {
					return fmt.Errorf("sale lookup: %w", err)
				}
				res.Violations = append(res.Violations,
					fmt.Sprintf("sale %q was not found", ci.Slots.String(intent.SlotSaleID)))
			}
		}
	}
	return nil
}
