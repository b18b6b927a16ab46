package handlers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/veract/salesmind/internal/intent"
	"github.com/veract/salesmind/internal/session"
	"github.com/veract/salesmind/internal/store"
)

// SalesHandler serves transaction queries and mutations.
type SalesHandler struct {
	store store.Store
}

// Search looks up sales matching the slot filters. Date slots are
// accepted as YYYY-MM-DD.
func (h *SalesHandler) Search(ctx context.Context, slots intent.Slots) (*Result, error) {
	f := store.SaleFilter{
		CustomerID: slots.String(intent.SlotCustomerID),
		Status:     slots.String(intent.SlotStatus),
		Limit:      defaultSearchLimit,
	}
	if t, ok := parseDate(slots.String(intent.SlotDateFrom)); ok {
		f.DateFrom = t
	}
	if t, ok := parseDate(slots.String(intent.SlotDateTo)); ok {
		// Make the upper bound inclusive of the named day.
		f.DateTo = t.Add(24*time.Hour - time.Nanosecond)
	}
	if n, ok := slots.Int(intent.SlotLimit); ok && n > 0 {
		f.Limit = n
	}

	sales, err := h.store.SearchSales(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("search sales: %w", err)
	}
	if len(sales) == 0 {
		return &Result{Success: false, Message: "No sales matched your search."}, nil
	}

	entities := map[string]string{}
	if f.CustomerID != "" {
		entities[session.EntityCustomerID] = f.CustomerID
	}
	if len(sales) == 1 {
		entities[session.EntitySaleID] = sales[0].ID
	}
	return &Result{
		Success:  true,
		Message:  fmt.Sprintf("Found %d sale(s).", len(sales)),
		Data:     sales,
		Entities: entities,
	}, nil
}

// Create records a new sale. The line price comes from the variant's
// retail price; an explicit total slot overrides the computed amount.
func (h *SalesHandler) Create(ctx context.Context, slots intent.Slots) (*Result, error) {
	variantID := slots.String(intent.SlotVariantID)
	variant, err := h.store.GetVariant(ctx, variantID)
	if err != nil {
		return nil, fmt.Errorf("get variant %s: %w", variantID, err)
	}

	qty, _ := slots.Int(intent.SlotQuantity)
	discount := 0.0
	if v, ok := slots.Float(intent.SlotDiscount); ok {
		discount = v
	}
	total := variant.RetailPrice*float64(qty) - discount
	if v, ok := slots.Float(intent.SlotTotal); ok {
		total = v
	}
	status := slots.String(intent.SlotStatus)
	if status == "" {
		status = "PENDING"
	}
	method := slots.String(intent.SlotMethod)
	if method == "" {
		method = "CASH"
	}

	sale := &store.Sale{
		ID:            newID("sale"),
		CompanyID:     DefaultCompanyID,
		CustomerID:    slots.String(intent.SlotCustomerID),
		InvoiceNumber: "INV-" + strings.ToUpper(uuid.NewString()[:8]),
		Total:         total,
		Discount:      discount,
		PaymentStatus: status,
		PaymentMethod: method,
		CreatedAt:     time.Now().UTC(),
		Items: []store.SaleItem{{
			VariantID: variantID,
			Qty:       qty,
			Price:     variant.RetailPrice,
		}},
	}
	if err := h.store.CreateSale(ctx, sale); err != nil {
		return nil, fmt.Errorf("create sale: %w", err)
	}
	log.Info().Str("sale_id", sale.ID).Str("customer_id", sale.CustomerID).
		Float64("total", sale.Total).Msg("sale recorded")
	return &Result{
		Success: true,
		Message: fmt.Sprintf("Recorded sale %s for %.2f (%s, %s).",
			sale.ID, sale.Total, sale.PaymentStatus, sale.PaymentMethod),
		Data: sale,
		Entities: map[string]string{
			session.EntitySaleID:     sale.ID,
			session.EntityCustomerID: sale.CustomerID,
		},
	}, nil
}

// Update applies the provided slots to an existing sale.
func (h *SalesHandler) Update(ctx context.Context, slots intent.Slots) (*Result, error) {
	id := slots.String(intent.SlotSaleID)
	sale, err := h.store.GetSale(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get sale %s: %w", id, err)
	}

	changed := []string{}
	if v := slots.String(intent.SlotStatus); v != "" {
		sale.PaymentStatus = v
		changed = append(changed, "payment status")
	}
	if v := slots.String(intent.SlotMethod); v != "" {
		sale.PaymentMethod = v
		changed = append(changed, "payment method")
	}
	if v, ok := slots.Float(intent.SlotDiscount); ok {
		sale.Discount = v
		changed = append(changed, "discount")
	}
	if v, ok := slots.Float(intent.SlotTotal); ok {
		sale.Total = v
		changed = append(changed, "total")
	}

	if err := h.store.UpdateSale(ctx, sale); err != nil {
		return nil, fmt.Errorf("update sale %s: %w", id, err)
	}
	log.Info().Str("sale_id", id).Strs("fields", changed).Msg("sale updated")
	return &Result{
		Success:  true,
		Message:  fmt.Sprintf("Updated %s on sale %s.", strings.Join(changed, ", "), id),
		Data:     sale,
		Entities: map[string]string{session.EntitySaleID: sale.ID},
	}, nil
}

func parseDate(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
