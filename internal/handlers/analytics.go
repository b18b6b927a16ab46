package handlers

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/veract/salesmind/internal/intent"
	"github.com/veract/salesmind/internal/session"
	"github.com/veract/salesmind/internal/store"
)

const (
	recommendLimit     = 5
	recommendMinRating = 4.0
)

// AnalyticsHandler computes sales summaries and product recommendations.
type AnalyticsHandler struct {
	store store.Store
}

// Summary aggregates sales over an optional date range.
type Summary struct {
	TotalSales     int     `json:"total_sales"`
	TotalRevenue   float64 `json:"total_revenue"`
	Paid           int     `json:"paid"`
	Pending        int     `json:"pending"`
	Cancelled      int     `json:"cancelled"`
	AvgTransaction float64 `json:"avg_transaction"`
	CompletionRate float64 `json:"completion_rate"`

	TopVariants []VariantCount `json:"top_variants,omitempty"`
}

// VariantCount is a variant's total quantity sold.
type VariantCount struct {
	VariantID string `json:"variant_id"`
	Qty       int    `json:"qty"`
}

// Summary computes the analytics summary. Revenue and the average
// transaction count paid sales only; the completion rate is paid over all.
func (h *AnalyticsHandler) Summary(ctx context.Context, slots intent.Slots) (*Result, error) {
	f := store.SaleFilter{}
	if t, ok := parseDate(slots.String(intent.SlotDateFrom)); ok {
		f.DateFrom = t
	}
	if t, ok := parseDate(slots.String(intent.SlotDateTo)); ok {
		f.DateTo = t.Add(24*time.Hour - time.Nanosecond)
	}

	sales, err := h.store.SearchSales(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("load sales: %w", err)
	}
	if len(sales) == 0 {
		return &Result{Success: false, Message: "No sales to summarize."}, nil
	}

	s := Summary{TotalSales: len(sales)}
	byVariant := map[string]int{}
	for _, sale := range sales {
		switch sale.PaymentStatus {
		case "PAID":
			s.Paid++
			s.TotalRevenue += sale.Total
		case "PENDING":
			s.Pending++
		case "CANCELLED":
			s.Cancelled++
		}
		for _, item := range sale.Items {
			byVariant[item.VariantID] += item.Qty
		}
	}
	if s.Paid > 0 {
		s.AvgTransaction = s.TotalRevenue / float64(s.Paid)
	}
	s.CompletionRate = float64(s.Paid) / float64(s.TotalSales)

	for id, qty := range byVariant {
		s.TopVariants = append(s.TopVariants, VariantCount{VariantID: id, Qty: qty})
	}
	sort.Slice(s.TopVariants, func(i, j int) bool {
		if s.TopVariants[i].Qty != s.TopVariants[j].Qty {
			return s.TopVariants[i].Qty > s.TopVariants[j].Qty
		}
		return s.TopVariants[i].VariantID < s.TopVariants[j].VariantID
	})
	if len(s.TopVariants) > recommendLimit {
		s.TopVariants = s.TopVariants[:recommendLimit]
	}

	return &Result{
		Success: true,
		Message: fmt.Sprintf("%d sale(s), %.2f revenue, %.0f%% completion.",
			s.TotalSales, s.TotalRevenue, s.CompletionRate*100),
		Data: s,
	}, nil
}

// Recommend returns highly rated products, narrowed to a category when one
// is provided. When nothing clears the rating bar the filter is relaxed.
func (h *AnalyticsHandler) Recommend(ctx context.Context, slots intent.Slots) (*Result, error) {
	category := slots.String(intent.SlotCategory)
	f := store.ProductFilter{
		Category:  category,
		RatingMin: recommendMinRating,
		Limit:     recommendLimit,
	}
	products, err := h.store.SearchProducts(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("search products: %w", err)
	}
	if len(products) == 0 {
		f.RatingMin = 0
		products, err = h.store.SearchProducts(ctx, f)
		if err != nil {
			return nil, fmt.Errorf("search products: %w", err)
		}
	}
	if len(products) == 0 {
		return &Result{Success: false, Message: "Nothing to recommend yet."}, nil
	}

	entities := map[string]string{}
	if category != "" {
		entities[session.EntityCategory] = category
	}
	msg := fmt.Sprintf("Top %d pick(s)", len(products))
	if category != "" {
		msg += " in " + category
	}
	return &Result{
		Success:  true,
		Message:  msg + ".",
		Data:     products,
		Entities: entities,
	}, nil
}
