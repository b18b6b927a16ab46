package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/veract/salesmind/internal/intent"
	"github.com/veract/salesmind/internal/session"
	"github.com/veract/salesmind/internal/store"
)

const defaultSearchLimit = 10

// ProductHandler serves catalogue queries and mutations.
type ProductHandler struct {
	store store.Store
}

// Search looks up products matching the slot filters.
func (h *ProductHandler) Search(ctx context.Context, slots intent.Slots) (*Result, error) {
	f := store.ProductFilter{
		Query:    slots.String(intent.SlotProductName),
		Category: slots.String(intent.SlotCategory),
		Brand:    slots.String(intent.SlotBrand),
		Limit:    defaultSearchLimit,
	}
	if v, ok := slots.Float(intent.SlotPriceMin); ok {
		f.PriceMin = v
	}
	if v, ok := slots.Float(intent.SlotPriceMax); ok {
		f.PriceMax = v
	}
	if v, ok := slots.Float(intent.SlotRatingMin); ok {
		f.RatingMin = v
	}
	if n, ok := slots.Int(intent.SlotLimit); ok && n > 0 {
		f.Limit = n
	}

	products, err := h.store.SearchProducts(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("search products: %w", err)
	}
	if len(products) == 0 {
		return &Result{Success: false, Message: "No products matched your search."}, nil
	}

	entities := map[string]string{}
	if f.Category != "" {
		entities[session.EntityCategory] = f.Category
	}
	if len(products) == 1 {
		entities[session.EntityProductID] = products[0].ID
	}
	return &Result{
		Success:  true,
		Message:  fmt.Sprintf("Found %d product(s).", len(products)),
		Data:     products,
		Entities: entities,
	}, nil
}

// Details returns a single product by id.
func (h *ProductHandler) Details(ctx context.Context, slots intent.Slots) (*Result, error) {
	id := slots.String(intent.SlotProductID)
	p, err := h.store.GetProduct(ctx, id)
	if err != nil {
		if isMiss(err) {
			return &Result{Success: false, Message: fmt.Sprintf("Product %s does not exist.", id)}, nil
		}
		return nil, fmt.Errorf("get product %s: %w", id, err)
	}
	return &Result{
		Success:  true,
		Message:  fmt.Sprintf("%s (%s), rated %.1f.", p.Name, p.Category, p.Rating),
		Data:     p,
		Entities: map[string]string{session.EntityProductID: p.ID, session.EntityCategory: p.Category},
	}, nil
}

// Create inserts a new product. The price slot becomes the retail price of
// a generated standard variant. An explicit product_id slot is honoured;
// otherwise an id is minted. A taken id surfaces as store.ErrConflict so
// the caller can ask for a different one.
func (h *ProductHandler) Create(ctx context.Context, slots intent.Slots) (*Result, error) {
	price, _ := slots.Float(intent.SlotPrice)
	stock := 0
	if n, ok := slots.Int(intent.SlotQuantity); ok {
		stock = n
	}
	id := slots.String(intent.SlotProductID)
	if id == "" {
		id = newID("prod")
	}
	p := &store.Product{
		ID:          id,
		CompanyID:   DefaultCompanyID,
		Name:        slots.String(intent.SlotProductName),
		Category:    slots.String(intent.SlotCategory),
		Brand:       slots.String(intent.SlotBrand),
		Description: slots.String(intent.SlotDescription),
		Variants: []store.Variant{{
			ID:          newID("var"),
			Name:        "Standard",
			RetailPrice: price,
			Stock:       stock,
		}},
	}
	if v, ok := slots.Float(intent.SlotRating); ok {
		p.Rating = v
	}

	if err := h.store.CreateProduct(ctx, p); err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}
	log.Info().Str("product_id", p.ID).Str("name", p.Name).Msg("product created")
	return &Result{
		Success:  true,
		Message:  fmt.Sprintf("Created product %q with id %s.", p.Name, p.ID),
		Data:     p,
		Entities: map[string]string{session.EntityProductID: p.ID, session.EntityCategory: p.Category},
	}, nil
}

// Update applies the provided slots to an existing product.
func (h *ProductHandler) Update(ctx context.Context, slots intent.Slots) (*Result, error) {
	id := slots.String(intent.SlotProductID)
	p, err := h.store.GetProduct(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get product %s: %w", id, err)
	}

	changed := []string{}
	if v := slots.String(intent.SlotProductName); v != "" {
		p.Name = v
		changed = append(changed, "name")
	}
	if v := slots.String(intent.SlotCategory); v != "" {
		p.Category = v
		changed = append(changed, "category")
	}
	if v := slots.String(intent.SlotBrand); v != "" {
		p.Brand = v
		changed = append(changed, "brand")
	}
	if v := slots.String(intent.SlotDescription); v != "" {
		p.Description = v
		changed = append(changed, "description")
	}
	if v, ok := slots.Float(intent.SlotRating); ok {
		p.Rating = v
		changed = append(changed, "rating")
	}
	if v, ok := slots.Float(intent.SlotPrice); ok && len(p.Variants) > 0 {
		p.Variants[0].RetailPrice = v
		changed = append(changed, "price")
	}

	if err := h.store.UpdateProduct(ctx, p); err != nil {
		return nil, fmt.Errorf("update product %s: %w", id, err)
	}
	log.Info().Str("product_id", id).Strs("fields", changed).Msg("product updated")
	return &Result{
		Success:  true,
		Message:  fmt.Sprintf("Updated %s on product %s.", strings.Join(changed, ", "), id),
		Data:     p,
		Entities: map[string]string{session.EntityProductID: p.ID},
	}, nil
}

func newID(prefix string) string {
	return prefix + "_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}
