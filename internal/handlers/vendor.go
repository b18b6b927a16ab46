package handlers

import (
	"context"
	"fmt"

	"github.com/veract/salesmind/internal/intent"
	"github.com/veract/salesmind/internal/session"
	"github.com/veract/salesmind/internal/store"
)

// VendorHandler serves supplier lookups.
type VendorHandler struct {
	store store.Store
}

// Query answers a vendor question: by id, by name substring, or the full
// list when neither is given.
func (h *VendorHandler) Query(ctx context.Context, slots intent.Slots) (*Result, error) {
	if id := slots.String(intent.SlotVendorID); id != "" {
		v, err := h.store.GetVendor(ctx, id)
		if err != nil {
			if isMiss(err) {
				return &Result{Success: false, Message: fmt.Sprintf("Vendor %s does not exist.", id)}, nil
			}
			return nil, fmt.Errorf("get vendor %s: %w", id, err)
		}
		return &Result{
			Success:  true,
			Message:  fmt.Sprintf("%s, contact %s (%s).", v.Name, v.Contact, v.Email),
			Data:     v,
			Entities: map[string]string{session.EntityVendorID: v.ID},
		}, nil
	}

	var (
		vendors []store.Vendor
		err     error
	)
	if name := slots.String(intent.SlotVendorName); name != "" {
		vendors, err = h.store.SearchVendors(ctx, name)
	} else {
		vendors, err = h.store.ListVendors(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("list vendors: %w", err)
	}
	if len(vendors) == 0 {
		return &Result{Success: false, Message: "No vendors matched."}, nil
	}

	entities := map[string]string{}
	if len(vendors) == 1 {
		entities[session.EntityVendorID] = vendors[0].ID
	}
	return &Result{
		Success:  true,
		Message:  fmt.Sprintf("Found %d vendor(s).", len(vendors)),
		Data:     vendors,
		Entities: entities,
	}, nil
}
