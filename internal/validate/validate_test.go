package validate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veract/salesmind/internal/intent"
	"github.com/veract/salesmind/internal/store"
)

func newEngine(t *testing.T) *Engine {
	t.Helper()
	db, err := store.NewMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Seed(context.Background()))
	return NewEngine(db)
}

func TestValidate_RequiredSlots(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	tests := []struct {
		name        string
		ci          intent.ClassifiedIntent
		wantMissing []string
	}{
		{
			name:        "create_product with nothing",
			ci:          intent.ClassifiedIntent{Intent: intent.IntentCreateProduct, Slots: intent.Slots{}},
			wantMissing: []string{intent.SlotProductName, intent.SlotCategory, intent.SlotPrice},
		},
		{
			name: "create_product partially filled",
			ci: intent.ClassifiedIntent{Intent: intent.IntentCreateProduct, Slots: intent.Slots{
				intent.SlotProductName: "Kettle",
			}},
			wantMissing: []string{intent.SlotCategory, intent.SlotPrice},
		},
		{
			name: "create_sale missing item fields",
			ci: intent.ClassifiedIntent{Intent: intent.IntentCreateSale, Slots: intent.Slots{
				intent.SlotCustomerID: "cust_001",
			}},
			wantMissing: []string{intent.SlotVariantID, intent.SlotQuantity},
		},
		{
			name: "search needs nothing",
			ci:   intent.ClassifiedIntent{Intent: intent.IntentSearchProduct, Slots: intent.Slots{}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := e.Validate(ctx, tt.ci)
			require.NoError(t, err)
			assert.Equal(t, tt.wantMissing, res.Missing)
		})
	}
}

func TestValidate_Rules(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		ci     intent.ClassifiedIntent
		wantOK bool
	}{
		{
			name: "valid create_product",
			ci: intent.ClassifiedIntent{Intent: intent.IntentCreateProduct, Slots: intent.Slots{
				intent.SlotProductName: "Kettle",
				intent.SlotCategory:    "Home",
				intent.SlotPrice:       1499.0,
			}},
			wantOK: true,
		},
		{
			name: "zero price rejected",
			ci: intent.ClassifiedIntent{Intent: intent.IntentCreateProduct, Slots: intent.Slots{
				intent.SlotProductName: "Kettle",
				intent.SlotCategory:    "Home",
				intent.SlotPrice:       0.0,
			}},
		},
		{
			name: "unknown category rejected",
			ci: intent.ClassifiedIntent{Intent: intent.IntentCreateProduct, Slots: intent.Slots{
				intent.SlotProductName: "Kettle",
				intent.SlotCategory:    "Appliances",
				intent.SlotPrice:       1499.0,
			}},
		},
		{
			name: "bad payment status rejected",
			ci: intent.ClassifiedIntent{Intent: intent.IntentSearchSales, Slots: intent.Slots{
				intent.SlotStatus: "REFUNDED",
			}},
		},
		{
			name: "bad payment method rejected",
			ci: intent.ClassifiedIntent{Intent: intent.IntentCreateSale, Slots: intent.Slots{
				intent.SlotCustomerID: "cust_001",
				intent.SlotVariantID:  "var_001a",
				intent.SlotQuantity:   1.0,
				intent.SlotMethod:     "CHEQUE",
			}},
		},
		{
			name: "fractional quantity rejected",
			ci: intent.ClassifiedIntent{Intent: intent.IntentCreateSale, Slots: intent.Slots{
				intent.SlotCustomerID: "cust_001",
				intent.SlotVariantID:  "var_001a",
				intent.SlotQuantity:   0.5,
			}},
		},
		{
			name: "zero quantity rejected",
			ci: intent.ClassifiedIntent{Intent: intent.IntentCreateSale, Slots: intent.Slots{
				intent.SlotCustomerID: "cust_001",
				intent.SlotVariantID:  "var_001a",
				intent.SlotQuantity:   0.0,
			}},
		},
		{
			name: "whole quantity accepted",
			ci: intent.ClassifiedIntent{Intent: intent.IntentCreateSale, Slots: intent.Slots{
				intent.SlotCustomerID: "cust_001",
				intent.SlotVariantID:  "var_001a",
				intent.SlotQuantity:   3.0,
			}},
			wantOK: true,
		},
		{
			name: "rating out of range rejected",
			ci: intent.ClassifiedIntent{Intent: intent.IntentSearchProduct, Slots: intent.Slots{
				intent.SlotRatingMin: 7.0,
			}},
		},
		{
			name: "negative discount rejected",
			ci: intent.ClassifiedIntent{Intent: intent.IntentUpdateSale, Slots: intent.Slots{
				intent.SlotSaleID:   "sale_001",
				intent.SlotDiscount: -5.0,
			}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := e.Validate(ctx, tt.ci)
			require.NoError(t, err)
			assert.Equal(t, tt.wantOK, res.OK(), "violations: %v", res.Violations)
		})
	}
}

func TestValidate_ReferentialChecks(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	t.Run("create_sale with real variant", func(t *testing.T) {
		res, err := e.Validate(ctx, intent.ClassifiedIntent{
			Intent: intent.IntentCreateSale,
			Slots: intent.Slots{
				intent.SlotCustomerID: "cust_001",
				intent.SlotVariantID:  "var_001a",
				intent.SlotQuantity:   2.0,
			},
		})
		require.NoError(t, err)
		assert.True(t, res.OK())
	})

	t.Run("create_sale with ghost variant", func(t *testing.T) {
		res, err := e.Validate(ctx, intent.ClassifiedIntent{
			Intent: intent.IntentCreateSale,
			Slots: intent.Slots{
				intent.SlotCustomerID: "cust_001",
				intent.SlotVariantID:  "var_999z",
				intent.SlotQuantity:   2.0,
			},
		})
		require.NoError(t, err)
		assert.False(t, res.OK())
	})

	t.Run("update_product must exist", func(t *testing.T) {
		res, err := e.Validate(ctx, intent.ClassifiedIntent{
			Intent: intent.IntentUpdateProduct,
			Slots: intent.Slots{
				intent.SlotProductID: "prod_999",
				intent.SlotRating:    4.0,
			},
		})
		require.NoError(t, err)
		assert.False(t, res.OK())
	})

	t.Run("update_sale must exist", func(t *testing.T) {
		res, err := e.Validate(ctx, intent.ClassifiedIntent{
			Intent: intent.IntentUpdateSale,
			Slots: intent.Slots{
				intent.SlotSaleID: "sale_999",
				intent.SlotStatus: "PAID",
			},
		})
		require.NoError(t, err)
		assert.False(t, res.OK())
	})

	t.Run("update_product with no changes flagged", func(t *testing.T) {
		res, err := e.Validate(ctx, intent.ClassifiedIntent{
			Intent: intent.IntentUpdateProduct,
			Slots:  intent.Slots{intent.SlotProductID: "prod_001"},
		})
		require.NoError(t, err)
		assert.False(t, res.OK())
		assert.Empty(t, res.Missing)
	})
}

func TestAcceptedSlots_CreateProductTakesExplicitID(t *testing.T) {
	_, ok := AcceptedSlots(intent.IntentCreateProduct)[intent.SlotProductID]
	assert.True(t, ok)
}

func TestValidate_Idempotent(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	ci := intent.ClassifiedIntent{Intent: intent.IntentCreateProduct, Slots: intent.Slots{
		intent.SlotProductName: "Kettle",
	}}

	first, err := e.Validate(ctx, ci)
	require.NoError(t, err)
	second, err := e.Validate(ctx, ci)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
