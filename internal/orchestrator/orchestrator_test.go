package orchestrator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veract/salesmind/internal/handlers"
	"github.com/veract/salesmind/internal/intent"
	"github.com/veract/salesmind/internal/nlu"
	"github.com/veract/salesmind/internal/router"
	"github.com/veract/salesmind/internal/session"
	"github.com/veract/salesmind/internal/store"
	"github.com/veract/salesmind/internal/validate"
)

// stubClassifier maps scripted utterances to classifications. Anything
// unscripted comes back unknown, like a classifier that failed closed.
type stubClassifier struct {
	replies map[string]intent.ClassifiedIntent
}

func (s *stubClassifier) Extract(_ context.Context, utterance string, _ *session.ConversationMemory) intent.ClassifiedIntent {
	if ci, ok := s.replies[utterance]; ok {
		return ci
	}
	return intent.ClassifiedIntent{Intent: intent.IntentUnknown}
}

func newTestOrchestrator(t *testing.T, replies map[string]intent.ClassifiedIntent) (*Orchestrator, *store.DB) {
	t.Helper()
	db, err := store.NewMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Seed(context.Background()))

	orch := New(
		session.NewManager(session.WithSnapshots(db)),
		&stubClassifier{replies: replies},
		router.New(validate.NewEngine(db)),
		handlers.NewRegistry(db),
	)
	return orch, db
}

func submit(t *testing.T, o *Orchestrator, sessionID, utterance string) *Response {
	t.Helper()
	resp, err := o.Submit(context.Background(), sessionID, utterance)
	require.NoError(t, err)
	require.NotNil(t, resp)
	return resp
}

func TestQueryTurn(t *testing.T) {
	o, _ := newTestOrchestrator(t, map[string]intent.ClassifiedIntent{
		"show me electronics": {
			Intent:     intent.IntentSearchProduct,
			Confidence: 0.95,
			Slots:      intent.Slots{intent.SlotCategory: "Electronics"},
		},
	})

	resp := submit(t, o, "s1", "show me electronics")
	assert.Equal(t, StatusIdle, resp.Status)
	assert.Equal(t, router.StateDirect, resp.State)
	require.IsType(t, []store.Product{}, resp.Data)
	assert.Len(t, resp.Data.([]store.Product), 3)
}

func TestQueriesAreIdempotent(t *testing.T) {
	o, _ := newTestOrchestrator(t, map[string]intent.ClassifiedIntent{
		"show me electronics": {
			Intent:     intent.IntentSearchProduct,
			Confidence: 0.95,
			Slots:      intent.Slots{intent.SlotCategory: "Electronics"},
		},
	})

	first := submit(t, o, "s1", "show me electronics")
	second := submit(t, o, "s1", "show me electronics")
	assert.Equal(t, first.Text, second.Text)
	assert.Equal(t, first.Data, second.Data)
}

func TestMutationNeedsConfirmation(t *testing.T) {
	o, db := newTestOrchestrator(t, map[string]intent.ClassifiedIntent{
		"add a desk lamp": {
			Intent:     intent.IntentCreateProduct,
			Confidence: 0.9,
			Slots: intent.Slots{
				intent.SlotProductName: "Desk Lamp",
				intent.SlotCategory:    "Home",
				intent.SlotPrice:       float64(1299),
			},
		},
	})
	ctx := context.Background()

	resp := submit(t, o, "s1", "add a desk lamp")
	assert.Equal(t, StatusAwaitingConfirmation, resp.Status)
	assert.Contains(t, resp.Text, "confirm")

	// Nothing may be written before the confirmation.
	products, err := db.SearchProducts(ctx, store.ProductFilter{Query: "Desk Lamp"})
	require.NoError(t, err)
	assert.Empty(t, products)

	resp = submit(t, o, "s1", "yes")
	assert.Equal(t, router.StateConfirmed, resp.State)
	assert.Equal(t, StatusIdle, resp.Status)

	products, err = db.SearchProducts(ctx, store.ProductFilter{Query: "Desk Lamp"})
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "Home", products[0].Category)
}

func TestCancelDiscardsPending(t *testing.T) {
	o, db := newTestOrchestrator(t, map[string]intent.ClassifiedIntent{
		"add a desk lamp": {
			Intent:     intent.IntentCreateProduct,
			Confidence: 0.9,
			Slots: intent.Slots{
				intent.SlotProductName: "Desk Lamp",
				intent.SlotCategory:    "Home",
				intent.SlotPrice:       float64(1299),
			},
		},
	})

	submit(t, o, "s1", "add a desk lamp")
	resp := submit(t, o, "s1", "no")
	assert.Equal(t, router.StateCancelled, resp.State)
	assert.Equal(t, StatusIdle, resp.Status)

	products, err := db.SearchProducts(context.Background(), store.ProductFilter{Query: "Desk Lamp"})
	require.NoError(t, err)
	assert.Empty(t, products)
}

func TestSlotFillingRoundTrip(t *testing.T) {
	script := map[string]intent.ClassifiedIntent{
		"sell shoes to ravi": {
			Intent:     intent.IntentCreateSale,
			Confidence: 0.9,
			Slots:      intent.Slots{intent.SlotCustomerID: "cust_010"},
		},
		"the black uk 9 pair": {
			Intent:     intent.IntentCreateSale,
			Confidence: 0.8,
			Slots:      intent.Slots{intent.SlotVariantID: "var_003a"},
		},
		"two of them": {
			Intent:     intent.IntentCreateSale,
			Confidence: 0.8,
			Slots:      intent.Slots{intent.SlotQuantity: float64(2)},
		},
	}
	o, db := newTestOrchestrator(t, script)

	resp := submit(t, o, "s1", "sell shoes to ravi")
	assert.Equal(t, StatusAwaitingSlot, resp.Status)
	assert.Contains(t, resp.Text, "variant")

	resp = submit(t, o, "s1", "the black uk 9 pair")
	assert.Equal(t, StatusAwaitingSlot, resp.Status)
	assert.Contains(t, resp.Text, "quantity")

	resp = submit(t, o, "s1", "two of them")
	assert.Equal(t, StatusAwaitingConfirmation, resp.Status)

	resp = submit(t, o, "s1", "yes")
	assert.Equal(t, StatusIdle, resp.Status)

	sales, err := db.SearchSales(context.Background(), store.SaleFilter{CustomerID: "cust_010"})
	require.NoError(t, err)
	require.Len(t, sales, 1)
	// 2 x 12995 from the variant's retail price.
	assert.Equal(t, float64(25990), sales[0].Total)
	require.Len(t, sales[0].Items, 1)
	assert.Equal(t, 2, sales[0].Items[0].Qty)
}

func TestSingleTurnEqualsMultiTurn(t *testing.T) {
	single := map[string]intent.ClassifiedIntent{
		"full sale": {
			Intent:     intent.IntentCreateSale,
			Confidence: 0.9,
			Slots: intent.Slots{
				intent.SlotCustomerID: "cust_020",
				intent.SlotVariantID:  "var_003a",
				intent.SlotQuantity:   float64(2),
			},
		},
		"start sale": {
			Intent:     intent.IntentCreateSale,
			Confidence: 0.9,
			Slots:      intent.Slots{intent.SlotCustomerID: "cust_021"},
		},
		"finish sale": {
			Intent:     intent.IntentCreateSale,
			Confidence: 0.8,
			Slots: intent.Slots{
				intent.SlotVariantID: "var_003a",
				intent.SlotQuantity:  float64(2),
			},
		},
	}
	o, db := newTestOrchestrator(t, single)
	ctx := context.Background()

	submit(t, o, "s1", "full sale")
	submit(t, o, "s1", "yes")

	submit(t, o, "s2", "start sale")
	submit(t, o, "s2", "finish sale")
	submit(t, o, "s2", "yes")

	a, err := db.SearchSales(ctx, store.SaleFilter{CustomerID: "cust_020"})
	require.NoError(t, err)
	b, err := db.SearchSales(ctx, store.SaleFilter{CustomerID: "cust_021"})
	require.NoError(t, err)
	require.Len(t, a, 1)
	require.Len(t, b, 1)
	assert.Equal(t, a[0].Total, b[0].Total)
	assert.Equal(t, a[0].Items, b[0].Items)
	assert.Equal(t, a[0].PaymentStatus, b[0].PaymentStatus)
}

func TestNewMutationRejectedWhilePending(t *testing.T) {
	o, db := newTestOrchestrator(t, map[string]intent.ClassifiedIntent{
		"add a desk lamp": {
			Intent:     intent.IntentCreateProduct,
			Confidence: 0.9,
			Slots: intent.Slots{
				intent.SlotProductName: "Desk Lamp",
				intent.SlotCategory:    "Home",
				intent.SlotPrice:       float64(1299),
			},
		},
		"record a sale for meera": {
			Intent:     intent.IntentCreateSale,
			Confidence: 0.9,
			Slots: intent.Slots{
				intent.SlotCustomerID: "cust_030",
				intent.SlotVariantID:  "var_003a",
				intent.SlotQuantity:   float64(1),
			},
		},
	})

	submit(t, o, "s1", "add a desk lamp")
	resp := submit(t, o, "s1", "record a sale for meera")
	assert.Equal(t, StatusAwaitingConfirmation, resp.Status)
	assert.Contains(t, resp.Text, "yes")

	sales, err := db.SearchSales(context.Background(), store.SaleFilter{CustomerID: "cust_030"})
	require.NoError(t, err)
	assert.Empty(t, sales)

	// The original operation is still the one that confirms.
	submit(t, o, "s1", "yes")
	products, err := db.SearchProducts(context.Background(), store.ProductFilter{Query: "Desk Lamp"})
	require.NoError(t, err)
	assert.Len(t, products, 1)
}

func TestSideQuestionKeepsPending(t *testing.T) {
	o, _ := newTestOrchestrator(t, map[string]intent.ClassifiedIntent{
		"start sale": {
			Intent:     intent.IntentCreateSale,
			Confidence: 0.9,
			Slots:      intent.Slots{intent.SlotCustomerID: "cust_040"},
		},
		"show me electronics": {
			Intent:     intent.IntentSearchProduct,
			Confidence: 0.95,
			Slots:      intent.Slots{intent.SlotCategory: "Electronics"},
		},
	})

	resp := submit(t, o, "s1", "start sale")
	assert.Equal(t, StatusAwaitingSlot, resp.Status)

	resp = submit(t, o, "s1", "show me electronics")
	assert.Equal(t, router.StateDirect, resp.State)
	assert.Equal(t, StatusAwaitingSlot, resp.Status)
	assert.NotNil(t, resp.Data)
}

func TestConfirmWithNothingPending(t *testing.T) {
	o, _ := newTestOrchestrator(t, nil)

	resp := submit(t, o, "s1", "yes")
	assert.Equal(t, router.StateCancelled, resp.State)
	assert.Equal(t, StatusIdle, resp.Status)
}

func TestUnknownUtterance(t *testing.T) {
	o, _ := newTestOrchestrator(t, nil)

	resp := submit(t, o, "s1", "blorp the florp")
	assert.Equal(t, router.StateLowConfidence, resp.State)
	assert.Equal(t, StatusIdle, resp.Status)
	assert.Contains(t, resp.Text, "rephrase")
}

func TestEmptyUtterance(t *testing.T) {
	o, _ := newTestOrchestrator(t, nil)

	_, err := o.Submit(context.Background(), "s1", "   ")
	assert.ErrorIs(t, err, ErrEmptyUtterance)
}

func TestEntitiesRemembered(t *testing.T) {
	o, _ := newTestOrchestrator(t, map[string]intent.ClassifiedIntent{
		"tell me about the iphone": {
			Intent:     intent.IntentProductDetails,
			Confidence: 0.9,
			Slots:      intent.Slots{intent.SlotProductID: "prod_001"},
		},
	})

	submit(t, o, "s1", "tell me about the iphone")

	sess := o.sessions.Acquire(context.Background(), "s1")
	sess.Lock()
	defer sess.Unlock()
	assert.Equal(t, "prod_001", sess.Memory.Recall(session.EntityProductID))
	assert.Equal(t, "Electronics", sess.Memory.Recall(session.EntityCategory))
	require.Len(t, sess.Memory.Turns, 2)
	assert.Equal(t, session.RoleUser, sess.Memory.Turns[0].Role)
	assert.Equal(t, session.RoleAssistant, sess.Memory.Turns[1].Role)
}

func TestResetClearsState(t *testing.T) {
	o, _ := newTestOrchestrator(t, map[string]intent.ClassifiedIntent{
		"start sale": {
			Intent:     intent.IntentCreateSale,
			Confidence: 0.9,
			Slots:      intent.Slots{intent.SlotCustomerID: "cust_050"},
		},
	})
	ctx := context.Background()

	resp := submit(t, o, "s1", "start sale")
	assert.Equal(t, StatusAwaitingSlot, resp.Status)

	o.Reset(ctx, "s1")

	resp = submit(t, o, "s1", "yes")
	assert.Equal(t, router.StateCancelled, resp.State)
	assert.Equal(t, StatusIdle, resp.Status)
}

func TestSessionsAreIsolated(t *testing.T) {
	o, _ := newTestOrchestrator(t, map[string]intent.ClassifiedIntent{
		"add a desk lamp": {
			Intent:     intent.IntentCreateProduct,
			Confidence: 0.9,
			Slots: intent.Slots{
				intent.SlotProductName: "Desk Lamp",
				intent.SlotCategory:    "Home",
				intent.SlotPrice:       float64(1299),
			},
		},
	})

	resp := submit(t, o, "s1", "add a desk lamp")
	assert.Equal(t, StatusAwaitingConfirmation, resp.Status)

	// A second session sees no pending operation.
	resp = submit(t, o, "s2", "yes")
	assert.Equal(t, router.StateCancelled, resp.State)
	assert.Equal(t, StatusIdle, resp.Status)
}

func TestCreateWithTakenIDReopensForNewID(t *testing.T) {
	o, db := newTestOrchestrator(t, map[string]intent.ClassifiedIntent{
		"create product with id prod_001": {
			Intent:     intent.IntentCreateProduct,
			Confidence: 0.9,
			Slots: intent.Slots{
				intent.SlotProductID:   "prod_001",
				intent.SlotProductName: "Desk Lamp",
				intent.SlotCategory:    "Home",
				intent.SlotPrice:       float64(1299),
			},
		},
		"use prod_200 instead": {
			Intent:     intent.IntentCreateProduct,
			Confidence: 0.8,
			Slots:      intent.Slots{intent.SlotProductID: "prod_200"},
		},
	})
	ctx := context.Background()

	resp := submit(t, o, "s1", "create product with id prod_001")
	assert.Equal(t, StatusAwaitingConfirmation, resp.Status)

	// prod_001 is taken, so the confirm collides; the operation reopens
	// asking for a fresh id and keeps the other slots.
	resp = submit(t, o, "s1", "yes")
	assert.Equal(t, StatusAwaitingSlot, resp.Status)
	assert.Contains(t, resp.Text, "already exists")

	orig, err := db.GetProduct(ctx, "prod_001")
	require.NoError(t, err)
	assert.Equal(t, "Apple iPhone 15 Pro", orig.Name)

	resp = submit(t, o, "s1", "use prod_200 instead")
	assert.Equal(t, StatusAwaitingConfirmation, resp.Status)

	resp = submit(t, o, "s1", "yes")
	assert.Equal(t, StatusIdle, resp.Status)

	created, err := db.GetProduct(ctx, "prod_200")
	require.NoError(t, err)
	assert.Equal(t, "Desk Lamp", created.Name)
	assert.Equal(t, "Home", created.Category)
}

func TestDegradedModeStillServesQueries(t *testing.T) {
	db, err := store.NewMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Seed(context.Background()))

	provider := nlu.NewMockProvider()
	provider.SetAvailable(false)
	o := New(
		session.NewManager(session.WithSnapshots(db)),
		nlu.NewExtractor(provider, nlu.WithKeywordFallback(true)),
		router.New(validate.NewEngine(db)),
		handlers.NewRegistry(db),
	)

	// A keyword-matched read-only intent dispatches, not a rephrase prompt.
	resp := submit(t, o, "s1", "find running shoes")
	assert.Equal(t, router.StateDirect, resp.State)
	assert.Equal(t, StatusIdle, resp.Status)
	assert.NotNil(t, resp.Data)

	// A keyword-matched mutation still stops short of a write.
	resp = submit(t, o, "s1", "add a product")
	assert.Equal(t, StatusAwaitingSlot, resp.Status)
}

func TestReopenPendingClearsStaleReference(t *testing.T) {
	o, _ := newTestOrchestrator(t, nil)

	d := &router.Decision{
		State:  router.StateConfirmed,
		Intent: intent.IntentUpdateProduct,
		Execute: &intent.ClassifiedIntent{
			Intent: intent.IntentUpdateProduct,
			Slots: intent.Slots{
				intent.SlotProductID: "prod_gone",
				intent.SlotPrice:     float64(500),
			},
		},
	}
	reopened := o.reopenPending(d, store.ErrNotFound)
	assert.Equal(t, router.StateNeedsSlots, reopened.State)
	require.NotNil(t, reopened.SetPending)
	assert.Equal(t, session.PendingAwaitingSlots, reopened.SetPending.Status)
	assert.False(t, reopened.SetPending.Slots.Has(intent.SlotProductID))
	assert.True(t, reopened.SetPending.Slots.Has(intent.SlotPrice))
	assert.Contains(t, reopened.Missing, intent.SlotProductID)
}
