package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veract/salesmind/internal/intent"
	"github.com/veract/salesmind/internal/store"
)

func TestMemory_HistoryWindow(t *testing.T) {
	m := NewMemory(4)
	for i := 0; i < 10; i++ {
		m.AddTurn("user", "message")
	}
	assert.Len(t, m.Turns, 4)

	recent := m.RecentTurns(2)
	assert.Len(t, recent, 2)
	assert.Len(t, m.RecentTurns(100), 4)
}

func TestMemory_Entities(t *testing.T) {
	m := NewMemory(0)
	m.Remember(EntityCategory, "Electronics")
	m.Remember(EntityCategory, "") // empty must not erase
	assert.Equal(t, "Electronics", m.Recall(EntityCategory))
	assert.Equal(t, "", m.Recall(EntityCustomerID))
}

func TestMemory_PendingSequence(t *testing.T) {
	m := NewMemory(0)

	op1 := m.SetPending(intent.IntentCreateProduct, intent.Slots{intent.SlotProductName: "X"}, PendingAwaitingSlots)
	op2 := m.SetPending(intent.IntentCreateProduct, intent.Slots{intent.SlotProductName: "Y"}, PendingAwaitingConfirmation)

	assert.Greater(t, op2.Seq, op1.Seq)
	require.NotNil(t, m.Pending)
	assert.Equal(t, "Y", m.Pending.Slots.String(intent.SlotProductName))

	m.ClearPending()
	assert.Nil(t, m.Pending)
}

func TestMemory_SetPendingClonesSlots(t *testing.T) {
	m := NewMemory(0)
	slots := intent.Slots{intent.SlotCategory: "Home"}
	op := m.SetPending(intent.IntentCreateProduct, slots, PendingAwaitingSlots)

	slots[intent.SlotCategory] = "Sports"
	assert.Equal(t, "Home", op.Slots.String(intent.SlotCategory))
}

func TestManager_AcquireCreatesOnce(t *testing.T) {
	m := NewManager()
	ctx := context.Background()

	a := m.Acquire(ctx, "sess-1")
	b := m.Acquire(ctx, "sess-1")
	assert.Same(t, a, b)
	assert.Equal(t, 1, m.Len())
}

func TestManager_Reset(t *testing.T) {
	m := NewManager()
	ctx := context.Background()

	sess := m.Acquire(ctx, "sess-1")
	sess.Lock()
	sess.Memory.AddTurn("user", "hello")
	sess.Memory.Remember(EntityCategory, "Fashion")
	sess.Memory.SetPending(intent.IntentCreateSale, intent.Slots{}, PendingAwaitingConfirmation)
	sess.Unlock()

	m.Reset(ctx, "sess-1")

	assert.Empty(t, sess.Memory.Turns)
	assert.Empty(t, sess.Memory.Entities)
	assert.Nil(t, sess.Memory.Pending)
}

func TestManager_EvictIdleDiscardsPending(t *testing.T) {
	m := NewManager(WithIdleTimeout(10 * time.Millisecond))
	ctx := context.Background()

	sess := m.Acquire(ctx, "sess-idle")
	sess.Lock()
	sess.Memory.SetPending(intent.IntentCreateProduct, intent.Slots{}, PendingAwaitingConfirmation)
	sess.lastActivity = time.Now().Add(-time.Minute)
	sess.Unlock()

	fresh := m.Acquire(ctx, "sess-fresh")
	fresh.Lock()
	fresh.Touch()
	fresh.Unlock()

	evicted := m.EvictIdle(ctx)
	assert.Equal(t, []string{"sess-idle"}, evicted)
	assert.Equal(t, 1, m.Len())
	assert.Nil(t, sess.Memory.Pending)
}

func TestManager_EvictIdleSkipsInFlightTurn(t *testing.T) {
	m := NewManager(WithIdleTimeout(10 * time.Millisecond))
	ctx := context.Background()

	sess := m.Acquire(ctx, "sess-busy")
	sess.Lock()
	sess.lastActivity = time.Now().Add(-time.Minute)

	// A held session lock means a turn is in flight; the sweeper must
	// leave the session alone.
	assert.Empty(t, m.EvictIdle(ctx))
	assert.Equal(t, 1, m.Len())
	sess.Unlock()

	assert.Equal(t, []string{"sess-busy"}, m.EvictIdle(ctx))
	assert.Equal(t, 0, m.Len())
}

func TestManager_EvictIdleMarksHandleAndReacquires(t *testing.T) {
	m := NewManager(WithIdleTimeout(10 * time.Millisecond))
	ctx := context.Background()

	old := m.Acquire(ctx, "sess-gone")
	old.Lock()
	old.lastActivity = time.Now().Add(-time.Minute)
	old.Unlock()

	m.EvictIdle(ctx)

	old.Lock()
	assert.True(t, old.Evicted())
	old.Unlock()

	fresh := m.Acquire(ctx, "sess-gone")
	assert.NotSame(t, old, fresh)
	fresh.Lock()
	assert.False(t, fresh.Evicted())
	fresh.Unlock()
}

func TestManager_EvictIdleConcurrentTouch(t *testing.T) {
	m := NewManager(WithIdleTimeout(time.Hour))
	ctx := context.Background()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			sess := m.Acquire(ctx, "sess-active")
			sess.Lock()
			if !sess.Evicted() {
				sess.Touch()
			}
			sess.Unlock()
		}
	}()
	for i := 0; i < 200; i++ {
		m.EvictIdle(ctx)
	}
	<-done

	// An actively touched session never goes idle.
	assert.Equal(t, 1, m.Len())
}

func TestManager_SnapshotRoundTrip(t *testing.T) {
	db, err := store.NewMemory()
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	m := NewManager(WithSnapshots(db), WithHistoryWindow(10))

	sess := m.Acquire(ctx, "sess-durable")
	sess.Lock()
	sess.Memory.AddTurn("user", "show me electronics")
	sess.Memory.AddTurn("assistant", "here you go")
	sess.Memory.Remember(EntityCategory, "Electronics")
	sess.Memory.SetPending(intent.IntentCreateProduct,
		intent.Slots{intent.SlotProductName: "Widget"}, PendingAwaitingConfirmation)
	require.NoError(t, m.Persist(ctx, sess))
	sess.Unlock()

	// A fresh manager simulates a process restart.
	m2 := NewManager(WithSnapshots(db), WithHistoryWindow(10))
	restored := m2.Acquire(ctx, "sess-durable")

	assert.Len(t, restored.Memory.Turns, 2)
	assert.Equal(t, "Electronics", restored.Memory.Recall(EntityCategory))
	require.NotNil(t, restored.Memory.Pending)
	assert.Equal(t, intent.IntentCreateProduct, restored.Memory.Pending.Intent)
	assert.Equal(t, PendingAwaitingConfirmation, restored.Memory.Pending.Status)

	// Sequence numbers stay monotonic across the restart.
	next := restored.Memory.SetPending(intent.IntentCreateSale, intent.Slots{}, PendingAwaitingSlots)
	assert.Greater(t, next.Seq, uint64(1))
}
