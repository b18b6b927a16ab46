// Package session holds per-session conversational state: the rolling turn
// history, remembered entities, and the single pending operation awaiting
// slots or confirmation. The Manager owns the session table and serializes
// turns within a session while letting unrelated sessions proceed freely.
package session

import (
	"time"

	"github.com/veract/salesmind/internal/intent"
)

// Remembered entity names. The extractor reads them back to resolve
// anaphora ("show more", "that one") against earlier turns.
const (
	EntityCategory   = "category"
	EntityProductID  = "product_id"
	EntityCustomerID = "customer_id"
	EntityBrand      = "brand"
	EntityVendorID   = "vendor_id"
	EntitySaleID     = "sale_id"
)

// DefaultHistoryWindow bounds the turn history kept per session.
const DefaultHistoryWindow = 20

// Turn roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one message in the conversation history.
type Turn struct {
	Role    string    `json:"role"`
	Content string    `json:"content"`
	At      time.Time `json:"at"`
}

// PendingStatus describes what a pending operation is waiting for.
type PendingStatus string

const (
	// PendingAwaitingSlots means required slots are still missing.
	PendingAwaitingSlots PendingStatus = "awaiting_slots"
	// PendingAwaitingConfirmation means the operation is complete and
	// waits for an explicit user confirmation before dispatch.
	PendingAwaitingConfirmation PendingStatus = "awaiting_confirmation"
)

// PendingOperation is a mutating intent captured mid-flight. At most one
// exists per session; the sequence number increases monotonically so a
// superseded operation can never be confused with its replacement.
type PendingOperation struct {
	Intent    intent.Intent `json:"intent"`
	Slots     intent.Slots  `json:"slots"`
	Seq       uint64        `json:"seq"`
	Status    PendingStatus `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
}

// ConversationMemory is the rolling state for one session. It is mutated
// only by the orchestrator at the end of a turn, under the session lock.
type ConversationMemory struct {
	Turns    []Turn            `json:"turns"`
	Entities map[string]string `json:"entities"`
	Pending  *PendingOperation `json:"pending,omitempty"`

	window  int
	nextSeq uint64
}

// NewMemory creates an empty memory with the given history window.
// A window of 0 uses DefaultHistoryWindow.
func NewMemory(window int) *ConversationMemory {
	if window <= 0 {
		window = DefaultHistoryWindow
	}
	return &ConversationMemory{
		Entities: make(map[string]string),
		window:   window,
		nextSeq:  1,
	}
}

// AddTurn appends a turn, trimming the oldest beyond the window.
func (m *ConversationMemory) AddTurn(role, content string) {
	m.Turns = append(m.Turns, Turn{Role: role, Content: content, At: time.Now()})
	if len(m.Turns) > m.window {
		m.Turns = m.Turns[len(m.Turns)-m.window:]
	}
}

// RecentTurns returns up to n most recent turns, oldest first.
func (m *ConversationMemory) RecentTurns(n int) []Turn {
	if n <= 0 || n >= len(m.Turns) {
		return m.Turns
	}
	return m.Turns[len(m.Turns)-n:]
}

// Remember records the last-seen value for a named entity. Empty values
// are ignored so a turn without the entity does not erase it.
func (m *ConversationMemory) Remember(name, value string) {
	if value == "" {
		return
	}
	m.Entities[name] = value
}

// Recall returns the remembered value for an entity, or "".
func (m *ConversationMemory) Recall(name string) string {
	return m.Entities[name]
}

// SetPending installs a new pending operation, replacing any previous one.
// The returned operation carries the next sequence number.
func (m *ConversationMemory) SetPending(in intent.Intent, slots intent.Slots, status PendingStatus) *PendingOperation {
	op := &PendingOperation{
		Intent:    in,
		Slots:     slots.Clone(),
		Seq:       m.nextSeq,
		Status:    status,
		CreatedAt: time.Now(),
	}
	m.nextSeq++
	m.Pending = op
	return op
}

// ClearPending discards the pending operation, if any.
func (m *ConversationMemory) ClearPending() {
	m.Pending = nil
}

// Reset clears all conversational state while keeping the window setting.
func (m *ConversationMemory) Reset() {
	m.Turns = nil
	m.Entities = make(map[string]string)
	m.Pending = nil
}
