// Package orchestrator runs the per-turn pipeline: resolve control
// tokens, classify the utterance, route it against the session's state,
// execute the chosen intent, and write the turn back into memory. It is
// the only component that mutates conversational memory.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/veract/salesmind/internal/handlers"
	"github.com/veract/salesmind/internal/intent"
	"github.com/veract/salesmind/internal/router"
	"github.com/veract/salesmind/internal/session"
	"github.com/veract/salesmind/internal/store"
)

// ErrEmptyUtterance is returned when the user message is blank.
var ErrEmptyUtterance = errors.New("empty utterance")

// Status is the session's conversational state after a turn.
type Status string

const (
	StatusIdle                 Status = "idle"
	StatusAwaitingSlot         Status = "awaiting_slot"
	StatusAwaitingConfirmation Status = "awaiting_confirmation"
)

// Response is the assistant's reply to one turn.
type Response struct {
	SessionID string        `json:"session_id"`
	Text      string        `json:"text"`
	Status    Status        `json:"status"`
	Intent    intent.Intent `json:"intent"`
	State     router.State  `json:"state"`
	Data      any           `json:"data,omitempty"`
}

// Classifier turns an utterance plus conversational memory into a
// classified intent. It degrades instead of failing.
type Classifier interface {
	Extract(ctx context.Context, utterance string, mem *session.ConversationMemory) intent.ClassifiedIntent
}

// Orchestrator wires the classifier, router, and domain handlers over the
// session manager.
type Orchestrator struct {
	sessions   *session.Manager
	classifier Classifier
	router     *router.Router
	registry   *handlers.Registry
}

// New creates an Orchestrator.
func New(sessions *session.Manager, classifier Classifier, rt *router.Router, registry *handlers.Registry) *Orchestrator {
	return &Orchestrator{
		sessions:   sessions,
		classifier: classifier,
		router:     rt,
		registry:   registry,
	}
}

// Submit processes one user turn. The session is locked for the whole
// turn, so turns within one session are strictly ordered.
func (o *Orchestrator) Submit(ctx context.Context, sessionID, utterance string) (*Response, error) {
	utterance = strings.TrimSpace(utterance)
	if utterance == "" {
		return nil, ErrEmptyUtterance
	}

	sess := o.sessions.Acquire(ctx, sessionID)
	sess.Lock()
	for sess.Evicted() {
		// The idle sweeper removed this session between Acquire and Lock;
		// re-acquire so the turn runs on the live session.
		sess.Unlock()
		sess = o.sessions.Acquire(ctx, sessionID)
		sess.Lock()
	}
	defer sess.Unlock()
	sess.Touch()
	mem := sess.Memory

	var ci intent.ClassifiedIntent
	if in, ok := o.router.ResolveControl(utterance); ok {
		ci = intent.ClassifiedIntent{Intent: in, Confidence: 1}
	} else {
		ci = o.classifier.Extract(ctx, utterance, mem)
	}

	d, err := o.router.Decide(ctx, ci, mem)
	if err != nil {
		return nil, fmt.Errorf("route turn: %w", err)
	}

	resp := &Response{
		SessionID: sessionID,
		Intent:    d.Intent,
		State:     d.State,
	}
	var entities map[string]string

	if d.Execute != nil {
		res, dispatchErr := o.registry.Dispatch(ctx, *d.Execute)
		switch {
		case dispatchErr == nil:
			resp.Text = res.Message
			resp.Data = res.Data
			entities = res.Entities
		case d.State == router.StateConfirmed && isStale(dispatchErr):
			// A confirmed operation raced a record change. Drop the stale
			// reference and put the operation back in slot filling rather
			// than losing the user's input.
			d = o.reopenPending(d, dispatchErr)
			resp.State = d.State
			resp.Text = staleMessage(dispatchErr) + " " + o.prompt(d)
		default:
			return nil, fmt.Errorf("execute %s: %w", d.Execute.Intent, dispatchErr)
		}
	} else {
		resp.Text = o.prompt(d)
	}

	if d.ClearPending {
		mem.ClearPending()
	}
	if d.SetPending != nil {
		mem.SetPending(d.SetPending.Intent, d.SetPending.Slots, d.SetPending.Status)
	}
	for name, value := range entities {
		mem.Remember(name, value)
	}
	mem.AddTurn(session.RoleUser, utterance)
	mem.AddTurn(session.RoleAssistant, resp.Text)
	resp.Status = pendingStatus(mem)

	if err := o.sessions.Persist(ctx, sess); err != nil {
		log.Warn().Err(err).Str("session_id", sessionID).Msg("snapshot write failed")
	}
	return resp, nil
}

// Reset discards the session's conversational state.
func (o *Orchestrator) Reset(ctx context.Context, sessionID string) {
	o.sessions.Reset(ctx, sessionID)
}

// reopenPending rewrites a confirmed decision whose execution hit a stale
// record: the identifying slot is cleared and the operation returns to
// slot filling.
func (o *Orchestrator) reopenPending(d *router.Decision, err error) *router.Decision {
	slots := d.Execute.Slots.Clone()
	var missing []string
	for _, name := range []string{intent.SlotProductID, intent.SlotSaleID, intent.SlotVariantID} {
		if slots.Has(name) {
			delete(slots, name)
			missing = append(missing, name)
		}
	}
	log.Warn().Err(err).Str("intent", d.Execute.Intent.String()).
		Strs("cleared", missing).Msg("confirmed operation hit a stale record")
	return &router.Decision{
		State:   router.StateNeedsSlots,
		Intent:  d.Execute.Intent,
		Missing: missing,
		SetPending: &router.PendingDirective{
			Intent: d.Execute.Intent,
			Slots:  slots,
			Status: session.PendingAwaitingSlots,
		},
	}
}

func isStale(err error) bool {
	return errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrConflict)
}

// staleMessage names the failure so the user knows whether to pick a new
// identifier or a different record.
func staleMessage(err error) string {
	if errors.Is(err, store.ErrConflict) {
		return "That identifier already exists."
	}
	return "That record was not found."
}

func pendingStatus(mem *session.ConversationMemory) Status {
	if mem.Pending == nil {
		return StatusIdle
	}
	if mem.Pending.Status == session.PendingAwaitingConfirmation {
		return StatusAwaitingConfirmation
	}
	return StatusAwaitingSlot
}
