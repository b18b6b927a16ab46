package router

import (
	"context"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/veract/salesmind/internal/intent"
	"github.com/veract/salesmind/internal/session"
	"github.com/veract/salesmind/internal/validate"
)

const (
	// DefaultThresholdHigh is the confidence above which an intent is
	// acted on without disambiguation.
	DefaultThresholdHigh = 0.7
	// DefaultThresholdLow is the confidence below which the user is
	// asked to rephrase.
	DefaultThresholdLow = 0.4
)

// confirmTokens and cancelTokens form the closed control vocabulary.
// Control turns are resolved by exact match before classification so a
// bare "yes" never round-trips through the model.
var confirmTokens = map[string]struct{}{
	"yes": {}, "y": {}, "yeah": {}, "yep": {}, "confirm": {},
	"ok": {}, "okay": {}, "sure": {}, "proceed": {}, "go ahead": {},
	"do it": {}, "yes please": {},
}

var cancelTokens = map[string]struct{}{
	"no": {}, "n": {}, "nope": {}, "cancel": {}, "abort": {},
	"stop": {}, "nevermind": {}, "never mind": {}, "forget it": {},
	"don't": {}, "dont": {},
}

// Router turns a classified intent and the session's memory into a
// Decision. It is safe for concurrent use.
type Router struct {
	validator     *validate.Engine
	thresholdHigh float64
	thresholdLow  float64

	mu            sync.RWMutex
	stats         Stats
	confidenceSum float64
}

// Option configures a Router.
type Option func(*Router)

// WithThresholds overrides the confidence thresholds. Values outside
// (0,1] or an inverted pair are ignored.
func WithThresholds(low, high float64) Option {
	return func(r *Router) {
		if low > 0 && high <= 1 && low < high {
			r.thresholdLow = low
			r.thresholdHigh = high
		}
	}
}

// New creates a Router backed by the given validation engine.
func New(validator *validate.Engine, opts ...Option) *Router {
	r := &Router{
		validator:     validator,
		thresholdHigh: DefaultThresholdHigh,
		thresholdLow:  DefaultThresholdLow,
		stats:         Stats{ByState: make(map[State]int64)},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ResolveControl matches an utterance against the closed confirm/cancel
// vocabulary. It runs before classification; anything that does not
// match exactly falls through to the classifier.
func (r *Router) ResolveControl(utterance string) (intent.Intent, bool) {
	token := normalizeControl(utterance)
	if _, ok := confirmTokens[token]; ok {
		return intent.IntentConfirm, true
	}
	if _, ok := cancelTokens[token]; ok {
		return intent.IntentCancel, true
	}
	return intent.IntentUnknown, false
}

func normalizeControl(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimRight(s, ".!?")
	return strings.TrimSpace(s)
}

// Decide routes one turn. mem is read-only here; the returned Decision
// carries any pending-operation changes as directives.
func (r *Router) Decide(ctx context.Context, ci intent.ClassifiedIntent, mem *session.ConversationMemory) (*Decision, error) {
	d, err := r.decide(ctx, ci, mem)
	if err != nil {
		return nil, err
	}
	r.record(d)
	log.Debug().
		Str("intent", ci.Intent.String()).
		Float64("confidence", ci.Confidence).
		Str("state", d.State.String()).
		Msg("turn routed")
	return d, nil
}

func (r *Router) decide(ctx context.Context, ci intent.ClassifiedIntent, mem *session.ConversationMemory) (*Decision, error) {
	pending := mem.Pending

	switch ci.Intent {
	case intent.IntentConfirm:
		if pending != nil && pending.Status == session.PendingAwaitingConfirmation {
			return &Decision{
				State:      StateConfirmed,
				Intent:     pending.Intent,
				Confidence: ci.Confidence,
				Execute: &intent.ClassifiedIntent{
					Intent:     pending.Intent,
					Confidence: ci.Confidence,
					Slots:      pending.Slots.Clone(),
				},
				ClearPending: true,
			}, nil
		}
		// Confirm with nothing to confirm. A pending slot request cannot
		// be satisfied by "yes" either, so acknowledge and move on.
		return &Decision{
			State:        StateCancelled,
			Intent:       intent.IntentConfirm,
			Confidence:   ci.Confidence,
			ClearPending: pending != nil,
		}, nil

	case intent.IntentCancel:
		return &Decision{
			State:        StateCancelled,
			Intent:       intent.IntentCancel,
			Confidence:   ci.Confidence,
			ClearPending: pending != nil,
		}, nil
	}

	if pending != nil {
		switch pending.Status {
		case session.PendingAwaitingConfirmation:
			return r.decideWhileConfirming(ctx, ci, pending)
		case session.PendingAwaitingSlots:
			return r.decideWhileFilling(ctx, ci, pending)
		}
	}

	return r.decideFresh(ctx, ci)
}

// decideFresh handles a turn with no outstanding pending operation.
func (r *Router) decideFresh(ctx context.Context, ci intent.ClassifiedIntent) (*Decision, error) {
	if ci.Intent == intent.IntentUnknown || ci.Confidence < r.thresholdLow {
		return &Decision{
			State:      StateLowConfidence,
			Intent:     ci.Intent,
			Confidence: ci.Confidence,
		}, nil
	}
	if ci.Confidence < r.thresholdHigh {
		return &Decision{
			State:      StateAmbiguous,
			Intent:     ci.Intent,
			Confidence: ci.Confidence,
		}, nil
	}

	res, err := r.validator.Validate(ctx, ci)
	if err != nil {
		return nil, err
	}
	if len(res.Missing) > 0 {
		d := &Decision{
			State:      StateNeedsSlots,
			Intent:     ci.Intent,
			Confidence: ci.Confidence,
			Missing:    res.Missing,
		}
		// Only mutating intents carry a pending operation; read-side
		// prompts are answered statelessly via memory.
		if ci.Intent.IsMutating() {
			d.SetPending = &PendingDirective{
				Intent: ci.Intent,
				Slots:  ci.Slots.Clone(),
				Status: session.PendingAwaitingSlots,
			}
		}
		return d, nil
	}
	if len(res.Violations) > 0 {
		return &Decision{
			State:      StateRejected,
			Intent:     ci.Intent,
			Confidence: ci.Confidence,
			Violations: res.Violations,
		}, nil
	}
	if ci.Intent.IsMutating() {
		return &Decision{
			State:      StateNeedsConfirmation,
			Intent:     ci.Intent,
			Confidence: ci.Confidence,
			SetPending: &PendingDirective{
				Intent: ci.Intent,
				Slots:  ci.Slots.Clone(),
				Status: session.PendingAwaitingConfirmation,
			},
		}, nil
	}
	return &Decision{
		State:      StateDirect,
		Intent:     ci.Intent,
		Confidence: ci.Confidence,
		Execute:    &ci,
	}, nil
}

// decideWhileConfirming handles a turn while a mutating operation sits at
// the confirmation gate. Only confirm, cancel, a correction to one of the
// operation's slots, or a complete restatement of the same intent are
// accepted; anything else re-prompts.
func (r *Router) decideWhileConfirming(ctx context.Context, ci intent.ClassifiedIntent, pending *session.PendingOperation) (*Decision, error) {
	if ci.Intent == pending.Intent {
		merged := pending.Slots.Clone()
		for k, v := range ci.Slots {
			merged[k] = v
		}
		res, err := r.validator.Validate(ctx, intent.ClassifiedIntent{Intent: pending.Intent, Slots: merged})
		if err != nil {
			return nil, err
		}
		if res.OK() {
			return &Decision{
				State:      StateNeedsConfirmation,
				Intent:     pending.Intent,
				Confidence: ci.Confidence,
				SetPending: &PendingDirective{
					Intent: pending.Intent,
					Slots:  merged,
					Status: session.PendingAwaitingConfirmation,
				},
			}, nil
		}
		// The restatement broke the operation; fall back to slot filling.
		return &Decision{
			State:      StateNeedsSlots,
			Intent:     pending.Intent,
			Confidence: ci.Confidence,
			Missing:    res.Missing,
			Violations: res.Violations,
			SetPending: &PendingDirective{
				Intent: pending.Intent,
				Slots:  merged,
				Status: session.PendingAwaitingSlots,
			},
		}, nil
	}

	// A correction such as "make the price 500" often classifies as a
	// different intent but still names the pending operation's slots.
	if corrections := relevantSlots(ci.Slots, pending.Intent); len(corrections) > 0 {
		merged := pending.Slots.Clone()
		for k, v := range corrections {
			merged[k] = v
		}
		res, err := r.validator.Validate(ctx, intent.ClassifiedIntent{Intent: pending.Intent, Slots: merged})
		if err != nil {
			return nil, err
		}
		if res.OK() {
			return &Decision{
				State:      StateNeedsConfirmation,
				Intent:     pending.Intent,
				Confidence: ci.Confidence,
				SetPending: &PendingDirective{
					Intent: pending.Intent,
					Slots:  merged,
					Status: session.PendingAwaitingConfirmation,
				},
			}, nil
		}
		return &Decision{
			State:      StateNeedsSlots,
			Intent:     pending.Intent,
			Confidence: ci.Confidence,
			Missing:    res.Missing,
			Violations: res.Violations,
			SetPending: &PendingDirective{
				Intent: pending.Intent,
				Slots:  merged,
				Status: session.PendingAwaitingSlots,
			},
		}, nil
	}

	// A new mutating request is not started while one is outstanding; the
	// user has to confirm or cancel first.
	return &Decision{
		State:      StateNeedsConfirmation,
		Intent:     pending.Intent,
		Confidence: ci.Confidence,
		Reprompt:   true,
	}, nil
}

// decideWhileFilling handles a turn while a mutating operation is waiting
// on required slots. The utterance is first interpreted against the
// pending operation; only a confident, unrelated read-only intent is
// answered as a fresh turn, with the pending operation left in place.
func (r *Router) decideWhileFilling(ctx context.Context, ci intent.ClassifiedIntent, pending *session.PendingOperation) (*Decision, error) {
	contributed := relevantSlots(ci.Slots, pending.Intent)
	sameIntent := ci.Intent == pending.Intent

	if !sameIntent && len(contributed) == 0 {
		if !ci.Intent.IsMutating() && ci.Intent != intent.IntentUnknown && ci.Confidence >= r.thresholdHigh {
			// Answer the side question; the pending operation survives the
			// detour untouched.
			res, err := r.validator.Validate(ctx, ci)
			if err != nil {
				return nil, err
			}
			if res.OK() {
				return &Decision{
					State:      StateDirect,
					Intent:     ci.Intent,
					Confidence: ci.Confidence,
					Execute:    &ci,
				}, nil
			}
		}
		return &Decision{
			State:      StateNeedsSlots,
			Intent:     pending.Intent,
			Confidence: ci.Confidence,
			Missing:    r.missingFor(ctx, pending),
			Reprompt:   true,
		}, nil
	}

	merged := pending.Slots.Clone()
	for k, v := range ci.Slots {
		if sameIntent {
			merged[k] = v
		} else if _, ok := contributed[k]; ok {
			merged[k] = v
		}
	}
	res, err := r.validator.Validate(ctx, intent.ClassifiedIntent{Intent: pending.Intent, Slots: merged})
	if err != nil {
		return nil, err
	}
	if len(res.Missing) > 0 {
		return &Decision{
			State:      StateNeedsSlots,
			Intent:     pending.Intent,
			Confidence: ci.Confidence,
			Missing:    res.Missing,
			Violations: res.Violations,
			SetPending: &PendingDirective{
				Intent: pending.Intent,
				Slots:  merged,
				Status: session.PendingAwaitingSlots,
			},
		}, nil
	}
	if len(res.Violations) > 0 {
		return &Decision{
			State:      StateNeedsSlots,
			Intent:     pending.Intent,
			Confidence: ci.Confidence,
			Violations: res.Violations,
			SetPending: &PendingDirective{
				Intent: pending.Intent,
				Slots:  merged,
				Status: session.PendingAwaitingSlots,
			},
		}, nil
	}
	return &Decision{
		State:      StateNeedsConfirmation,
		Intent:     pending.Intent,
		Confidence: ci.Confidence,
		SetPending: &PendingDirective{
			Intent: pending.Intent,
			Slots:  merged,
			Status: session.PendingAwaitingConfirmation,
		},
	}, nil
}

func (r *Router) missingFor(ctx context.Context, pending *session.PendingOperation) []string {
	res, err := r.validator.Validate(ctx, intent.ClassifiedIntent{Intent: pending.Intent, Slots: pending.Slots})
	if err != nil {
		return nil
	}
	return res.Missing
}

// relevantSlots filters slots down to the ones the given intent can use,
// either as required input or as an updatable field.
func relevantSlots(slots intent.Slots, in intent.Intent) intent.Slots {
	accepted := validate.AcceptedSlots(in)
	out := intent.Slots{}
	for k, v := range slots {
		if _, ok := accepted[k]; ok {
			out[k] = v
		}
	}
	return out
}

func (r *Router) record(d *Decision) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stats.TotalTurns++
	r.stats.ByState[d.State]++
	r.confidenceSum += d.Confidence
	r.stats.AverageConfidence = r.confidenceSum / float64(r.stats.TotalTurns)
}

// GetStats returns a copy of the accumulated routing statistics.
func (r *Router) GetStats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := r.stats
	out.ByState = make(map[State]int64, len(r.stats.ByState))
	for k, v := range r.stats.ByState {
		out.ByState[k] = v
	}
	return out
}
