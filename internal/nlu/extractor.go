package nlu

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/veract/salesmind/internal/intent"
	"github.com/veract/salesmind/internal/session"
)

const (
	// DefaultMaxRetries bounds automatic retries on transient classifier
	// failures before the turn degrades to IntentUnknown.
	DefaultMaxRetries = 2

	// DefaultRetryBackoff is the initial backoff; it doubles per attempt.
	DefaultRetryBackoff = 200 * time.Millisecond
)

// classificationPrompt instructs the classifier. The reply must be a bare
// JSON object; code fences are tolerated anyway because models add them.
const classificationPrompt = `You are an intent classifier for a retail sales assistant. Analyze the user's message and extract:
1. Intent, exactly one of: search_product, get_product_details, create_product, update_product, search_sales, create_sale, update_sale, get_analytics, get_recommendations, vendor_query, unknown
2. Entities mentioned in the message (product names, categories, ids, prices, quantities, dates, customer ids, statuses)
3. Your confidence in the intent, from 0.0 to 1.0

Valid categories: Electronics, Grocery, Fashion, Home, Sports
Valid payment statuses: PAID, PENDING, CANCELLED
Valid payment methods: CASH, CARD, UPI

Respond ONLY with a JSON object:
{"intent": "...", "confidence": 0.0, "entities": {"product_name": "...", "category": "...", "product_id": "...", "price": 0, "price_min": 0, "price_max": 0, "rating_min": 0, "quantity": 0, "variant_id": "...", "customer_id": "...", "sale_id": "...", "total": 0, "discount": 0, "status": "...", "payment_method": "...", "vendor_id": "...", "vendor_name": "...", "date_from": "...", "date_to": "...", "limit": 0}
Omit entities that are not present in the message.`

// Extractor turns a raw utterance plus conversation memory into a
// ClassifiedIntent. Classifier failures are never fatal: after bounded
// retries the result degrades to IntentUnknown with confidence 0.
type Extractor struct {
	provider        Provider
	model           string
	maxRetries      int
	backoff         time.Duration
	keywordFallback bool
}

// ExtractorOption configures an Extractor.
type ExtractorOption func(*Extractor)

// WithModel overrides the provider's default model.
func WithModel(model string) ExtractorOption {
	return func(e *Extractor) { e.model = model }
}

// WithMaxRetries bounds retries of transient classifier errors.
func WithMaxRetries(n int) ExtractorOption {
	return func(e *Extractor) {
		if n >= 0 {
			e.maxRetries = n
		}
	}
}

// WithRetryBackoff sets the initial retry backoff.
func WithRetryBackoff(d time.Duration) ExtractorOption {
	return func(e *Extractor) {
		if d > 0 {
			e.backoff = d
		}
	}
}

// WithKeywordFallback enables keyword-based intent detection when the
// classifier is unreachable, instead of degrading straight to unknown.
func WithKeywordFallback(enabled bool) ExtractorOption {
	return func(e *Extractor) { e.keywordFallback = enabled }
}

// NewExtractor creates an extractor over the given provider.
func NewExtractor(provider Provider, opts ...ExtractorOption) *Extractor {
	e := &Extractor{
		provider:   provider,
		maxRetries: DefaultMaxRetries,
		backoff:    DefaultRetryBackoff,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract classifies one utterance. The memory supplies recent context for
// the classifier and remembered entities for anaphora slot fill.
func (e *Extractor) Extract(ctx context.Context, utterance string, mem *session.ConversationMemory) intent.ClassifiedIntent {
	raw, err := e.classify(ctx, utterance, mem)
	if err != nil {
		log.Warn().Err(err).Msg("classification degraded to unknown")
		if e.keywordFallback {
			if ci, ok := keywordClassify(utterance); ok {
				return e.normalize(ci, mem)
			}
		}
		return intent.ClassifiedIntent{Intent: intent.IntentUnknown, Confidence: 0, Slots: intent.Slots{}}
	}
	return e.normalize(raw, mem)
}

// classify calls the provider with bounded retries on transient errors.
func (e *Extractor) classify(ctx context.Context, utterance string, mem *session.ConversationMemory) (intent.ClassifiedIntent, error) {
	if e.provider == nil || !e.provider.Available() {
		return intent.ClassifiedIntent{}, fmt.Errorf("classifier provider not available")
	}

	req := &ChatRequest{
		Model:        e.model,
		SystemPrompt: classificationPrompt,
		Messages: []Message{
			{Role: "user", Content: e.buildUserMessage(utterance, mem)},
		},
	}

	backoff := e.backoff
	var lastErr error
	for attempt := 0; attempt <= e.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return intent.ClassifiedIntent{}, fmt.Errorf("classify: %w", ctx.Err())
			case <-time.After(backoff):
			}
			backoff *= 2
			log.Debug().Int("attempt", attempt).Msg("retrying classifier call")
		}

		resp, err := e.provider.Chat(ctx, req)
		if err != nil {
			lastErr = err
			if errors.Is(err, ErrTransient) {
				continue
			}
			return intent.ClassifiedIntent{}, fmt.Errorf("classify: %w", err)
		}

		ci, err := parseClassifierReply(resp.Content)
		if err != nil {
			// Malformed output is not transient; the model will not
			// fix itself on an identical prompt.
			return intent.ClassifiedIntent{}, fmt.Errorf("classify: %w", err)
		}
		return ci, nil
	}
	return intent.ClassifiedIntent{}, fmt.Errorf("classify: retries exhausted: %w", lastErr)
}

// buildUserMessage packs the utterance with a compact context summary.
func (e *Extractor) buildUserMessage(utterance string, mem *session.ConversationMemory) string {
	var b strings.Builder
	if mem != nil {
		if len(mem.Entities) > 0 {
			b.WriteString("Known context from earlier turns:\n")
			for k, v := range mem.Entities {
				fmt.Fprintf(&b, "- %s: %s\n", k, v)
			}
		}
		recent := mem.RecentTurns(4)
		if len(recent) > 0 {
			b.WriteString("Recent conversation:\n")
			for _, t := range recent {
				fmt.Fprintf(&b, "%s: %s\n", t.Role, t.Content)
			}
		}
	}
	b.WriteString("User message: ")
	b.WriteString(utterance)
	return b.String()
}

// classifierReply is the wire shape the classifier returns.
type classifierReply struct {
	Intent     string         `json:"intent"`
	Confidence float64        `json:"confidence"`
	Entities   map[string]any `json:"entities"`
}

// parseClassifierReply decodes the model's JSON, stripping code fences.
func parseClassifierReply(content string) (intent.ClassifiedIntent, error) {
	cleaned := strings.TrimSpace(content)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var reply classifierReply
	if err := json.Unmarshal([]byte(cleaned), &reply); err != nil {
		return intent.ClassifiedIntent{}, fmt.Errorf("malformed classifier output: %w", err)
	}

	confidence := reply.Confidence
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}

	slots := intent.Slots{}
	for k, v := range reply.Entities {
		slots[k] = v
	}

	return intent.ClassifiedIntent{
		Intent:     intent.Parse(reply.Intent),
		Confidence: confidence,
		Slots:      slots,
	}, nil
}

// normalize post-processes raw classifier output: trims strings, coerces
// numeric slots, canonicalizes vocabulary slots, and fills omitted slots
// from remembered entities.
func (e *Extractor) normalize(ci intent.ClassifiedIntent, mem *session.ConversationMemory) intent.ClassifiedIntent {
	slots := intent.Slots{}
	for name, v := range ci.Slots {
		if s, ok := v.(string); ok {
			s = strings.TrimSpace(s)
			if s == "" {
				continue
			}
			v = s
		}
		slots[name] = v
	}

	for _, name := range []string{
		intent.SlotPrice, intent.SlotPriceMin, intent.SlotPriceMax,
		intent.SlotRating, intent.SlotRatingMin, intent.SlotTotal,
		intent.SlotDiscount, intent.SlotQuantity, intent.SlotLimit,
	} {
		if !slots.Has(name) {
			continue
		}
		if f, ok := slots.Float(name); ok {
			slots[name] = f
		} else {
			delete(slots, name) // drop non-numeric garbage
		}
	}

	if slots.Has(intent.SlotCategory) {
		if canonical := intent.CanonicalCategory(slots.String(intent.SlotCategory)); canonical != "" {
			slots[intent.SlotCategory] = canonical
		}
	}
	if slots.Has(intent.SlotStatus) {
		if canonical := intent.CanonicalStatus(slots.String(intent.SlotStatus)); canonical != "" {
			slots[intent.SlotStatus] = canonical
		}
	}
	if slots.Has(intent.SlotMethod) {
		if canonical := intent.CanonicalMethod(slots.String(intent.SlotMethod)); canonical != "" {
			slots[intent.SlotMethod] = canonical
		}
	}

	fillFromMemory(ci.Intent, slots, mem)

	return intent.ClassifiedIntent{Intent: ci.Intent, Confidence: ci.Confidence, Slots: slots}
}

// fillFromMemory resolves anaphora: read-only intents reuse entities a
// prior turn established when the current utterance omits them.
func fillFromMemory(in intent.Intent, slots intent.Slots, mem *session.ConversationMemory) {
	if mem == nil {
		return
	}

	switch in {
	case intent.IntentSearchProduct, intent.IntentRecommend:
		if !slots.Has(intent.SlotCategory) {
			if v := mem.Recall(session.EntityCategory); v != "" {
				slots[intent.SlotCategory] = v
			}
		}
	case intent.IntentProductDetails, intent.IntentUpdateProduct:
		if !slots.Has(intent.SlotProductID) {
			if v := mem.Recall(session.EntityProductID); v != "" {
				slots[intent.SlotProductID] = v
			}
		}
	case intent.IntentSearchSales:
		if !slots.Has(intent.SlotCustomerID) {
			if v := mem.Recall(session.EntityCustomerID); v != "" {
				slots[intent.SlotCustomerID] = v
			}
		}
	case intent.IntentUpdateSale:
		if !slots.Has(intent.SlotSaleID) {
			if v := mem.Recall(session.EntitySaleID); v != "" {
				slots[intent.SlotSaleID] = v
			}
		}
	}
}
