package nlu

import (
	"strings"

	"github.com/veract/salesmind/internal/intent"
)

// fallbackConfidence clears the router's high threshold so a keyword
// match is acted on rather than bounced back as a rephrase prompt.
// Mutating intents still stop at the confirmation gate, so degraded
// mode serves queries without risking a write on a bad guess.
const fallbackConfidence = 0.75

// keywordClassify is the degraded-mode classifier used when the external
// service is unreachable. Keyword tables only; extracts no entities.
func keywordClassify(utterance string) (intent.ClassifiedIntent, bool) {
	lower := strings.ToLower(utterance)

	contains := func(words ...string) bool {
		for _, w := range words {
			if strings.Contains(lower, w) {
				return true
			}
		}
		return false
	}

	var in intent.Intent
	switch {
	case contains("create", "add") && contains("product"):
		in = intent.IntentCreateProduct
	case contains("create", "add", "record") && contains("sale", "order"):
		in = intent.IntentCreateSale
	case contains("recommend", "suggest", "best", "top rated"):
		in = intent.IntentRecommend
	case contains("analytics", "report", "summary", "stats", "revenue"):
		in = intent.IntentGetAnalytics
	case contains("vendor", "suppl"):
		in = intent.IntentSearchVendor
	case contains("sale", "order", "purchase", "transaction", "invoice"):
		in = intent.IntentSearchSales
	case contains("search", "find", "show", "look", "product"):
		in = intent.IntentSearchProduct
	default:
		return intent.ClassifiedIntent{}, false
	}

	return intent.ClassifiedIntent{
		Intent:     in,
		Confidence: fallbackConfidence,
		Slots:      intent.Slots{},
	}, true
}
