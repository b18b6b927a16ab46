package intent

import (
	"strings"

	"github.com/sahilm/fuzzy"
)

// Categories is the closed product category vocabulary.
var Categories = []string{"Electronics", "Grocery", "Fashion", "Home", "Sports"}

// PaymentStatuses is the closed payment status vocabulary.
var PaymentStatuses = []string{"PAID", "PENDING", "CANCELLED"}

// PaymentMethods is the closed payment method vocabulary.
var PaymentMethods = []string{"CASH", "CARD", "UPI"}

// minFuzzyScore rejects fuzzy matches that share only a couple of
// characters with a category name ("xyz" must not resolve to anything).
const minFuzzyScore = 0

// CanonicalCategory resolves free-text input to a category from the closed
// vocabulary. Exact case-insensitive match is tried first, then a fuzzy
// fallback for near-misses ("electronic", "fasion"). Returns "" when the
// input cannot be resolved.
func CanonicalCategory(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	for _, c := range Categories {
		if strings.EqualFold(trimmed, c) {
			return c
		}
	}
	matches := fuzzy.Find(trimmed, Categories)
	if len(matches) > 0 && matches[0].Score > minFuzzyScore {
		return Categories[matches[0].Index]
	}
	// Fuzzy subsequence matching misses transposed or substituted
	// characters, so try prefix overlap as a last resort.
	lower := strings.ToLower(trimmed)
	for _, c := range Categories {
		cl := strings.ToLower(c)
		if len(lower) >= 4 && (strings.HasPrefix(cl, lower[:4]) || strings.HasPrefix(lower, cl[:4])) {
			return c
		}
	}
	return ""
}

// CanonicalStatus resolves free-text to a payment status, or "".
func CanonicalStatus(raw string) string {
	return canonicalToken(raw, PaymentStatuses)
}

// CanonicalMethod resolves free-text to a payment method, or "".
func CanonicalMethod(raw string) string {
	return canonicalToken(raw, PaymentMethods)
}

func canonicalToken(raw string, vocab []string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	for _, v := range vocab {
		if strings.EqualFold(trimmed, v) {
			return v
		}
	}
	return ""
}

// ValidCategory reports membership in the category vocabulary.
func ValidCategory(c string) bool {
	for _, v := range Categories {
		if c == v {
			return true
		}
	}
	return false
}

// ValidStatus reports membership in the payment status vocabulary.
func ValidStatus(s string) bool {
	for _, v := range PaymentStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// ValidMethod reports membership in the payment method vocabulary.
func ValidMethod(m string) bool {
	for _, v := range PaymentMethods {
		if m == v {
			return true
		}
	}
	return false
}
