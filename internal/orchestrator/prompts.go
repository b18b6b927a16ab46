package orchestrator

import (
	"fmt"
	"sort"
	"strings"

	"github.com/veract/salesmind/internal/intent"
	"github.com/veract/salesmind/internal/router"
)

// intentPhrases render intents in prompts.
var intentPhrases = map[intent.Intent]string{
	intent.IntentSearchProduct:  "search products",
	intent.IntentProductDetails: "look up a product",
	intent.IntentCreateProduct:  "create a product",
	intent.IntentUpdateProduct:  "update a product",
	intent.IntentSearchSales:    "search sales",
	intent.IntentCreateSale:     "record a sale",
	intent.IntentUpdateSale:     "update a sale",
	intent.IntentGetAnalytics:   "summarize your sales",
	intent.IntentRecommend:      "recommend products",
	intent.IntentSearchVendor:   "look up vendors",
}

func phrase(in intent.Intent) string {
	if p, ok := intentPhrases[in]; ok {
		return p
	}
	return strings.ReplaceAll(in.String(), "_", " ")
}

// prompt renders the user-facing text for a decision that did not execute
// anything.
func (o *Orchestrator) prompt(d *router.Decision) string {
	switch d.State {
	case router.StateNeedsSlots:
		return slotPrompt(d)
	case router.StateNeedsConfirmation:
		return confirmPrompt(d)
	case router.StateCancelled:
		return cancelPrompt(d)
	case router.StateLowConfidence:
		return "Sorry, I didn't catch that. Could you rephrase?"
	case router.StateAmbiguous:
		return fmt.Sprintf("I think you want to %s, but I'm not certain. Could you rephrase?", phrase(d.Intent))
	case router.StateRejected:
		return "I can't do that: " + strings.Join(d.Violations, "; ") + "."
	}
	return "Sorry, I couldn't process that."
}

func slotPrompt(d *router.Decision) string {
	var b strings.Builder
	if len(d.Violations) > 0 {
		b.WriteString(strings.Join(d.Violations, "; "))
		b.WriteString(". ")
	}
	if len(d.Missing) > 0 {
		names := make([]string, len(d.Missing))
		for i, m := range d.Missing {
			names[i] = strings.ReplaceAll(m, "_", " ")
		}
		fmt.Fprintf(&b, "To %s I still need: %s.", phrase(d.Intent), strings.Join(names, ", "))
	} else if b.Len() == 0 {
		fmt.Fprintf(&b, "I need more details to %s.", phrase(d.Intent))
	}
	return b.String()
}

func confirmPrompt(d *router.Decision) string {
	if d.Reprompt || d.SetPending == nil {
		return fmt.Sprintf("You still have a request to %s waiting. Reply yes to proceed or no to cancel.", phrase(d.Intent))
	}
	return fmt.Sprintf("Please confirm: %s with %s. Reply yes to proceed or no to cancel.",
		phrase(d.Intent), summarizeSlots(d.SetPending.Slots))
}

func cancelPrompt(d *router.Decision) string {
	switch {
	case d.Intent == intent.IntentCancel && d.ClearPending:
		return "Okay, I've cancelled that."
	case d.Intent == intent.IntentCancel:
		return "There's nothing to cancel."
	case d.ClearPending:
		return "That request was still missing details, so I've discarded it. Start over whenever you're ready."
	default:
		return "There's nothing waiting for confirmation."
	}
}

func summarizeSlots(slots intent.Slots) string {
	if len(slots) == 0 {
		return "no details"
	}
	keys := make([]string, 0, len(slots))
	for k := range slots {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", strings.ReplaceAll(k, "_", " "), slots[k]))
	}
	return strings.Join(parts, ", ")
}
