package wizard

import (
	"fmt"

	"gift-concierge/internal/domain"
)

// rejectionWindow is how many leading products of a batch must be rejected
// before the refinement menu is offered.
const rejectionWindow = 5

type RefinementReason string

const (
	ReasonTooExpensive  RefinementReason = "too_expensive"
	ReasonWrongStyle    RefinementReason = "wrong_style"
	ReasonWantDifferent RefinementReason = "want_different"
	ReasonOther         RefinementReason = "other"
)

type RefinementOption struct {
	Reason RefinementReason `json:"reason"`
	Label  string           `json:"label"`
	Text   string           `json:"text"`
}

var refinementOptions = []RefinementOption{
	{Reason: ReasonTooExpensive, Label: "Too expensive", Text: "looking for something more affordable"},
	{Reason: ReasonWrongStyle, Label: "Not my style", Text: "looking for a different style"},
	{Reason: ReasonWantDifferent, Label: "Show me something different", Text: "show me different options"},
	{Reason: ReasonOther, Label: "Other", Text: "show me more options"},
}

// RefinementOptions lists the refinement menu in display order.
func RefinementOptions() []RefinementOption {
	return append([]RefinementOption(nil), refinementOptions...)
}

// FullyRejected reports whether every one of the first min(5, len(batch))
// products carries an explicit down vote. An empty batch is never rejected.
func FullyRejected(batch []domain.Product, ledger *FeedbackLedger) bool {
	if len(batch) == 0 || ledger == nil {
		return false
	}
	window := min(rejectionWindow, len(batch))
	if ledger.Len() < window {
		return false
	}
	for _, p := range batch[:window] {
		if fb, ok := ledger.Get(p.Sku); !ok || fb != FeedbackDown {
			return false
		}
	}
	return true
}

// RefineQuery appends the reason's text to the last query.
func RefineQuery(lastQuery string, reason RefinementReason) (string, error) {
	for _, opt := range refinementOptions {
		if opt.Reason == reason {
			return fmt.Sprintf("%s, %s", lastQuery, opt.Text), nil
		}
	}
	return "", fmt.Errorf("wizard: unknown refinement reason %q", reason)
}
