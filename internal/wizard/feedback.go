package wizard

import (
	"fmt"
	"strings"
)

type Feedback string

const (
	FeedbackUp   Feedback = "up"
	FeedbackDown Feedback = "down"
)

func ParseFeedback(s string) (Feedback, error) {
	switch Feedback(strings.ToLower(strings.TrimSpace(s))) {
	case FeedbackUp:
		return FeedbackUp, nil
	case FeedbackDown:
		return FeedbackDown, nil
	}
	return "", fmt.Errorf("wizard: unknown feedback %q", s)
}

// FeedbackLedger maps product skus of the current batch to the shopper's
// reaction. It is replaced wholesale whenever a new batch arrives.
type FeedbackLedger struct {
	entries map[string]Feedback
}

// ReplaceAll discards every entry and installs a copy of entries.
func (l *FeedbackLedger) ReplaceAll(entries map[string]Feedback) {
	next := make(map[string]Feedback, len(entries))
	for sku, fb := range entries {
		next[sku] = fb
	}
	l.entries = next
}

func (l *FeedbackLedger) Set(sku string, fb Feedback) {
	if l.entries == nil {
		l.entries = make(map[string]Feedback)
	}
	l.entries[sku] = fb
}

func (l *FeedbackLedger) Get(sku string) (Feedback, bool) {
	fb, ok := l.entries[sku]
	return fb, ok
}

func (l *FeedbackLedger) Len() int {
	return len(l.entries)
}

// Entries returns a copy of the ledger.
func (l *FeedbackLedger) Entries() map[string]Feedback {
	out := make(map[string]Feedback, len(l.entries))
	for sku, fb := range l.entries {
		out[sku] = fb
	}
	return out
}
