package wizard

import "gift-concierge/internal/domain"

// ConversationLog is the append-only transcript of the dialog. Turn order is
// replayed verbatim to the backend as history.
type ConversationLog struct {
	turns []domain.Turn
}

func (l *ConversationLog) Append(turns ...domain.Turn) {
	for _, t := range turns {
		t.Products = domain.CloneProducts(t.Products)
		l.turns = append(l.turns, t)
	}
}

func (l *ConversationLog) Len() int {
	return len(l.turns)
}

// Turns returns a copy of the transcript.
func (l *ConversationLog) Turns() []domain.Turn {
	out := make([]domain.Turn, len(l.turns))
	for i, t := range l.turns {
		t.Products = domain.CloneProducts(t.Products)
		out[i] = t
	}
	return out
}

// Render projects the log onto role/content history. maxRounds > 0 keeps
// only the most recent rounds (two turns each); products are never included.
func (l *ConversationLog) Render(maxRounds int) []domain.ChatMessage {
	turns := l.turns
	if maxRounds > 0 && len(turns) > 2*maxRounds {
		turns = turns[len(turns)-2*maxRounds:]
	}
	out := make([]domain.ChatMessage, 0, len(turns))
	for _, t := range turns {
		out = append(out, t.ChatMessage())
	}
	return out
}
