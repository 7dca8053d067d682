package domain

import "time"

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is a single entry of the dialog transcript. Products and Intent are
// only ever set on assistant turns.
type Turn struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Products  []Product `json:"products,omitempty"`
	Intent    *Intent   `json:"intent,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ChatMessage projects the turn onto the history shape sent to the backend.
// Products are never sent back.
func (t Turn) ChatMessage() ChatMessage {
	return ChatMessage{Role: string(t.Role), Content: t.Content}
}
