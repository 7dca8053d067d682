package domain

// ChatMessage is the role/content projection of a turn replayed to the
// recommendation backend as history.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the body sent to the recommendation backend's chat endpoint.
// SessionID is serialized as null until the backend has issued one.
type ChatRequest struct {
	Message   string        `json:"message"`
	SessionID *string       `json:"session_id"`
	History   []ChatMessage `json:"history"`
}

// ChatResponse is the backend's reply for one round.
type ChatResponse struct {
	Reply     string    `json:"reply"`
	Products  []Product `json:"products"`
	Intent    *Intent   `json:"intent,omitempty"`
	SessionID string    `json:"session_id"`
}

// Intent is the backend's structured reading of the shopper's request.
// The controller carries it through to the transcript untouched.
type Intent struct {
	Occasion           string   `json:"occasion,omitempty"`
	Urgency            string   `json:"urgency,omitempty"`
	Recipient          string   `json:"recipient,omitempty"`
	Budget             string   `json:"budget,omitempty"`
	Dietary            []string `json:"dietary,omitempty"`
	Keywords           []string `json:"keywords,omitempty"`
	NeedsClarification bool     `json:"needs_clarification"`
	ClarifyingQuestion string   `json:"clarifying_question,omitempty"`
	Confidence         float64  `json:"confidence"`
}
