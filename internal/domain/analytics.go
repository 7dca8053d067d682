package domain

import "time"

// ClickEvent records a shopper opening a product from the displayed batch.
// Position is the 1-based rank within that batch.
type ClickEvent struct {
	SessionID  string    `json:"session_id"`
	Sku        string    `json:"sku"`
	Name       string    `json:"name"`
	Position   int       `json:"position"`
	OccurredAt time.Time `json:"-"`
}

// ConversionEvent marks a session as having proceeded toward purchase.
type ConversionEvent struct {
	SessionID  string    `json:"session_id"`
	OccurredAt time.Time `json:"-"`
}

// SessionAnalytics is the recorded analytics for one backend session.
type SessionAnalytics struct {
	SessionID string       `json:"sessionId"`
	Clicks    []ClickEvent `json:"clicks"`
	Converted bool         `json:"converted"`
}
