package wizard

import "strings"

// Session holds the backend-issued session identifier. It is never invented
// locally; the id of every response replaces the previous one.
type Session struct {
	id string
}

func (s *Session) ID() (string, bool) {
	return s.id, s.id != ""
}

// Adopt records the id returned by the backend. Empty ids are ignored.
func (s *Session) Adopt(id string) {
	id = strings.TrimSpace(id)
	if id == "" {
		return
	}
	s.id = id
}

// requestID is the session_id value sent to the backend: nil until known.
func (s *Session) requestID() *string {
	if s.id == "" {
		return nil
	}
	id := s.id
	return &id
}
