package wizard

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"gift-concierge/internal/domain"
)

func TestConversationLog_RenderOmitsProducts(t *testing.T) {
	var l ConversationLog
	now := time.Now()
	l.Append(
		domain.Turn{Role: domain.RoleUser, Content: "hi", Timestamp: now},
		domain.Turn{Role: domain.RoleAssistant, Content: "hello", Products: products("A"), Timestamp: now},
	)

	require.Equal(t, 2, l.Len())
	require.Equal(t, []domain.ChatMessage{
		{Role: "user", Content: "hi"},
		{Role: "assistant", Content: "hello"},
	}, l.Render(0))
}

func TestConversationLog_RenderKeepsMostRecentRounds(t *testing.T) {
	var l ConversationLog
	for _, q := range []string{"q1", "q2", "q3"} {
		l.Append(domain.Turn{Role: domain.RoleUser, Content: q}, domain.Turn{Role: domain.RoleAssistant, Content: "a" + q[1:]})
	}

	require.Len(t, l.Render(0), 6)
	require.Len(t, l.Render(5), 6)
	require.Equal(t, []domain.ChatMessage{
		{Role: "user", Content: "q2"},
		{Role: "assistant", Content: "a2"},
		{Role: "user", Content: "q3"},
		{Role: "assistant", Content: "a3"},
	}, l.Render(2))
	require.Equal(t, 6, l.Len())
}

func TestConversationLog_EmptyRenderIsNotNil(t *testing.T) {
	var l ConversationLog
	require.NotNil(t, l.Render(0))
	require.Empty(t, l.Turns())
}

func TestSession_Adopt(t *testing.T) {
	var s Session
	_, ok := s.ID()
	require.False(t, ok)
	require.Nil(t, s.requestID())

	s.Adopt(" ")
	_, ok = s.ID()
	require.False(t, ok)

	s.Adopt("sess-1")
	s.Adopt("sess-2")
	id, ok := s.ID()
	require.True(t, ok)
	require.Equal(t, "sess-2", id)
	require.Equal(t, "sess-2", *s.requestID())
}

func TestFeedbackLedger_ReplaceAll(t *testing.T) {
	var l FeedbackLedger
	l.Set("A", FeedbackUp)
	l.ReplaceAll(map[string]Feedback{"B": FeedbackDown})

	_, ok := l.Get("A")
	require.False(t, ok)
	fb, ok := l.Get("B")
	require.True(t, ok)
	require.Equal(t, FeedbackDown, fb)

	src := map[string]Feedback{"C": FeedbackUp}
	l.ReplaceAll(src)
	src["D"] = FeedbackDown
	require.Equal(t, 1, l.Len())

	l.ReplaceAll(nil)
	require.Zero(t, l.Len())
	require.NotNil(t, l.Entries())
}

func TestParseFeedback(t *testing.T) {
	fb, err := ParseFeedback(" UP ")
	require.NoError(t, err)
	require.Equal(t, FeedbackUp, fb)

	fb, err = ParseFeedback("down")
	require.NoError(t, err)
	require.Equal(t, FeedbackDown, fb)

	_, err = ParseFeedback("sideways")
	require.Error(t, err)
}
