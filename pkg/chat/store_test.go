package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore() (*Store, *Directory) {
	dir := NewDirectory(
		User{ID: "me", Username: "Ann"},
		User{ID: "alice", Username: "Alice"},
		User{ID: "system", Username: "System"},
	)
	s := NewStore(dir)
	s.SetViewer("me")
	return s, dir
}

func TestAppendAssignsIdentityAndOrder(t *testing.T) {
	s, _ := newTestStore()

	first := s.Append("1", Message{AuthorID: "alice", Content: "hello"})
	second := s.Append("1", Message{AuthorID: "me", Content: "hi"})

	assert.NotEmpty(t, first.ID)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Less(t, first.Seq, second.Seq)
	assert.Equal(t, "1", first.ConversationID)
	assert.Equal(t, MessageUser, first.Kind)
	assert.Equal(t, first.CreatedAt.Format("15:04"), first.Timestamp)
	assert.Equal(t, "Alice", first.Author.Username)

	msgs := s.Messages("1")
	require.Len(t, msgs, 2)
	assert.Equal(t, "hello", msgs[0].Content)
	assert.Equal(t, "hi", msgs[1].Content)

	last, ok := s.Last("1")
	require.True(t, ok)
	assert.Equal(t, second.ID, last.ID)
}

func TestAppendMarksIncomingMessagesRead(t *testing.T) {
	s, _ := newTestStore()

	incoming := s.Append("dm", Message{AuthorID: "alice", Content: "ping", Status: StatusSent})
	mine := s.Append("dm", Message{AuthorID: "me", Content: "pong", Status: StatusSent})
	notice := s.Append("dm", Message{Kind: MessageSystem, AuthorID: "system", Content: "note"})

	got, _ := s.Message("dm", incoming.ID)
	assert.Equal(t, StatusRead, got.Status)

	got, _ = s.Message("dm", mine.ID)
	assert.Equal(t, StatusSent, got.Status, "own messages are left to the delivery timers")

	s.Append("dm", Message{AuthorID: "alice", Content: "again"})
	got, _ = s.Message("dm", notice.ID)
	assert.Equal(t, StatusNone, got.Status, "system notices carry no delivery state")
}

func TestContentMutation(t *testing.T) {
	s, _ := newTestStore()
	msg := s.Append("1", Message{AuthorID: "me", Content: "draft"})

	require.True(t, s.WriteContent("1", msg.ID, "streamed"))
	got, _ := s.Message("1", msg.ID)
	assert.Equal(t, "streamed", got.Content)
	assert.False(t, got.Edited)

	require.True(t, s.MutateContent("1", msg.ID, "final"))
	got, _ = s.Message("1", msg.ID)
	assert.Equal(t, "final", got.Content)
	assert.True(t, got.Edited)
}

func TestMissingTargetsAreNoOps(t *testing.T) {
	s, _ := newTestStore()
	msg := s.Append("1", Message{AuthorID: "me", Content: "x"})

	assert.False(t, s.MutateContent("1", "nope", "y"))
	assert.False(t, s.WriteContent("2", msg.ID, "y"))
	assert.False(t, s.SetStatus("1", "nope", StatusRead))
	assert.False(t, s.ToggleReaction("1", "nope", "👍", "me"))
	assert.False(t, s.TogglePin("1", "nope"))
	assert.False(t, s.Remove("2", msg.ID))
	assert.False(t, s.Has("2"))

	_, ok := s.Message("1", "nope")
	assert.False(t, ok)
	_, ok = s.Last("2")
	assert.False(t, ok)
	assert.Empty(t, s.Messages("2"))
}

func TestToggleReaction(t *testing.T) {
	tests := []struct {
		name  string
		setup []string // emojis toggled by "me" before the step
		emoji string
		want  map[string][]string
	}{
		{name: "add", emoji: "👍", want: map[string][]string{"👍": {"alice", "me"}}},
		{name: "toggle off", setup: []string{"👍"}, emoji: "👍", want: map[string][]string{"👍": {"alice"}}},
		{name: "switch emoji", setup: []string{"❤️"}, emoji: "👍", want: map[string][]string{"👍": {"alice", "me"}}},
		{name: "switch drops empty set", setup: []string{"😂"}, emoji: "❤️", want: map[string][]string{"👍": {"alice"}, "❤️": {"me"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newTestStore()
			msg := s.Append("1", Message{AuthorID: "alice", Content: "react to me"})
			require.True(t, s.ToggleReaction("1", msg.ID, "👍", "alice"))

			for _, e := range tt.setup {
				require.True(t, s.ToggleReaction("1", msg.ID, e, "me"))
			}
			require.True(t, s.ToggleReaction("1", msg.ID, tt.emoji, "me"))

			got, _ := s.Message("1", msg.ID)
			assert.Equal(t, tt.want, got.Reactions)
		})
	}
}

func TestToggleReactionTwiceRestores(t *testing.T) {
	s, _ := newTestStore()
	msg := s.Append("1", Message{AuthorID: "alice", Content: "x"})

	s.ToggleReaction("1", msg.ID, "🎉", "me")
	s.ToggleReaction("1", msg.ID, "🎉", "me")

	got, _ := s.Message("1", msg.ID)
	assert.Empty(t, got.Reactions)
}

func TestTogglePin(t *testing.T) {
	s, _ := newTestStore()
	a := s.Append("1", Message{AuthorID: "alice", Content: "a"})
	b := s.Append("1", Message{AuthorID: "alice", Content: "b"})

	require.True(t, s.TogglePin("1", a.ID))
	require.True(t, s.TogglePin("1", b.ID))

	pinned := s.Pinned("1")
	require.Len(t, pinned, 2)
	assert.Equal(t, b.ID, pinned[0].ID, "newest pin first")
	assert.Equal(t, a.ID, pinned[1].ID)
	assert.True(t, pinned[0].Pinned)

	require.True(t, s.TogglePin("1", b.ID))
	got, _ := s.Message("1", b.ID)
	assert.False(t, got.Pinned)
	require.Len(t, s.Pinned("1"), 1)

	require.True(t, s.TogglePin("1", a.ID))
	assert.Empty(t, s.Pinned("1"))
}

func TestRemoveDropsPin(t *testing.T) {
	s, _ := newTestStore()
	msg := s.Append("1", Message{AuthorID: "me", Content: "bye"})
	s.TogglePin("1", msg.ID)

	rec := &recorder{}
	s.Subscribe(rec.record)

	require.True(t, s.Remove("1", msg.ID))
	assert.Empty(t, s.Messages("1"))
	assert.Empty(t, s.Pinned("1"))
	assert.Len(t, rec.ofType(EventMessageRemoved), 1)
	assert.Len(t, rec.ofType(EventPinsChanged), 1)
}

func TestAuthorJoinedAtReadTime(t *testing.T) {
	s, dir := newTestStore()
	msg := s.Append("1", Message{AuthorID: "me", Content: "hi"})

	dir.Put(User{ID: "me", Username: "Zed"})

	got, _ := s.Message("1", msg.ID)
	assert.Equal(t, "Zed", got.Author.Username)

	unknown := s.Append("1", Message{AuthorID: "ghost", Content: "boo"})
	assert.Equal(t, User{ID: "ghost"}, unknown.Author)
}

func TestReplyJoinedAtReadTime(t *testing.T) {
	s, _ := newTestStore()
	original := s.Append("1", Message{AuthorID: "alice", Content: "question?"})
	reply := s.Append("1", Message{AuthorID: "me", Content: "answer", ReplyToID: original.ID})

	require.NotNil(t, reply.ReplyTo)
	assert.Equal(t, "question?", reply.ReplyTo.Content)
	assert.Equal(t, "Alice", reply.ReplyTo.Author.Username)

	s.MutateContent("1", original.ID, "better question?")
	got, _ := s.Message("1", reply.ID)
	assert.Equal(t, "better question?", got.ReplyTo.Content)

	s.Remove("1", original.ID)
	got, _ = s.Message("1", reply.ID)
	assert.Nil(t, got.ReplyTo)
	assert.Equal(t, original.ID, got.ReplyToID)
}

func TestSearch(t *testing.T) {
	s, _ := newTestStore()
	s.Append("1", Message{AuthorID: "alice", Content: "Deploy went fine"})
	s.Append("1", Message{AuthorID: "me", Content: "lunch?"})
	s.Append("1", Message{AuthorID: "alice", Content: "redeploy tomorrow"})

	got := s.Search("1", "DEPLOY")
	require.Len(t, got, 2)
	assert.Equal(t, "Deploy went fine", got[0].Content)
	assert.Equal(t, "redeploy tomorrow", got[1].Content)

	assert.Empty(t, s.Search("1", "dinner"))
}

func TestViewsDoNotAliasStoredState(t *testing.T) {
	s, _ := newTestStore()
	msg := s.Append("1", Message{AuthorID: "alice", Content: "x", Mentions: []string{"me"}})
	s.ToggleReaction("1", msg.ID, "👍", "me")

	got, _ := s.Message("1", msg.ID)
	got.Reactions["👍"][0] = "mallory"
	got.Mentions[0] = "mallory"

	again, _ := s.Message("1", msg.ID)
	assert.Equal(t, []string{"me"}, again.Reactions["👍"])
	assert.Equal(t, []string{"me"}, again.Mentions)
}

func TestListenersRunOutsideLock(t *testing.T) {
	s, _ := newTestStore()

	var seen []string
	s.Subscribe(func(e Event) {
		// Reading back from the store inside a listener must not deadlock
		if last, ok := s.Last(e.ConversationID); ok {
			seen = append(seen, last.Content)
		}
	})

	s.Append("1", Message{AuthorID: "me", Content: "one"})
	s.Append("1", Message{AuthorID: "me", Content: "two"})
	assert.Equal(t, []string{"one", "two"}, seen)
}
