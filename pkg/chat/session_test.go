package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/testsabirweb/chatsim/pkg/prefs"
)

func lastMessage(t *testing.T, s *Session, conversationID string) Message {
	t.Helper()
	msg, ok := s.store.Last(conversationID)
	require.True(t, ok)
	return msg
}

func TestNewSessionSeedsChannels(t *testing.T) {
	s := newTestSession(t, &fakeProvider{})

	channels := s.Channels()
	require.Len(t, channels, 3)
	assert.Equal(t, "General", channels[0].Name)

	welcome := lastMessage(t, s, "1")
	assert.Equal(t, MessageSystem, welcome.Kind)
	assert.Contains(t, welcome.Content, "Welcome to the General channel!")

	_, err := s.Messages("1", "")
	assert.ErrorIs(t, err, ErrNoSession)
	_, err = s.Send(context.Background(), "hi", SendOptions{})
	assert.ErrorIs(t, err, ErrNoSession)
	assert.ErrorIs(t, s.Select(ConversationChannel, "2"), ErrNoSession)
}

func TestJoin(t *testing.T) {
	s, user := joinedSession(t, &fakeProvider{})

	assert.Regexp(t, `^user-[0-9a-f-]{36}$`, user.ID)
	assert.Equal(t, "Online", user.Status)

	joined := lastMessage(t, s, "1")
	assert.Equal(t, "Ann has joined the chat.", joined.Content)
	assert.Equal(t, MessageSystem, joined.Kind)

	conv, id, err := s.Active()
	require.NoError(t, err)
	assert.Equal(t, "1", id)
	assert.Equal(t, "General", conv.Name())
	assert.Empty(t, s.UnreadCounts())

	for _, ch := range s.Channels() {
		members, err := s.ChannelMembers(ch.ID)
		require.NoError(t, err)
		assert.Contains(t, members, user)
	}

	_, err = s.Join("Bea")
	assert.ErrorIs(t, err, ErrAlreadyJoined)
}

func TestJoinRequiresName(t *testing.T) {
	s := newTestSession(t, &fakeProvider{})
	_, err := s.Join("   ")
	assert.ErrorIs(t, err, ErrInvalidUsername)
}

func TestLogout(t *testing.T) {
	s, user := joinedSession(t, &fakeProvider{})
	require.NoError(t, s.Select(ConversationChannel, "3"))

	require.NoError(t, s.Logout())

	assert.Equal(t, "Ann has left the chat.", lastMessage(t, s, "3").Content)
	assert.NotContains(t, s.Users(), user)
	_, err := s.CurrentUser()
	assert.ErrorIs(t, err, ErrNoSession)
	assert.ErrorIs(t, s.Logout(), ErrNoSession)

	again, err := s.Join("Ann")
	require.NoError(t, err)
	assert.NotEqual(t, user.ID, again.ID)
	msgs, err := s.Messages("3", "")
	require.NoError(t, err)
	var leave Message
	for _, m := range msgs {
		if m.Content == "Ann has left the chat." {
			leave = m
		}
	}
	assert.Equal(t, "System", leave.Author.Username, "history keeps rendering")
}

func TestLogoutFromDirectMessageIsSilent(t *testing.T) {
	s, user := joinedSession(t, &fakeProvider{})
	require.NoError(t, s.Select(ConversationDirect, "user-2"))
	dm := DirectID(user.ID, "user-2")
	before := len(s.store.Messages(dm))

	require.NoError(t, s.Logout())
	assert.Len(t, s.store.Messages(dm), before)
}

func TestUpdateProfile(t *testing.T) {
	provider := &fakeProvider{}
	s, _ := joinedSession(t, provider)
	require.NoError(t, s.Select(ConversationDirect, "user-2"))

	sent, err := s.Send(context.Background(), "before rename", SendOptions{})
	require.NoError(t, err)

	updated, err := s.UpdateProfile("Zed", "Away", "https://example.com/zed.png")
	require.NoError(t, err)
	assert.Equal(t, "Zed", updated.Username)
	assert.Equal(t, "Away", updated.Status)
	assert.Equal(t, "https://example.com/zed.png", updated.AvatarURL)

	_, dm, _ := s.Active()
	assert.Equal(t, "Ann is now known as Zed.", lastMessage(t, s, dm).Content)

	got, ok := s.store.Message(dm, sent.ID)
	require.True(t, ok)
	assert.Equal(t, "Zed", got.Author.Username)

	count := len(s.store.Messages(dm))
	_, err = s.UpdateProfile("Zed", "Busy", "")
	require.NoError(t, err)
	assert.Len(t, s.store.Messages(dm), count, "no announcement without a rename")
	u, _ := s.CurrentUser()
	assert.Equal(t, "https://example.com/zed.png", u.AvatarURL)

	u, err = s.UpdateProfile("", "Away", "")
	require.NoError(t, err)
	assert.Equal(t, "Zed", u.Username)
	assert.Equal(t, "Away", u.Status)
	assert.Len(t, s.store.Messages(dm), count)

	_, err = s.UpdateProfile("   ", "", "")
	assert.ErrorIs(t, err, ErrInvalidUsername)
}

func TestSelectDirectMessageWelcomeOnce(t *testing.T) {
	s, user := joinedSession(t, &fakeProvider{})
	dm := DirectID(user.ID, "user-3")

	require.NoError(t, s.Select(ConversationDirect, "user-3"))
	msgs := s.store.Messages(dm)
	require.Len(t, msgs, 1)
	assert.Equal(t, "This is the beginning of your direct message history with Charlie.", msgs[0].Content)
	assert.Equal(t, 0, s.unread.Count(dm))

	require.NoError(t, s.Select(ConversationChannel, "1"))
	require.NoError(t, s.Select(ConversationDirect, "user-3"))
	assert.Len(t, s.store.Messages(dm), 1)
}

func TestSelectRejectsUnknownTargets(t *testing.T) {
	s, user := joinedSession(t, &fakeProvider{})

	assert.ErrorIs(t, s.Select(ConversationChannel, "99"), ErrUnknownConversation)
	assert.ErrorIs(t, s.Select(ConversationDirect, "nobody"), ErrUnknownConversation)
	assert.ErrorIs(t, s.Select(ConversationDirect, "system"), ErrUnknownConversation)
	assert.ErrorIs(t, s.Select(ConversationDirect, user.ID), ErrUnknownConversation)
	assert.ErrorIs(t, s.Select("group", "1"), ErrUnknownConversation)

	_, active, err := s.Active()
	require.NoError(t, err)
	assert.Equal(t, "1", active)
	assert.False(t, s.store.Has(DirectID(user.ID, user.ID)))
}

func TestConcurrentChannelSendsStartOneReply(t *testing.T) {
	hold := make(chan struct{})
	provider := &fakeProvider{chunks: []string{"busy"}, hold: hold}
	s, _ := joinedSession(t, provider)
	defer close(hold)

	const senders = 8
	start := make(chan struct{})
	errs := make(chan error, senders)
	var wg sync.WaitGroup
	for i := 0; i < senders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, err := s.Send(context.Background(), fmt.Sprintf("message %d", i), SendOptions{})
			errs <- err
		}(i)
	}
	close(start)
	wg.Wait()
	close(errs)

	sent := 0
	for err := range errs {
		if err == nil {
			sent++
			continue
		}
		assert.ErrorIs(t, err, ErrComposing)
	}
	assert.Equal(t, 1, sent)

	msgs, err := s.Messages("1", "")
	require.NoError(t, err)
	assert.Len(t, botMessages(msgs), 1)
}

type failingPrefs struct {
	prefs.Store
}

func (failingPrefs) Set(string, string) error {
	return errors.New("disk full")
}

func TestSetThemeKeepsCurrentWhenPersistFails(t *testing.T) {
	s := newTestSession(t, &fakeProvider{}, func(o *Options) {
		o.Prefs = failingPrefs{Store: prefs.NewMemoryStore()}
	})
	rec := &recorder{}
	s.Subscribe(rec.record)

	_, err := s.SetTheme("ocean")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, "default", s.Theme().ID)
	assert.Empty(t, rec.ofType(EventThemeChanged))
}

func TestUnreadCounting(t *testing.T) {
	s, _ := joinedSession(t, &fakeProvider{})

	s.post("2", Message{AuthorID: "user-3", Content: "anyone?"})
	s.post("2", Message{AuthorID: "user-3", Content: "hello?"})
	assert.Equal(t, map[string]int{"2": 2}, s.UnreadCounts())

	s.post("1", Message{AuthorID: "user-1", Content: "in focus"})
	assert.Equal(t, 0, s.unread.Count("1"))

	require.NoError(t, s.Select(ConversationChannel, "2"))
	assert.Empty(t, s.UnreadCounts())

	summaries, err := s.Conversations()
	require.NoError(t, err)
	for _, c := range summaries {
		assert.Equal(t, c.ID == "2", c.Active, c.ID)
		assert.Zero(t, c.Unread)
	}
}

func TestSendValidation(t *testing.T) {
	s, _ := joinedSession(t, &fakeProvider{})
	require.NoError(t, s.Select(ConversationDirect, "user-2"))

	_, err := s.Send(context.Background(), "   ", SendOptions{})
	assert.ErrorIs(t, err, ErrEmptyMessage)

	msg, err := s.Send(context.Background(), "", SendOptions{ImageURL: "https://example.com/cat.png"})
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/cat.png", msg.ImageURL)

	voice, err := s.Send(context.Background(), "", SendOptions{VoiceNote: &VoiceNote{URL: "note.mp3", Duration: 15}})
	require.NoError(t, err)
	require.NotNil(t, voice.VoiceNote)
	assert.Equal(t, 15.0, voice.VoiceNote.Duration)

	_, err = s.Send(context.Background(), "re", SendOptions{ReplyToID: "missing"})
	assert.ErrorIs(t, err, ErrUnknownMessage)

	reply, err := s.Send(context.Background(), "  about that  ", SendOptions{ReplyToID: msg.ID})
	require.NoError(t, err)
	assert.Equal(t, "about that", reply.Content)
	require.NotNil(t, reply.ReplyTo)
	assert.Equal(t, msg.ID, reply.ReplyTo.ID)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.Send(ctx, "late", SendOptions{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSendEnrichesMessage(t *testing.T) {
	s, user := joinedSession(t, &fakeProvider{})
	require.NoError(t, s.Select(ConversationDirect, "user-1"))

	msg, err := s.Send(context.Background(), "@Alice @Bob @alice see https://example.com/post", SendOptions{})
	require.NoError(t, err)

	assert.Equal(t, StatusSent, msg.Status)
	assert.Equal(t, []string{"user-1", "user-2"}, msg.Mentions)
	require.NotNil(t, msg.LinkPreview)
	assert.Equal(t, "https://example.com/post", msg.LinkPreview.URL)

	dm := DirectID(user.ID, "user-1")
	assert.Eventually(t, func() bool {
		got, _ := s.store.Message(dm, msg.ID)
		return got.Status == StatusRead
	}, time.Second, 5*time.Millisecond)
}

func TestEditAndDeleteOwnMessagesOnly(t *testing.T) {
	s, _ := joinedSession(t, &fakeProvider{})
	require.NoError(t, s.Select(ConversationChannel, "2"))

	theirs := s.post("2", Message{AuthorID: "user-3", Content: "mine, not yours"})
	assert.ErrorIs(t, s.Edit("2", theirs.ID, "hijacked"), ErrNotAuthor)
	assert.ErrorIs(t, s.Delete("2", theirs.ID), ErrNotAuthor)

	mine, err := s.Send(context.Background(), "typo", SendOptions{})
	require.NoError(t, err)
	settle(s)

	assert.ErrorIs(t, s.Edit("2", mine.ID, "  "), ErrEmptyMessage)
	require.NoError(t, s.Edit("2", mine.ID, "fixed"))
	got, _ := s.store.Message("2", mine.ID)
	assert.Equal(t, "fixed", got.Content)
	assert.True(t, got.Edited)

	require.NoError(t, s.Delete("2", mine.ID))
	_, ok := s.store.Message("2", mine.ID)
	assert.False(t, ok)

	assert.NoError(t, s.Edit("2", "gone", "x"), "missing messages are ignored")
	assert.NoError(t, s.Delete("2", "gone"))
}

func TestDeleteCancelsDelivery(t *testing.T) {
	s, _ := joinedSession(t, &fakeProvider{})
	require.NoError(t, s.Select(ConversationDirect, "user-4"))

	msg, err := s.Send(context.Background(), "never mind", SendOptions{})
	require.NoError(t, err)
	require.Equal(t, 1, s.delivery.Pending())

	_, dm, _ := s.Active()
	require.NoError(t, s.Delete(dm, msg.ID))
	assert.Equal(t, 0, s.delivery.Pending())

	time.Sleep(100 * time.Millisecond)
	_, ok := s.store.Message(dm, msg.ID)
	assert.False(t, ok)
}

func TestReactAndPin(t *testing.T) {
	s, user := joinedSession(t, &fakeProvider{})
	msg := s.post("1", Message{AuthorID: "user-1", Content: "ship it"})

	assert.ErrorIs(t, s.React("1", msg.ID, ""), ErrInvalidReaction)
	require.NoError(t, s.React("1", msg.ID, "👍"))
	require.NoError(t, s.React("1", msg.ID, "🚀"))
	got, _ := s.store.Message("1", msg.ID)
	assert.Equal(t, map[string][]string{"🚀": {user.ID}}, got.Reactions)

	require.NoError(t, s.TogglePin("1", msg.ID))
	pinned, err := s.Pinned("1")
	require.NoError(t, err)
	require.Len(t, pinned, 1)
	assert.Equal(t, msg.ID, pinned[0].ID)

	require.NoError(t, s.TogglePin("1", msg.ID))
	pinned, _ = s.Pinned("1")
	assert.Empty(t, pinned)
}

func TestSearchMessages(t *testing.T) {
	s, _ := joinedSession(t, &fakeProvider{})
	s.post("1", Message{AuthorID: "user-1", Content: "Standup at ten"})
	s.post("1", Message{AuthorID: "user-2", Content: "ok"})

	found, err := s.Messages("1", "STANDUP")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "Standup at ten", found[0].Content)
}

func TestMentionCandidates(t *testing.T) {
	s, _ := joinedSession(t, &fakeProvider{})

	names := func(users []User) []string {
		var out []string
		for _, u := range users {
			out = append(out, u.Username)
		}
		return out
	}

	assert.Equal(t, []string{"Alice", "Ann"}, names(s.MentionCandidates("a")))
	assert.Equal(t, []string{"Bob"}, names(s.MentionCandidates("B")))
	assert.Empty(t, s.MentionCandidates("AI"))
	assert.Len(t, s.MentionCandidates(""), 5)
}

func TestConversationsList(t *testing.T) {
	s, user := joinedSession(t, &fakeProvider{})

	summaries, err := s.Conversations()
	require.NoError(t, err)

	var channels, directs []ConversationSummary
	for _, c := range summaries {
		if c.Kind == ConversationChannel {
			channels = append(channels, c)
		} else {
			directs = append(directs, c)
		}
	}
	assert.Len(t, channels, 3)
	assert.Len(t, directs, 5, "bot and four roster users")
	for _, d := range directs {
		assert.Equal(t, DirectID(user.ID, d.TargetID), d.ID)
		assert.NotEqual(t, user.ID, d.TargetID)
	}
}

func TestThemePersistence(t *testing.T) {
	store := prefs.NewMemoryStore()
	withPrefs := func(o *Options) { o.Prefs = store }

	first := newTestSession(t, &fakeProvider{}, withPrefs)
	assert.Equal(t, "default", first.Theme().ID)

	theme, err := first.SetTheme("ocean")
	require.NoError(t, err)
	assert.Equal(t, "Ocean", theme.Name)

	_, err = first.SetTheme("neon")
	assert.ErrorIs(t, err, ErrUnknownTheme)
	assert.Equal(t, "ocean", first.Theme().ID)

	second := newTestSession(t, &fakeProvider{}, withPrefs)
	assert.Equal(t, "ocean", second.Theme().ID)

	require.NoError(t, store.Set(ThemeKey, "retired"))
	third := newTestSession(t, &fakeProvider{}, withPrefs)
	assert.Equal(t, "default", third.Theme().ID)
}

func TestSnapshot(t *testing.T) {
	s := newTestSession(t, &fakeProvider{})
	state := s.Snapshot()
	assert.Nil(t, state.User)
	assert.Empty(t, state.ActiveID)
	assert.NotEmpty(t, state.ReactionEmojis)

	user, err := s.Join("Ann")
	require.NoError(t, err)
	state = s.Snapshot()
	require.NotNil(t, state.User)
	assert.Equal(t, user.ID, state.User.ID)
	assert.Equal(t, "1", state.ActiveID)
	assert.Equal(t, "default", state.Theme.ID)
}

func TestSubscribeAndUnsubscribe(t *testing.T) {
	s := newTestSession(t, &fakeProvider{})
	rec := &recorder{}
	unsubscribe := s.Subscribe(rec.record)

	_, err := s.Join("Ann")
	require.NoError(t, err)
	assert.NotEmpty(t, rec.ofType(EventMessageAppended))
	assert.Len(t, rec.ofType(EventUserChanged), 1)

	unsubscribe()
	_, err = s.SetTheme("sunset")
	require.NoError(t, err)
	assert.Empty(t, rec.ofType(EventThemeChanged))
}
