package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/testsabirweb/chatsim/pkg/catalog"
	"github.com/testsabirweb/chatsim/pkg/chat"
)

const helpText = `Commands:
  /channel <id>              switch to a channel
  /dm <user>                 open a direct message by username or id
  /users                     list users
  /history [query]           show or search the active conversation
  /reply <message-id> <text> reply to a message
  /edit <message-id> <text>  edit one of your messages
  /delete <message-id>       delete one of your messages
  /react <message-id> <emoji> toggle a reaction
  /pin <message-id>          toggle a pin
  /pins                      list pinned messages
  /suggest [n]               list smart replies, or send reply n
  /theme [id]                show or select a theme
  /quit                      leave
Anything else is sent as a message.`

var errQuit = errors.New("quit")

// repl drives a session from line-oriented input and prints its events
type repl struct {
	session *chat.Session
	botID   string
	detach  func()

	mu  sync.Mutex
	out io.Writer
}

func newREPL(session *chat.Session, botID string, out io.Writer) *repl {
	r := &repl{session: session, botID: botID, out: out}
	r.detach = session.Subscribe(r.onEvent)
	return r
}

func (r *repl) close() {
	r.detach()
}

func (r *repl) run(ctx context.Context, in io.Reader) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	r.printf("Type /help for commands.\n")
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			err := r.handle(ctx, line)
			if errors.Is(err, errQuit) {
				return nil
			}
			if err != nil {
				r.printf("! %v\n", err)
			}
		}
	}
}

func (r *repl) handle(ctx context.Context, line string) error {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}
	if !strings.HasPrefix(line, "/") {
		_, err := r.session.Send(ctx, line, chat.SendOptions{})
		return err
	}

	cmd, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)

	switch cmd {
	case "/help":
		r.printf("%s\n", helpText)
	case "/quit", "/exit":
		return errQuit
	case "/channel":
		return r.session.Select(chat.ConversationChannel, rest)
	case "/dm":
		return r.openDirect(rest)
	case "/users":
		for _, u := range r.session.Users() {
			r.printf("  %-10s %-12s %s\n", u.ID, u.Username, u.Status)
		}
	case "/history":
		return r.history(rest)
	case "/reply":
		id, text, _ := strings.Cut(rest, " ")
		_, err := r.session.Send(ctx, text, chat.SendOptions{ReplyToID: id})
		return err
	case "/edit":
		id, text, _ := strings.Cut(rest, " ")
		return r.withActive(func(convID string) error { return r.session.Edit(convID, id, text) })
	case "/delete":
		return r.withActive(func(convID string) error { return r.session.Delete(convID, rest) })
	case "/react":
		id, emoji, _ := strings.Cut(rest, " ")
		return r.withActive(func(convID string) error { return r.session.React(convID, id, strings.TrimSpace(emoji)) })
	case "/pin":
		return r.withActive(func(convID string) error { return r.session.TogglePin(convID, rest) })
	case "/pins":
		return r.withActive(func(convID string) error {
			pinned, err := r.session.Pinned(convID)
			if err != nil {
				return err
			}
			for _, m := range pinned {
				r.printMessage(m)
			}
			return nil
		})
	case "/suggest":
		return r.suggest(ctx, rest)
	case "/theme":
		return r.theme(rest)
	default:
		return fmt.Errorf("unknown command %s, try /help", cmd)
	}
	return nil
}

func (r *repl) openDirect(target string) error {
	for _, u := range r.session.Users() {
		if u.ID == target || strings.EqualFold(u.Username, target) {
			return r.session.Select(chat.ConversationDirect, u.ID)
		}
	}
	return fmt.Errorf("%w: user %s", chat.ErrUnknownConversation, target)
}

func (r *repl) history(query string) error {
	return r.withActive(func(convID string) error {
		messages, err := r.session.Messages(convID, query)
		if err != nil {
			return err
		}
		for _, m := range messages {
			r.printMessage(m)
		}
		return nil
	})
}

func (r *repl) suggest(ctx context.Context, arg string) error {
	suggestions := r.session.Suggestions()
	if arg == "" {
		if len(suggestions) == 0 {
			r.printf("  no suggestions\n")
		}
		for i, s := range suggestions {
			r.printf("  %d) %s\n", i+1, s)
		}
		return nil
	}

	n, err := strconv.Atoi(arg)
	if err != nil || n < 1 || n > len(suggestions) {
		return chat.ErrUnknownSuggestion
	}
	_, err = r.session.SelectSuggestion(ctx, suggestions[n-1])
	return err
}

func (r *repl) theme(id string) error {
	if id == "" {
		current := r.session.Theme()
		for _, t := range r.session.Themes() {
			marker := " "
			if t.ID == current.ID {
				marker = "*"
			}
			r.printf("%s %-10s %s\n", marker, t.ID, t.Name)
		}
		return nil
	}
	_, err := r.session.SetTheme(id)
	return err
}

func (r *repl) withActive(fn func(conversationID string) error) error {
	_, convID, err := r.session.Active()
	if err != nil {
		return err
	}
	return fn(convID)
}

func (r *repl) onEvent(e chat.Event) {
	switch e.Type {
	case chat.EventMessageAppended:
		if e.Message != nil && e.Message.Content != "" {
			r.printMessage(*e.Message)
		}
	case chat.EventComposingChanged:
		if composing, _ := e.Data.(bool); composing {
			r.printf("  [%s] bot is typing...\n", e.ConversationID)
			return
		}
		r.printLastBotReply(e.ConversationID)
	case chat.EventActiveChanged:
		if conv, ok := e.Data.(chat.Conversation); ok {
			r.printf("-- now in %s --\n", conv.Name())
		}
	case chat.EventUnreadChanged:
		if n, _ := e.Data.(int); n > 0 {
			r.printf("  (%d unread in %s)\n", n, e.ConversationID)
		}
	case chat.EventSuggestionsChanged:
		if suggestions, _ := e.Data.([]string); len(suggestions) > 0 {
			r.printf("  suggestions: %s\n", strings.Join(suggestions, " | "))
		}
	case chat.EventThemeChanged:
		if t, ok := e.Data.(catalog.Theme); ok {
			r.printf("-- theme %s --\n", t.Name)
		}
	}
}

func (r *repl) printLastBotReply(conversationID string) {
	messages, err := r.session.Messages(conversationID, "")
	if err != nil {
		return
	}
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].AuthorID == r.botID {
			r.printMessage(messages[i])
			return
		}
	}
}

func (r *repl) printMessage(m chat.Message) {
	name := m.Author.Username
	if name == "" {
		name = m.AuthorID
	}

	var flags []string
	if m.Edited {
		flags = append(flags, "edited")
	}
	if m.Pinned {
		flags = append(flags, "pinned")
	}
	if m.Status != "" {
		flags = append(flags, string(m.Status))
	}
	suffix := ""
	if len(flags) > 0 {
		suffix = " (" + strings.Join(flags, ", ") + ")"
	}

	prefix := ""
	if m.ReplyTo != nil {
		prefix = "↪ " + m.ReplyTo.Author.Username + ": "
	}

	body := m.Content
	if m.ImageURL != "" {
		body = strings.TrimSpace(body + " [image " + m.ImageURL + "]")
	}
	if m.LinkPreview != nil {
		body += " [link " + m.LinkPreview.Title + "]"
	}

	r.printf("  [%s] %s %s%s: %s%s\n", m.ConversationID, m.ID, prefix, name, body, suffix)
}

func (r *repl) printf(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.out, format, args...)
}
