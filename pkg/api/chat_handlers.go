package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/testsabirweb/chatsim/pkg/catalog"
	"github.com/testsabirweb/chatsim/pkg/chat"
)

// JoinRequest starts the session
type JoinRequest struct {
	Username string `json:"username"`
}

// ProfileRequest updates the session user. Empty fields keep their value.
type ProfileRequest struct {
	Username  string `json:"username"`
	Status    string `json:"status"`
	AvatarURL string `json:"avatarUrl"`
}

// SelectRequest focuses a conversation
type SelectRequest struct {
	Type chat.ConversationKind `json:"type"`
	ID   string                `json:"id"`
}

// SendRequest posts a message to the active conversation
type SendRequest struct {
	Content string `json:"content"`
	chat.SendOptions
}

// EditRequest replaces a message's content
type EditRequest struct {
	Content string `json:"content"`
}

// ReactionRequest toggles a reaction
type ReactionRequest struct {
	Emoji string `json:"emoji"`
}

// SuggestionRequest sends one of the smart replies
type SuggestionRequest struct {
	Text string `json:"text"`
}

// ThemeRequest selects a theme
type ThemeRequest struct {
	ID string `json:"id"`
}

// ActiveResponse describes the focused conversation
type ActiveResponse struct {
	ID           string            `json:"id"`
	Conversation chat.Conversation `json:"conversation"`
	Composing    bool              `json:"composing"`
}

// ThemesResponse lists the themes and the selected one
type ThemesResponse struct {
	Selected catalog.Theme   `json:"selected"`
	Themes   []catalog.Theme `json:"themes"`
}

func (s *Server) registerSession(r *mux.Router) {
	r.HandleFunc("/session", s.getSession).Methods(http.MethodGet)
	r.HandleFunc("/session", s.join).Methods(http.MethodPost)
	r.HandleFunc("/session", s.logout).Methods(http.MethodDelete)
	r.HandleFunc("/session/profile", s.updateProfile).Methods(http.MethodPatch)
	r.HandleFunc("/users", s.listUsers).Methods(http.MethodGet)
}

func (s *Server) registerConversations(r *mux.Router) {
	r.HandleFunc("/channels", s.listChannels).Methods(http.MethodGet)
	r.HandleFunc("/channels/{id}/members", s.listMembers).Methods(http.MethodGet)
	r.HandleFunc("/conversations", s.listConversations).Methods(http.MethodGet)
	r.HandleFunc("/conversations/active", s.getActive).Methods(http.MethodGet)
	r.HandleFunc("/conversations/active", s.selectConversation).Methods(http.MethodPut)
}

func (s *Server) registerMessages(r *mux.Router) {
	r.HandleFunc("/conversations/{id}/messages", s.listMessages).Methods(http.MethodGet)
	r.HandleFunc("/conversations/{id}/messages", s.sendMessage).Methods(http.MethodPost)
	r.HandleFunc("/conversations/{id}/messages/{mid}", s.editMessage).Methods(http.MethodPatch)
	r.HandleFunc("/conversations/{id}/messages/{mid}", s.deleteMessage).Methods(http.MethodDelete)
	r.HandleFunc("/conversations/{id}/messages/{mid}/reactions", s.react).Methods(http.MethodPost)
	r.HandleFunc("/conversations/{id}/messages/{mid}/pin", s.togglePin).Methods(http.MethodPost)
	r.HandleFunc("/conversations/{id}/pins", s.listPins).Methods(http.MethodGet)
}

func (s *Server) registerExtras(r *mux.Router) {
	r.HandleFunc("/suggestions", s.listSuggestions).Methods(http.MethodGet)
	r.HandleFunc("/suggestions/select", s.selectSuggestion).Methods(http.MethodPost)
	r.HandleFunc("/mentions", s.mentionCandidates).Methods(http.MethodGet)
	r.HandleFunc("/theme", s.getTheme).Methods(http.MethodGet)
	r.HandleFunc("/theme", s.setTheme).Methods(http.MethodPut)
	r.HandleFunc("/state", s.getState).Methods(http.MethodGet)
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	user, err := s.session.CurrentUser()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) join(w http.ResponseWriter, r *http.Request) {
	var req JoinRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := s.session.Join(req.Username)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	if err := s.session.Logout(); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) updateProfile(w http.ResponseWriter, r *http.Request) {
	var req ProfileRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := s.session.UpdateProfile(req.Username, req.Status, req.AvatarURL)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.session.Users())
}

func (s *Server) listChannels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.session.Channels())
}

func (s *Server) listMembers(w http.ResponseWriter, r *http.Request) {
	members, err := s.session.ChannelMembers(mux.Vars(r)["id"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, members)
}

func (s *Server) listConversations(w http.ResponseWriter, r *http.Request) {
	conversations, err := s.session.Conversations()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, conversations)
}

func (s *Server) getActive(w http.ResponseWriter, r *http.Request) {
	conv, id, err := s.session.Active()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ActiveResponse{
		ID:           id,
		Conversation: conv,
		Composing:    s.session.Composing(id),
	})
}

func (s *Server) selectConversation(w http.ResponseWriter, r *http.Request) {
	var req SelectRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.session.Select(req.Type, req.ID); err != nil {
		s.fail(w, r, err)
		return
	}
	s.getActive(w, r)
}

func (s *Server) listMessages(w http.ResponseWriter, r *http.Request) {
	conversationID := mux.Vars(r)["id"]
	req := searchRequestFrom(r)

	if req.Query == "" {
		messages, err := s.session.Messages(conversationID, "")
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, messages)
		return
	}

	if err := req.Validate(); err != nil {
		s.fail(w, r, err)
		return
	}
	matches, err := s.session.Messages(conversationID, req.Query)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, req.page(matches))
}

func (s *Server) sendMessage(w http.ResponseWriter, r *http.Request) {
	var req SendRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	_, activeID, err := s.session.Active()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if activeID != mux.Vars(r)["id"] {
		s.fail(w, r, errNotActive)
		return
	}

	msg, err := s.session.Send(r.Context(), req.Content, req.SendOptions)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

func (s *Server) editMessage(w http.ResponseWriter, r *http.Request) {
	var req EditRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	vars := mux.Vars(r)
	if err := s.session.Edit(vars["id"], vars["mid"], req.Content); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) deleteMessage(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := s.session.Delete(vars["id"], vars["mid"]); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) react(w http.ResponseWriter, r *http.Request) {
	var req ReactionRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	vars := mux.Vars(r)
	if err := s.session.React(vars["id"], vars["mid"], req.Emoji); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) togglePin(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := s.session.TogglePin(vars["id"], vars["mid"]); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listPins(w http.ResponseWriter, r *http.Request) {
	pinned, err := s.session.Pinned(mux.Vars(r)["id"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pinned)
}

func (s *Server) listSuggestions(w http.ResponseWriter, r *http.Request) {
	suggestions := s.session.Suggestions()
	if suggestions == nil {
		suggestions = []string{}
	}
	writeJSON(w, http.StatusOK, suggestions)
}

func (s *Server) selectSuggestion(w http.ResponseWriter, r *http.Request) {
	var req SuggestionRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	msg, err := s.session.SelectSuggestion(r.Context(), req.Text)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

func (s *Server) mentionCandidates(w http.ResponseWriter, r *http.Request) {
	users := s.session.MentionCandidates(r.URL.Query().Get("prefix"))
	if users == nil {
		users = []chat.User{}
	}
	writeJSON(w, http.StatusOK, users)
}

func (s *Server) getTheme(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ThemesResponse{
		Selected: s.session.Theme(),
		Themes:   s.session.Themes(),
	})
}

func (s *Server) setTheme(w http.ResponseWriter, r *http.Request) {
	var req ThemeRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	theme, err := s.session.SetTheme(req.ID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, theme)
}

func (s *Server) getState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.session.Snapshot())
}
