package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/testsabirweb/chatsim/pkg/chat"
)

// errNotActive is returned when a message is posted to a conversation other
// than the focused one
var errNotActive = errors.New("conversation is not active")

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// statusFor maps domain errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, chat.ErrNoSession):
		return http.StatusUnauthorized
	case errors.Is(err, chat.ErrNotAuthor):
		return http.StatusForbidden
	case errors.Is(err, chat.ErrUnknownConversation),
		errors.Is(err, chat.ErrUnknownMessage),
		errors.Is(err, chat.ErrUnknownTheme):
		return http.StatusNotFound
	case errors.Is(err, chat.ErrAlreadyJoined),
		errors.Is(err, chat.ErrComposing),
		errors.Is(err, errNotActive):
		return http.StatusConflict
	case errors.Is(err, chat.ErrUnknownSuggestion):
		return http.StatusUnprocessableEntity
	case errors.Is(err, chat.ErrInvalidUsername),
		errors.Is(err, chat.ErrEmptyMessage),
		errors.Is(err, chat.ErrInvalidReaction),
		errors.Is(err, ErrEmptyQuery):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("request_failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
	}
	writeError(w, status, err.Error())
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errInvalidJSON
	}
	return nil
}

var errInvalidJSON = errors.New("invalid json")
