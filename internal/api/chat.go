package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/quillhq/quill/internal/chat"
	"github.com/quillhq/quill/internal/message"
	"github.com/quillhq/quill/internal/store"
	"github.com/quillhq/quill/internal/tools"
)

// chatSink bridges a turn onto an SSE stream. Model text goes out as
// "chunk" events, tool UI events keep their own event names, and
// persisted assistant message IDs arrive as "annotation" events.
type chatSink struct {
	sse *sseWriter
}

func (c *chatSink) Text(_ context.Context, delta string) error {
	return c.sse.writeEvent("chunk", map[string]string{"delta": delta})
}

func (c *chatSink) Emit(_ context.Context, event tools.Event) error {
	return c.sse.writeEvent(string(event.Type), map[string]any{"content": event.Content})
}

func (c *chatSink) Annotation(_ context.Context, messageID string) error {
	return c.sse.writeEvent("annotation", map[string]string{"messageIdFromServer": messageID})
}

func hasUserMessage(msgs []message.UIMessage) bool {
	for _, m := range msgs {
		if m.Role == message.RoleUser && m.Content != "" {
			return true
		}
	}
	return false
}

// handleChat runs one streaming chat turn.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required", s.logger)
		return
	}

	var req chat.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid request body", s.logger)
		return
	}
	if req.ID == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "chat id is required", s.logger)
		return
	}

	// Validate what we can before committing to a 200 event stream;
	// anything that fails later arrives as an "error" event instead.
	if req.ModelID != "" {
		if _, ok := chat.LookupModel(req.ModelID); !ok {
			writeError(w, http.StatusNotFound, "not_found", "unknown model", s.logger)
			return
		}
	}
	if !hasUserMessage(req.Messages) {
		writeError(w, http.StatusBadRequest, "bad_request", "no user message in request", s.logger)
		return
	}
	existing, err := s.store.ChatByID(r.Context(), req.ID)
	switch {
	case err == nil:
		if existing.UserID != user.ID {
			writeError(w, http.StatusUnauthorized, "unauthorized", "not authorized for this chat", s.logger)
			return
		}
	case errors.Is(err, store.ErrNotFound):
		// First turn; the orchestrator creates the chat.
	default:
		writeStoreError(w, err, s.logger)
		return
	}

	sse, err := newSSEWriter(w)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "streaming unsupported", s.logger)
		return
	}

	s.metrics.activeStreams.Inc()
	defer s.metrics.activeStreams.Dec()

	sink := &chatSink{sse: sse}
	if err := s.runner.ExecuteTurn(r.Context(), user.ID, req, sink); err != nil {
		s.writeStreamError(sse, err)
		return
	}

	if err := sse.writeEvent("done", map[string]bool{"done": true}); err != nil {
		s.logger.Debug("client disconnected before done event", "error", err)
	}
}

// writeStreamError reports a failure on an already-open event stream,
// where changing the HTTP status is no longer possible.
func (s *Server) writeStreamError(sse *sseWriter, err error) {
	code := "internal_error"
	msg := "internal server error"
	switch {
	case errors.Is(err, chat.ErrUnknownModel):
		code, msg = "bad_request", "unknown model"
	case errors.Is(err, chat.ErrNoUserMessage):
		code, msg = "bad_request", "no user message in request"
	case errors.Is(err, store.ErrUnauthorized):
		code, msg = "unauthorized", "not authorized for this chat"
	case errors.Is(err, context.Canceled):
		// Client went away; nobody is listening for an error event.
		s.logger.Debug("chat stream canceled")
		return
	default:
		s.logger.Error("chat turn failed", "error", err)
	}
	if writeErr := sse.writeEvent("error", ErrorResponse{Error: code, Message: msg}); writeErr != nil {
		s.logger.Debug("failed to write stream error", "error", writeErr)
	}
}

// handleDeleteChat removes a chat owned by the caller.
func (s *Server) handleDeleteChat(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required", s.logger)
		return
	}
	id := r.URL.Query().Get("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "id is required", s.logger)
		return
	}

	if err := s.store.DeleteChat(r.Context(), id, user.ID); err != nil {
		writeStoreError(w, err, s.logger)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"}, s.logger)
}

// handleHistory lists the caller's chats, newest first.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required", s.logger)
		return
	}

	chats, err := s.store.ChatsByUser(r.Context(), user.ID)
	if err != nil {
		writeStoreError(w, err, s.logger)
		return
	}
	if chats == nil {
		chats = []store.Chat{}
	}
	writeJSON(w, http.StatusOK, chats, s.logger)
}

// handleChatMessages returns a chat's messages in the UI shape, with
// tool invocations merged.
func (s *Server) handleChatMessages(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required", s.logger)
		return
	}
	chatID := r.URL.Query().Get("chatId")
	if chatID == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "chatId is required", s.logger)
		return
	}

	c, err := s.store.ChatByID(r.Context(), chatID)
	if err != nil {
		writeStoreError(w, err, s.logger)
		return
	}
	if c.UserID != user.ID {
		writeError(w, http.StatusUnauthorized, "unauthorized", "not authorized for this chat", s.logger)
		return
	}

	msgs, err := s.store.MessagesByChat(r.Context(), chatID)
	if err != nil {
		writeStoreError(w, err, s.logger)
		return
	}

	records := make([]message.Record, len(msgs))
	for i, m := range msgs {
		records[i] = message.Record{ID: m.ID, Role: m.Role, Content: m.Content}
	}
	writeJSON(w, http.StatusOK, message.DecodeAll(records), s.logger)
}
