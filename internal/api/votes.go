package api

import (
	"encoding/json"
	"net/http"

	"github.com/quillhq/quill/internal/store"
)

// handleGetVotes returns the votes in a chat the caller owns.
func (s *Server) handleGetVotes(w http.ResponseWriter, r *http.Request) {
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

	votes, err := s.store.VotesByChat(r.Context(), chatID)
	if err != nil {
		writeStoreError(w, err, s.logger)
		return
	}
	if votes == nil {
		votes = []store.Vote{}
	}
	writeJSON(w, http.StatusOK, votes, s.logger)
}

type voteRequest struct {
	ChatID    string `json:"chatId"`
	MessageID string `json:"messageId"`
	Type      string `json:"type"`
}

// handleVote records an up or down vote on a message. Re-voting the
// same message overwrites the previous vote.
func (s *Server) handleVote(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required", s.logger)
		return
	}

	var req voteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid request body", s.logger)
		return
	}
	if req.ChatID == "" || req.MessageID == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "chatId and messageId are required", s.logger)
		return
	}
	if req.Type != "up" && req.Type != "down" {
		writeError(w, http.StatusBadRequest, "bad_request", `type must be "up" or "down"`, s.logger)
		return
	}

	c, err := s.store.ChatByID(r.Context(), req.ChatID)
	if err != nil {
		writeStoreError(w, err, s.logger)
		return
	}
	if c.UserID != user.ID {
		writeError(w, http.StatusUnauthorized, "unauthorized", "not authorized for this chat", s.logger)
		return
	}

	vote := store.Vote{
		ChatID:    req.ChatID,
		MessageID: req.MessageID,
		IsUpvoted: req.Type == "up",
	}
	if err := s.store.VoteMessage(r.Context(), vote); err != nil {
		writeStoreError(w, err, s.logger)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "voted"}, s.logger)
}
