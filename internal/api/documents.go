package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/quillhq/quill/internal/store"
)

// handleGetDocument returns every version of a document, oldest first.
func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
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

	versions, err := s.store.DocumentVersions(r.Context(), id)
	if err != nil {
		writeStoreError(w, err, s.logger)
		return
	}
	if len(versions) == 0 {
		writeError(w, http.StatusNotFound, "not_found", "document not found", s.logger)
		return
	}
	if versions[0].UserID != user.ID {
		writeError(w, http.StatusUnauthorized, "unauthorized", "not authorized for this document", s.logger)
		return
	}
	writeJSON(w, http.StatusOK, versions, s.logger)
}

type saveDocumentRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// handleSaveDocument appends a new version of a document.
func (s *Server) handleSaveDocument(w http.ResponseWriter, r *http.Request) {
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

	var req saveDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid request body", s.logger)
		return
	}
	if req.Title == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "title is required", s.logger)
		return
	}

	doc, err := s.store.SaveDocument(r.Context(), id, req.Title, req.Content, user.ID)
	if err != nil {
		writeStoreError(w, err, s.logger)
		return
	}
	writeJSON(w, http.StatusOK, doc, s.logger)
}

type revertDocumentRequest struct {
	Timestamp time.Time `json:"timestamp"`
}

// handleRevertDocument deletes every version stamped at or after the
// given timestamp.
func (s *Server) handleRevertDocument(w http.ResponseWriter, r *http.Request) {
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

	var req revertDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Timestamp.IsZero() {
		writeError(w, http.StatusBadRequest, "bad_request", "timestamp is required", s.logger)
		return
	}

	if err := s.store.DeleteDocumentVersionsAfter(r.Context(), id, req.Timestamp, user.ID); err != nil {
		writeStoreError(w, err, s.logger)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reverted"}, s.logger)
}

// handleSuggestions returns the suggestions attached to a document.
func (s *Server) handleSuggestions(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required", s.logger)
		return
	}
	documentID := r.URL.Query().Get("documentId")
	if documentID == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "documentId is required", s.logger)
		return
	}

	latest, err := s.store.LatestDocument(r.Context(), documentID)
	if err != nil {
		writeStoreError(w, err, s.logger)
		return
	}
	if latest.UserID != user.ID {
		writeError(w, http.StatusUnauthorized, "unauthorized", "not authorized for this document", s.logger)
		return
	}

	suggestions, err := s.store.SuggestionsByDocument(r.Context(), documentID)
	if err != nil {
		writeStoreError(w, err, s.logger)
		return
	}
	if suggestions == nil {
		suggestions = []store.Suggestion{}
	}
	writeJSON(w, http.StatusOK, suggestions, s.logger)
}
