package tools

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/quillhq/quill/internal/log"
	"github.com/quillhq/quill/internal/store"
)

// DocumentStore is the document persistence the tools need.
type DocumentStore interface {
	SaveDocument(ctx context.Context, id, title, content string, userID uuid.UUID) (store.Document, error)
	LatestDocument(ctx context.Context, id string) (store.Document, error)
}

// SuggestionStore persists generated suggestions.
type SuggestionStore interface {
	SaveSuggestions(ctx context.Context, suggestions []store.Suggestion) error
}

// Handler implements the tool bodies. Failures that the model can
// recover from (missing document, missing user) come back as error
// outputs rather than Go errors, so the model can explain the problem
// instead of aborting the turn.
type Handler struct {
	documents   DocumentStore
	suggestions SuggestionStore
	generator   Generator
	weather     WeatherClient
	logger      log.Logger
}

// NewHandler wires the tool implementations.
func NewHandler(documents DocumentStore, suggestions SuggestionStore, generator Generator, weather WeatherClient, logger log.Logger) *Handler {
	return &Handler{
		documents:   documents,
		suggestions: suggestions,
		generator:   generator,
		weather:     weather,
		logger:      logger,
	}
}

// GetWeather returns current conditions at a coordinate. The raw
// provider payload goes straight back to the model.
func (h *Handler) GetWeather(ctx context.Context, input WeatherInput) (json.RawMessage, error) {
	return h.weather.CurrentWeather(ctx, input.Latitude, input.Longitude)
}

const (
	documentCreatedMessage = "A document was created and is now visible to the user."
	documentUpdatedMessage = "The document has been updated successfully."
	suggestionsMessage     = "Suggestions have been added to the document"
	documentNotFoundError  = "Document not found"
	noUserError            = "No authenticated user"
)

// CreateDocument generates a new document, streaming its content to the
// UI while it is written, then persists the first version.
func (h *Handler) CreateDocument(ctx context.Context, input CreateDocumentInput) (DocumentOutput, error) {
	userID, ok := UserIDFromContext(ctx)
	if !ok {
		return DocumentOutput{Error: noUserError}, nil
	}

	id := uuid.NewString()
	if err := emit(ctx, Event{Type: EventID, Content: id}); err != nil {
		return DocumentOutput{}, err
	}
	if err := emit(ctx, Event{Type: EventTitle, Content: input.Title}); err != nil {
		return DocumentOutput{}, err
	}
	if err := emit(ctx, Event{Type: EventClear}); err != nil {
		return DocumentOutput{}, err
	}

	content, err := h.generator.DraftDocument(ctx, input.Title, func(delta string) error {
		return emit(ctx, Event{Type: EventTextDelta, Content: delta})
	})
	if err != nil {
		return DocumentOutput{}, err
	}
	if err := emit(ctx, Event{Type: EventFinish}); err != nil {
		return DocumentOutput{}, err
	}

	if _, err := h.documents.SaveDocument(ctx, id, input.Title, content, userID); err != nil {
		return DocumentOutput{}, err
	}
	h.logger.Info("document created", "document_id", id, "title", input.Title)

	return DocumentOutput{ID: id, Title: input.Title, Content: documentCreatedMessage}, nil
}

// UpdateDocument revises an existing document per the description,
// streaming the new content and persisting it as a new version.
func (h *Handler) UpdateDocument(ctx context.Context, input UpdateDocumentInput) (DocumentOutput, error) {
	userID, ok := UserIDFromContext(ctx)
	if !ok {
		return DocumentOutput{Error: noUserError}, nil
	}

	doc, err := h.documents.LatestDocument(ctx, input.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return DocumentOutput{Error: documentNotFoundError}, nil
		}
		return DocumentOutput{}, err
	}

	if err := emit(ctx, Event{Type: EventClear, Content: doc.Title}); err != nil {
		return DocumentOutput{}, err
	}

	content, err := h.generator.ReviseDocument(ctx, doc.Content, input.Description, func(delta string) error {
		return emit(ctx, Event{Type: EventTextDelta, Content: delta})
	})
	if err != nil {
		return DocumentOutput{}, err
	}
	if err := emit(ctx, Event{Type: EventFinish}); err != nil {
		return DocumentOutput{}, err
	}

	if _, err := h.documents.SaveDocument(ctx, doc.ID, doc.Title, content, userID); err != nil {
		return DocumentOutput{}, err
	}
	h.logger.Info("document updated", "document_id", doc.ID)

	return DocumentOutput{ID: doc.ID, Title: doc.Title, Content: documentUpdatedMessage}, nil
}

// uiSuggestion is the shape suggestion events carry to the client.
type uiSuggestion struct {
	ID                string `json:"id"`
	DocumentID        string `json:"documentId"`
	OriginalText      string `json:"originalText"`
	SuggestedText     string `json:"suggestedText"`
	Description       string `json:"description"`
	IsResolved        bool   `json:"isResolved"`
	DocumentCreatedAt string `json:"documentCreatedAt"`
}

// RequestSuggestions generates writing suggestions for a document,
// streaming each one to the UI and persisting the batch against the
// document's current version.
func (h *Handler) RequestSuggestions(ctx context.Context, input SuggestionsInput) (SuggestionsOutput, error) {
	userID, ok := UserIDFromContext(ctx)
	if !ok {
		return SuggestionsOutput{Error: noUserError}, nil
	}

	doc, err := h.documents.LatestDocument(ctx, input.DocumentID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return SuggestionsOutput{Error: documentNotFoundError}, nil
		}
		return SuggestionsOutput{}, err
	}
	// A version with no content gives the generator nothing to work on.
	if doc.Content == "" {
		return SuggestionsOutput{Error: documentNotFoundError}, nil
	}

	drafts, err := h.generator.Suggestions(ctx, doc.Content)
	if err != nil {
		return SuggestionsOutput{}, err
	}
	if len(drafts) > maxSuggestions {
		drafts = drafts[:maxSuggestions]
	}

	suggestions := make([]store.Suggestion, 0, len(drafts))
	for _, d := range drafts {
		s := store.Suggestion{
			ID:                uuid.New(),
			DocumentID:        doc.ID,
			DocumentCreatedAt: doc.CreatedAt,
			OriginalText:      d.OriginalSentence,
			SuggestedText:     d.SuggestedSentence,
			Description:       d.Description,
			UserID:            userID,
		}
		suggestions = append(suggestions, s)

		err := emit(ctx, Event{Type: EventSuggestion, Content: uiSuggestion{
			ID:                s.ID.String(),
			DocumentID:        s.DocumentID,
			OriginalText:      s.OriginalText,
			SuggestedText:     s.SuggestedText,
			Description:       s.Description,
			DocumentCreatedAt: s.DocumentCreatedAt.Format(time.RFC3339),
		}})
		if err != nil {
			return SuggestionsOutput{}, err
		}
	}

	if err := h.suggestions.SaveSuggestions(ctx, suggestions); err != nil {
		return SuggestionsOutput{}, err
	}
	h.logger.Info("suggestions added", "document_id", doc.ID, "count", len(suggestions))

	return SuggestionsOutput{ID: doc.ID, Title: doc.Title, Message: suggestionsMessage}, nil
}
