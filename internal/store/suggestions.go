package store

import (
	"context"

	"github.com/quillhq/quill/internal/cache"
)

// SaveSuggestions persists AI-proposed edits for a document version.
func (s *Store) SaveSuggestions(ctx context.Context, suggestions []Suggestion) error {
	if len(suggestions) == 0 {
		return nil
	}
	base := s.now()
	docTags := make(map[string]struct{})
	for i := range suggestions {
		if suggestions[i].CreatedAt.IsZero() {
			suggestions[i].CreatedAt = base
		}
		docTags[tagDocSuggestions(suggestions[i].DocumentID)] = struct{}{}
	}
	if err := s.q.InsertSuggestions(ctx, suggestions); err != nil {
		return err
	}
	tags := make([]string, 0, len(docTags))
	for tag := range docTags {
		tags = append(tags, tag)
	}
	s.invalidate(ctx, tags...)
	return nil
}

// SuggestionsByDocument returns all suggestions recorded against any
// version of a document.
func (s *Store) SuggestionsByDocument(ctx context.Context, documentID string) ([]Suggestion, error) {
	return cachedJSON(ctx, s.cache, "suggestions:document:"+documentID, cache.EntityTTL,
		[]string{tagDocSuggestions(documentID)},
		func(ctx context.Context) ([]Suggestion, error) {
			return s.q.SuggestionsByDocument(ctx, documentID)
		})
}
