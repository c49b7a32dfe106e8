package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/quillhq/quill/internal/cache"
)

// LatestDocument returns the newest version of a document.
func (s *Store) LatestDocument(ctx context.Context, id string) (Document, error) {
	return cachedJSON(ctx, s.cache, "document:"+id, cache.EntityTTL,
		[]string{tagDocument(id), tagAllDocuments},
		func(ctx context.Context) (Document, error) {
			return s.q.LatestDocument(ctx, id)
		})
}

// DocumentVersions returns every version of a document, oldest first.
func (s *Store) DocumentVersions(ctx context.Context, id string) ([]Document, error) {
	return cachedJSON(ctx, s.cache, "documents:"+id, cache.EntityTTL,
		[]string{tagDocVersions(id), tagDocument(id), tagAllDocuments},
		func(ctx context.Context) ([]Document, error) {
			return s.q.DocumentVersions(ctx, id)
		})
}

// DeleteDocumentVersionsAfter removes every version stamped at or after
// the given timestamp, restoring the document to the state just before
// it. Suggestions tied to the removed versions cascade away. Only the
// owner may revert.
func (s *Store) DeleteDocumentVersionsAfter(ctx context.Context, id string, after time.Time, userID uuid.UUID) error {
	latest, err := s.q.LatestDocument(ctx, id)
	if err != nil {
		return err
	}
	if latest.UserID != userID {
		return ErrUnauthorized
	}
	if err := s.q.DeleteDocumentVersionsAfter(ctx, id, after); err != nil {
		return err
	}
	s.invalidate(ctx,
		tagDocument(id), tagDocVersions(id), tagDocSuggestions(id), tagAllDocuments)
	return nil
}

// SaveDocument appends a new version of a document, creating the
// document if it does not exist. Only the owner may add versions to an
// existing document.
//
// Version timestamps are strictly monotonic: each version is stamped at
// least one second after the previous latest, so (id, created_at) stays
// unique even for rapid saves. A concurrent writer landing on the same
// timestamp triggers a retry against the refreshed latest version.
func (s *Store) SaveDocument(ctx context.Context, id, title, content string, userID uuid.UUID) (Document, error) {
	var lastErr error
	for attempt := 1; attempt <= maxSaveAttempts; attempt++ {
		latest, err := s.q.LatestDocument(ctx, id)
		switch {
		case errors.Is(err, ErrNotFound):
			latest = Document{}
		case err != nil:
			return Document{}, err
		default:
			if latest.UserID != userID {
				return Document{}, ErrUnauthorized
			}
		}

		doc := Document{
			ID:        id,
			CreatedAt: s.nextVersionTimestamp(latest),
			Title:     title,
			Content:   content,
			UserID:    userID,
		}
		err = s.q.InsertDocument(ctx, doc)
		if err == nil {
			s.invalidate(ctx,
				tagDocument(id), tagDocVersions(id), tagAllDocuments)
			return doc, nil
		}
		if !errors.Is(err, ErrUniqueViolation) {
			return Document{}, err
		}

		lastErr = err
		s.logger.Debug("document version collision, retrying",
			"document_id", id, "attempt", attempt)
		if attempt < maxSaveAttempts {
			if err := s.sleep(ctx, saveRetryDelay(attempt)); err != nil {
				return Document{}, err
			}
		}
	}
	return Document{}, errors.Join(ErrVersionConflict, lastErr)
}
