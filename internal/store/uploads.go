package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// SaveFileUpload records an uploaded file. Re-uploading to the same
// storage path returns the existing record instead of duplicating it.
func (s *Store) SaveFileUpload(ctx context.Context, upload FileUpload) (FileUpload, error) {
	existing, err := s.q.FileUploadByPath(ctx, upload.StoragePath)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return FileUpload{}, err
	}

	if upload.ID == uuid.Nil {
		upload.ID = uuid.New()
	}
	created, err := s.q.InsertFileUpload(ctx, upload)
	if err != nil {
		// Concurrent upload to the same path. The winner's record serves.
		if errors.Is(err, ErrUniqueViolation) {
			return s.q.FileUploadByPath(ctx, upload.StoragePath)
		}
		return FileUpload{}, err
	}
	return created, nil
}

// FileUploadByPath returns the record stored at the given path.
func (s *Store) FileUploadByPath(ctx context.Context, storagePath string) (FileUpload, error) {
	return s.q.FileUploadByPath(ctx, storagePath)
}
