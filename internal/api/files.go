package api

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/quillhq/quill/internal/blob"
	"github.com/quillhq/quill/internal/store"
)

type uploadResponse struct {
	URL         string `json:"url"`
	Pathname    string `json:"pathname"`
	ContentType string `json:"contentType"`
}

// countingReader tracks how many bytes passed through.
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// handleUpload stores a multipart file upload and records it. Images
// and PDFs only, up to blob.MaxFileSize.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required", s.logger)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, blob.MaxFileSize+1<<20)
	if err := r.ParseMultipartForm(4 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid multipart form", s.logger)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "file field is required", s.logger)
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if !blob.AllowedContentType(contentType) {
		writeError(w, http.StatusBadRequest, "unsupported_type", "only images and PDFs are accepted", s.logger)
		return
	}

	chatID := r.FormValue("chatId")

	counted := &countingReader{r: file}
	storagePath, url, err := s.blob.Put(r.Context(), user.ID.String(), chatID, header.Filename, counted)
	if err != nil {
		switch {
		case errors.Is(err, blob.ErrFileTooLarge):
			writeError(w, http.StatusRequestEntityTooLarge, "file_too_large", "file exceeds the 50 MB limit", s.logger)
		case errors.Is(err, blob.ErrUnsupportedType):
			writeError(w, http.StatusBadRequest, "unsupported_type", "only images and PDFs are accepted", s.logger)
		default:
			s.logger.Error("file upload failed", "error", err)
			writeError(w, http.StatusInternalServerError, "internal_error", "upload failed", s.logger)
		}
		return
	}

	upload := store.FileUpload{
		ID:          uuid.New(),
		UserID:      user.ID,
		ChatID:      chatID,
		Filename:    blob.SanitizeFilename(header.Filename),
		ContentType: contentType,
		SizeBytes:   counted.n,
		StoragePath: storagePath,
		URL:         url,
	}
	saved, err := s.store.SaveFileUpload(r.Context(), upload)
	if err != nil {
		writeStoreError(w, err, s.logger)
		return
	}

	writeJSON(w, http.StatusOK, uploadResponse{
		URL:         saved.URL,
		Pathname:    saved.StoragePath,
		ContentType: saved.ContentType,
	}, s.logger)
}

// handleServeFile streams a stored file back to the client.
func (s *Server) handleServeFile(w http.ResponseWriter, r *http.Request) {
	path := r.PathValue("path")
	if path == "" || strings.Contains(path, "..") {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid path", s.logger)
		return
	}

	f, err := s.blob.Open(path)
	if err != nil {
		writeError(w, http.StatusNotFound, "not_found", "file not found", s.logger)
		return
	}
	defer f.Close()

	w.Header().Set("X-Content-Type-Options", "nosniff")
	if _, err := io.Copy(w, f); err != nil {
		s.logger.Debug("failed to stream file", "error", err)
	}
}
