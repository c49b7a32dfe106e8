// Package blob stores uploaded files on the local filesystem and maps
// them to public URLs. Paths are {userID}/{chatID}/{filename} so one
// user's uploads can never collide with another's.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
)

// MaxFileSize is the upload size limit.
const MaxFileSize = 50 << 20 // 50 MB

// ErrFileTooLarge indicates the upload exceeded MaxFileSize.
var ErrFileTooLarge = errors.New("file exceeds size limit")

// ErrUnsupportedType indicates a content type outside the allowlist.
var ErrUnsupportedType = errors.New("unsupported content type")

// AllowedContentType reports whether uploads of the given content type
// are accepted: any image, plus PDFs.
func AllowedContentType(contentType string) bool {
	return strings.HasPrefix(contentType, "image/") ||
		contentType == "application/pdf"
}

var unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9.-]`)

// SanitizeFilename lowercases a filename and replaces everything
// outside [a-zA-Z0-9.-] with underscores, stripping any path prefix
// the client sent.
func SanitizeFilename(name string) string {
	name = filepath.Base(name)
	name = unsafeFilenameChars.ReplaceAllString(name, "_")
	return strings.ToLower(name)
}

// Store writes uploads under a root directory and returns public URLs
// under a base URL.
type Store struct {
	dir     string
	baseURL string
}

// NewStore creates a blob store rooted at dir, ensuring it exists.
func NewStore(dir, baseURL string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating storage directory: %w", err)
	}
	return &Store{dir: dir, baseURL: strings.TrimSuffix(baseURL, "/")}, nil
}

// Put stores the file content and returns its storage path and public
// URL. Content larger than MaxFileSize is rejected mid-copy. An upload
// to an existing path overwrites it; re-uploading the same file is
// idempotent by construction.
func (s *Store) Put(ctx context.Context, userID, chatID, filename string, r io.Reader) (string, string, error) {
	if err := ctx.Err(); err != nil {
		return "", "", err
	}

	name := SanitizeFilename(filename)
	relPath := filepath.Join(userID, chatID, name)
	fullPath := filepath.Join(s.dir, relPath)

	if err := os.MkdirAll(filepath.Dir(fullPath), 0o750); err != nil {
		return "", "", fmt.Errorf("creating upload directory: %w", err)
	}

	// Write to a temp file first so a failed upload never leaves a
	// truncated file at the final path.
	tmp, err := os.CreateTemp(filepath.Dir(fullPath), "."+name+".*")
	if err != nil {
		return "", "", fmt.Errorf("creating temp file: %w", err)
	}
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
	}()

	n, err := io.Copy(tmp, io.LimitReader(r, MaxFileSize+1))
	if err != nil {
		return "", "", fmt.Errorf("writing upload: %w", err)
	}
	if n > MaxFileSize {
		return "", "", ErrFileTooLarge
	}
	if err := tmp.Close(); err != nil {
		return "", "", fmt.Errorf("closing upload: %w", err)
	}

	if err := os.Rename(tmp.Name(), fullPath); err != nil {
		return "", "", fmt.Errorf("finalizing upload: %w", err)
	}

	urlPath := path.Join(userID, chatID, name)
	return urlPath, s.baseURL + "/" + urlPath, nil
}

// Open returns a reader for a stored file.
func (s *Store) Open(storagePath string) (io.ReadCloser, error) {
	f, err := os.Open(filepath.Join(s.dir, filepath.FromSlash(storagePath)))
	if err != nil {
		return nil, fmt.Errorf("opening stored file: %w", err)
	}
	return f, nil
}
