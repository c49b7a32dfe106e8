package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/quillhq/quill/internal/log"
	"github.com/quillhq/quill/internal/store"
)

// writeJSON writes a JSON response with the given status code. Encodes
// to a buffer first so headers are only sent after successful encoding,
// leaving room for a proper 500 if encoding fails.
func writeJSON(w http.ResponseWriter, status int, data any, logger log.Logger) {
	buf := new(bytes.Buffer)
	if err := json.NewEncoder(buf).Encode(data); err != nil {
		logger.Error("failed to encode JSON response", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	if _, err := w.Write(buf.Bytes()); err != nil {
		// Client disconnects are common and expected.
		logger.Debug("failed to write response body", "error", err)
	}
}

// ErrorResponse is the JSON error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, code, message string, logger log.Logger) {
	writeJSON(w, status, ErrorResponse{Error: code, Message: message}, logger)
}

// writeStoreError maps persistence errors onto HTTP statuses.
func writeStoreError(w http.ResponseWriter, err error, logger log.Logger) {
	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, store.ErrMessageNotFound):
		writeError(w, http.StatusNotFound, "not_found", "resource not found", logger)
	case errors.Is(err, store.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "unauthorized", "not authorized for this resource", logger)
	case errors.Is(err, store.ErrChatExists), errors.Is(err, store.ErrMessageIDTaken):
		writeError(w, http.StatusConflict, "conflict", "resource already exists", logger)
	case errors.Is(err, store.ErrVersionConflict):
		writeError(w, http.StatusConflict, "conflict", "concurrent modification, retry", logger)
	default:
		logger.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error", logger)
	}
}
