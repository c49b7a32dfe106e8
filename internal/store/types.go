package store

import (
	"time"

	"github.com/google/uuid"
)

// User is a registered account.
type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Chat is a conversation owned by a user. IDs are client-generated so
// the first request of a new conversation can stream before the chat
// row exists.
type Chat struct {
	ID        string    `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

// Message is one stored chat message. Content is the encoded wire form
// produced by the message package.
type Message struct {
	ID        string    `json:"id"`
	ChatID    string    `json:"chat_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Vote records a user's up or down vote on a message. One vote per
// (chat, message); re-voting overwrites.
type Vote struct {
	ChatID    string `json:"chat_id"`
	MessageID string `json:"message_id"`
	IsUpvoted bool   `json:"is_upvoted"`
}

// Document is one version of a versioned document. All versions share
// an ID; CreatedAt distinguishes them and orders the history.
type Document struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	UserID    uuid.UUID `json:"user_id"`
}

// Suggestion is an AI-proposed edit tied to a specific document version.
type Suggestion struct {
	ID                uuid.UUID `json:"id"`
	DocumentID        string    `json:"document_id"`
	DocumentCreatedAt time.Time `json:"document_created_at"`
	OriginalText      string    `json:"original_text"`
	SuggestedText     string    `json:"suggested_text"`
	Description       string    `json:"description"`
	IsResolved        bool      `json:"is_resolved"`
	UserID            uuid.UUID `json:"user_id"`
	CreatedAt         time.Time `json:"created_at"`
}

// FileUpload records an uploaded file and its public URL.
type FileUpload struct {
	ID          uuid.UUID `json:"id"`
	UserID      uuid.UUID `json:"user_id"`
	ChatID      string    `json:"chat_id"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"content_type"`
	SizeBytes   int64     `json:"size_bytes"`
	StoragePath string    `json:"storage_path"`
	URL         string    `json:"url"`
	CreatedAt   time.Time `json:"created_at"`
}
