package store

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Querier is the persistence interface Store runs on. The production
// implementation is Queries over a pgx pool; tests substitute an
// in-memory fake.
//
// Implementations return ErrNotFound for missing single records and
// ErrUniqueViolation for unique constraint conflicts.
type Querier interface {
	// Users
	UserByEmail(ctx context.Context, email string) (User, error)
	InsertUser(ctx context.Context, email, passwordHash string) (User, error)

	// Chats
	ChatByID(ctx context.Context, id string) (Chat, error)
	InsertChat(ctx context.Context, chat Chat) error
	DeleteChat(ctx context.Context, id string) error
	ChatsByUser(ctx context.Context, userID uuid.UUID) ([]Chat, error)

	// Messages
	MessageByID(ctx context.Context, id string) (Message, error)
	MessagesByChat(ctx context.Context, chatID string) ([]Message, error)
	InsertMessages(ctx context.Context, msgs []Message) error

	// Votes
	UpsertVote(ctx context.Context, vote Vote) error
	VotesByChat(ctx context.Context, chatID string) ([]Vote, error)

	// Documents
	InsertDocument(ctx context.Context, doc Document) error
	LatestDocument(ctx context.Context, id string) (Document, error)
	DocumentVersions(ctx context.Context, id string) ([]Document, error)
	DeleteDocumentVersionsAfter(ctx context.Context, id string, after time.Time) error

	// Suggestions
	InsertSuggestions(ctx context.Context, suggestions []Suggestion) error
	SuggestionsByDocument(ctx context.Context, documentID string) ([]Suggestion, error)

	// File uploads
	FileUploadByPath(ctx context.Context, storagePath string) (FileUpload, error)
	InsertFileUpload(ctx context.Context, upload FileUpload) (FileUpload, error)
}
