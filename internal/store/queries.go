package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// pgUniqueViolation is the PostgreSQL error code for unique constraint
// violations.
const pgUniqueViolation = "23505"

// Queries implements Querier over a pgx connection pool.
type Queries struct {
	pool *pgxpool.Pool
}

// NewQueries creates a Querier backed by the given pool.
func NewQueries(pool *pgxpool.Pool) *Queries {
	return &Queries{pool: pool}
}

// mapError translates pgx-level errors into the package sentinels.
func mapError(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return fmt.Errorf("%w: %s", ErrUniqueViolation, pgErr.ConstraintName)
	}
	return err
}

func (q *Queries) UserByEmail(ctx context.Context, email string) (User, error) {
	var u User
	err := q.pool.QueryRow(ctx,
		`SELECT id, email, COALESCE(password_hash, ''), created_at
		 FROM users WHERE email = $1`, email).
		Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		return User{}, fmt.Errorf("querying user by email: %w", mapError(err))
	}
	return u, nil
}

func (q *Queries) InsertUser(ctx context.Context, email, passwordHash string) (User, error) {
	var u User
	err := q.pool.QueryRow(ctx,
		`INSERT INTO users (email, password_hash) VALUES ($1, $2)
		 RETURNING id, email, COALESCE(password_hash, ''), created_at`,
		email, passwordHash).
		Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		return User{}, fmt.Errorf("inserting user: %w", mapError(err))
	}
	return u, nil
}

func (q *Queries) ChatByID(ctx context.Context, id string) (Chat, error) {
	var c Chat
	err := q.pool.QueryRow(ctx,
		`SELECT id, user_id, title, created_at FROM chats WHERE id = $1`, id).
		Scan(&c.ID, &c.UserID, &c.Title, &c.CreatedAt)
	if err != nil {
		return Chat{}, fmt.Errorf("querying chat: %w", mapError(err))
	}
	return c, nil
}

func (q *Queries) InsertChat(ctx context.Context, chat Chat) error {
	_, err := q.pool.Exec(ctx,
		`INSERT INTO chats (id, user_id, title, created_at) VALUES ($1, $2, $3, $4)`,
		chat.ID, chat.UserID, chat.Title, chat.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting chat: %w", mapError(err))
	}
	return nil
}

func (q *Queries) DeleteChat(ctx context.Context, id string) error {
	tag, err := q.pool.Exec(ctx, `DELETE FROM chats WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting chat: %w", mapError(err))
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (q *Queries) ChatsByUser(ctx context.Context, userID uuid.UUID) ([]Chat, error) {
	rows, err := q.pool.Query(ctx,
		`SELECT id, user_id, title, created_at
		 FROM chats WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("querying chats: %w", mapError(err))
	}
	chats, err := pgx.CollectRows(rows, pgx.RowToStructByPos[Chat])
	if err != nil {
		return nil, fmt.Errorf("scanning chats: %w", err)
	}
	return chats, nil
}

func (q *Queries) MessageByID(ctx context.Context, id string) (Message, error) {
	var m Message
	err := q.pool.QueryRow(ctx,
		`SELECT id, chat_id, role, content, created_at FROM messages WHERE id = $1`, id).
		Scan(&m.ID, &m.ChatID, &m.Role, &m.Content, &m.CreatedAt)
	if err != nil {
		return Message{}, fmt.Errorf("querying message: %w", mapError(err))
	}
	return m, nil
}

func (q *Queries) MessagesByChat(ctx context.Context, chatID string) ([]Message, error) {
	rows, err := q.pool.Query(ctx,
		`SELECT id, chat_id, role, content, created_at
		 FROM messages WHERE chat_id = $1 ORDER BY created_at ASC`, chatID)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", mapError(err))
	}
	msgs, err := pgx.CollectRows(rows, pgx.RowToStructByPos[Message])
	if err != nil {
		return nil, fmt.Errorf("scanning messages: %w", err)
	}
	return msgs, nil
}

func (q *Queries) InsertMessages(ctx context.Context, msgs []Message) error {
	if len(msgs) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, m := range msgs {
		batch.Queue(
			`INSERT INTO messages (id, chat_id, role, content, created_at)
			 VALUES ($1, $2, $3, $4, $5)`,
			m.ID, m.ChatID, m.Role, m.Content, m.CreatedAt)
	}
	results := q.pool.SendBatch(ctx, batch)
	defer func() { _ = results.Close() }()
	for range msgs {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("inserting messages: %w", mapError(err))
		}
	}
	return nil
}

func (q *Queries) UpsertVote(ctx context.Context, vote Vote) error {
	_, err := q.pool.Exec(ctx,
		`INSERT INTO votes (chat_id, message_id, is_upvoted) VALUES ($1, $2, $3)
		 ON CONFLICT (chat_id, message_id) DO UPDATE SET is_upvoted = EXCLUDED.is_upvoted`,
		vote.ChatID, vote.MessageID, vote.IsUpvoted)
	if err != nil {
		return fmt.Errorf("upserting vote: %w", mapError(err))
	}
	return nil
}

func (q *Queries) VotesByChat(ctx context.Context, chatID string) ([]Vote, error) {
	rows, err := q.pool.Query(ctx,
		`SELECT chat_id, message_id, is_upvoted FROM votes WHERE chat_id = $1`, chatID)
	if err != nil {
		return nil, fmt.Errorf("querying votes: %w", mapError(err))
	}
	votes, err := pgx.CollectRows(rows, pgx.RowToStructByPos[Vote])
	if err != nil {
		return nil, fmt.Errorf("scanning votes: %w", err)
	}
	return votes, nil
}

func (q *Queries) InsertDocument(ctx context.Context, doc Document) error {
	_, err := q.pool.Exec(ctx,
		`INSERT INTO documents (id, created_at, title, content, user_id)
		 VALUES ($1, $2, $3, $4, $5)`,
		doc.ID, doc.CreatedAt, doc.Title, doc.Content, doc.UserID)
	if err != nil {
		return fmt.Errorf("inserting document: %w", mapError(err))
	}
	return nil
}

func (q *Queries) LatestDocument(ctx context.Context, id string) (Document, error) {
	var d Document
	err := q.pool.QueryRow(ctx,
		`SELECT id, created_at, title, COALESCE(content, ''), user_id
		 FROM documents WHERE id = $1 ORDER BY created_at DESC LIMIT 1`, id).
		Scan(&d.ID, &d.CreatedAt, &d.Title, &d.Content, &d.UserID)
	if err != nil {
		return Document{}, fmt.Errorf("querying latest document: %w", mapError(err))
	}
	return d, nil
}

func (q *Queries) DocumentVersions(ctx context.Context, id string) ([]Document, error) {
	rows, err := q.pool.Query(ctx,
		`SELECT id, created_at, title, COALESCE(content, ''), user_id
		 FROM documents WHERE id = $1 ORDER BY created_at ASC`, id)
	if err != nil {
		return nil, fmt.Errorf("querying document versions: %w", mapError(err))
	}
	docs, err := pgx.CollectRows(rows, pgx.RowToStructByPos[Document])
	if err != nil {
		return nil, fmt.Errorf("scanning document versions: %w", err)
	}
	return docs, nil
}

func (q *Queries) DeleteDocumentVersionsAfter(ctx context.Context, id string, after time.Time) error {
	// Suggestions cascade via the composite foreign key.
	_, err := q.pool.Exec(ctx,
		`DELETE FROM documents WHERE id = $1 AND created_at >= $2`, id, after)
	if err != nil {
		return fmt.Errorf("deleting document versions: %w", mapError(err))
	}
	return nil
}

func (q *Queries) InsertSuggestions(ctx context.Context, suggestions []Suggestion) error {
	if len(suggestions) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, s := range suggestions {
		batch.Queue(
			`INSERT INTO suggestions
			   (id, document_id, document_created_at, original_text,
			    suggested_text, description, is_resolved, user_id, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			s.ID, s.DocumentID, s.DocumentCreatedAt, s.OriginalText,
			s.SuggestedText, s.Description, s.IsResolved, s.UserID, s.CreatedAt)
	}
	results := q.pool.SendBatch(ctx, batch)
	defer func() { _ = results.Close() }()
	for range suggestions {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("inserting suggestions: %w", mapError(err))
		}
	}
	return nil
}

func (q *Queries) SuggestionsByDocument(ctx context.Context, documentID string) ([]Suggestion, error) {
	rows, err := q.pool.Query(ctx,
		`SELECT id, document_id, document_created_at, original_text,
		        suggested_text, COALESCE(description, ''), is_resolved, user_id, created_at
		 FROM suggestions WHERE document_id = $1 ORDER BY created_at ASC`, documentID)
	if err != nil {
		return nil, fmt.Errorf("querying suggestions: %w", mapError(err))
	}
	suggestions, err := pgx.CollectRows(rows, pgx.RowToStructByPos[Suggestion])
	if err != nil {
		return nil, fmt.Errorf("scanning suggestions: %w", err)
	}
	return suggestions, nil
}

func (q *Queries) FileUploadByPath(ctx context.Context, storagePath string) (FileUpload, error) {
	var f FileUpload
	err := q.pool.QueryRow(ctx,
		`SELECT id, user_id, COALESCE(chat_id, ''), filename, content_type,
		        size_bytes, storage_path, url, created_at
		 FROM file_uploads WHERE storage_path = $1`, storagePath).
		Scan(&f.ID, &f.UserID, &f.ChatID, &f.Filename, &f.ContentType,
			&f.SizeBytes, &f.StoragePath, &f.URL, &f.CreatedAt)
	if err != nil {
		return FileUpload{}, fmt.Errorf("querying file upload: %w", mapError(err))
	}
	return f, nil
}

func (q *Queries) InsertFileUpload(ctx context.Context, upload FileUpload) (FileUpload, error) {
	err := q.pool.QueryRow(ctx,
		`INSERT INTO file_uploads
		   (id, user_id, chat_id, filename, content_type, size_bytes, storage_path, url)
		 VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7, $8)
		 RETURNING created_at`,
		upload.ID, upload.UserID, upload.ChatID, upload.Filename,
		upload.ContentType, upload.SizeBytes, upload.StoragePath, upload.URL).
		Scan(&upload.CreatedAt)
	if err != nil {
		return FileUpload{}, fmt.Errorf("inserting file upload: %w", mapError(err))
	}
	return upload, nil
}
