package store

import "errors"

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrChatExists indicates a chat with the given ID already exists.
	// During concurrent first-message handling this is benign: the
	// other request created the chat first.
	ErrChatExists = errors.New("chat ID already exists")

	// ErrMessageNotFound indicates a vote referenced a message that is
	// not part of the chat.
	ErrMessageNotFound = errors.New("message not found in chat")

	// ErrMessageIDTaken indicates a message insert collided with an
	// existing message ID. Unlike chat creation races this is fatal:
	// message IDs come from the client or are freshly generated, so a
	// collision means a duplicate submission.
	ErrMessageIDTaken = errors.New("message ID already exists")

	// ErrUnauthorized indicates the acting user does not own the record.
	ErrUnauthorized = errors.New("not authorized for this record")

	// ErrVersionConflict indicates a document version insert collided
	// with a concurrent writer and retries were exhausted.
	ErrVersionConflict = errors.New("document version conflict")

	// ErrUniqueViolation maps PostgreSQL error 23505.
	ErrUniqueViolation = errors.New("unique constraint violation")
)
