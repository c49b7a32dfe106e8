package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/quillhq/quill/internal/cache"
)

// ChatByID returns the chat with the given ID.
func (s *Store) ChatByID(ctx context.Context, id string) (Chat, error) {
	return cachedJSON(ctx, s.cache, "chat:"+id, cache.EntityTTL,
		[]string{tagChat(id), tagAllChats},
		func(ctx context.Context) (Chat, error) {
			return s.q.ChatByID(ctx, id)
		})
}

// SaveChat creates a chat. A duplicate ID returns ErrChatExists, which
// callers racing on first-message creation treat as success.
func (s *Store) SaveChat(ctx context.Context, chat Chat) error {
	if chat.CreatedAt.IsZero() {
		chat.CreatedAt = s.now()
	}
	if err := s.q.InsertChat(ctx, chat); err != nil {
		if errors.Is(err, ErrUniqueViolation) {
			return fmt.Errorf("%w: %s", ErrChatExists, chat.ID)
		}
		return err
	}
	s.invalidate(ctx, tagUserChats(chat.UserID), tagAllChats)
	return nil
}

// DeleteChat removes a chat and its messages and votes. Only the owner
// may delete.
func (s *Store) DeleteChat(ctx context.Context, id string, userID uuid.UUID) error {
	chat, err := s.q.ChatByID(ctx, id)
	if err != nil {
		return err
	}
	if chat.UserID != userID {
		return ErrUnauthorized
	}
	if err := s.q.DeleteChat(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx,
		tagChat(id), tagChatMessages(id), tagChatVotes(id),
		tagUserChats(userID), tagAllChats)
	return nil
}

// ChatsByUser returns the user's chats, newest first.
func (s *Store) ChatsByUser(ctx context.Context, userID uuid.UUID) ([]Chat, error) {
	return cachedJSON(ctx, s.cache, "chats:user:"+userID.String(), cache.EntityTTL,
		[]string{tagUserChats(userID), tagAllChats},
		func(ctx context.Context) ([]Chat, error) {
			return s.q.ChatsByUser(ctx, userID)
		})
}
