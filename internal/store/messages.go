package store

import (
	"context"
	"errors"
	"time"

	"github.com/quillhq/quill/internal/cache"
)

// MessagesByChat returns a chat's messages in chronological order.
func (s *Store) MessagesByChat(ctx context.Context, chatID string) ([]Message, error) {
	return cachedJSON(ctx, s.cache, "messages:chat:"+chatID, cache.EntityTTL,
		[]string{tagChatMessages(chatID)},
		func(ctx context.Context) ([]Message, error) {
			return s.q.MessagesByChat(ctx, chatID)
		})
}

// SaveMessages persists a batch of messages. Timestamps default to now,
// offset by position so chronological ordering matches batch order.
func (s *Store) SaveMessages(ctx context.Context, msgs []Message) error {
	if len(msgs) == 0 {
		return nil
	}
	base := s.now()
	chatTags := make(map[string]struct{})
	for i := range msgs {
		if msgs[i].CreatedAt.IsZero() {
			msgs[i].CreatedAt = base.Add(time.Duration(i) * time.Millisecond)
		}
		chatTags[tagChatMessages(msgs[i].ChatID)] = struct{}{}
	}
	if err := s.q.InsertMessages(ctx, msgs); err != nil {
		if errors.Is(err, ErrUniqueViolation) {
			return errors.Join(ErrMessageIDTaken, err)
		}
		return err
	}
	tags := make([]string, 0, len(chatTags))
	for tag := range chatTags {
		tags = append(tags, tag)
	}
	s.invalidate(ctx, tags...)
	return nil
}
