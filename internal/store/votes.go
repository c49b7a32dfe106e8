package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/quillhq/quill/internal/cache"
)

// VoteMessage records an up or down vote on a message. Re-voting the
// same message overwrites the previous vote. The message must exist and
// belong to the chat.
func (s *Store) VoteMessage(ctx context.Context, vote Vote) error {
	msg, err := s.q.MessageByID(ctx, vote.MessageID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrMessageNotFound, vote.MessageID)
		}
		return err
	}
	if msg.ChatID != vote.ChatID {
		return fmt.Errorf("%w: %s", ErrMessageNotFound, vote.MessageID)
	}
	if err := s.q.UpsertVote(ctx, vote); err != nil {
		return err
	}
	s.invalidate(ctx, tagChatVotes(vote.ChatID))
	return nil
}

// VotesByChat returns all votes recorded against a chat's messages.
func (s *Store) VotesByChat(ctx context.Context, chatID string) ([]Vote, error) {
	return cachedJSON(ctx, s.cache, "votes:chat:"+chatID, cache.EntityTTL,
		[]string{tagChatVotes(chatID)},
		func(ctx context.Context) ([]Vote, error) {
			return s.q.VotesByChat(ctx, chatID)
		})
}
