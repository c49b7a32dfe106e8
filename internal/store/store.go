// Package store is the persistence gateway. It wraps a Querier with a
// read-through, tag-invalidated cache and enforces ownership rules on
// mutations. All reads go through the cache; every write invalidates
// the tags covering what it changed.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/quillhq/quill/internal/cache"
	"github.com/quillhq/quill/internal/log"
)

// Store coordinates queries, caching, and invalidation.
type Store struct {
	q      Querier
	cache  cache.Cache
	logger log.Logger

	// now and sleep are replaceable for version-retry tests.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a Store over the given querier and cache.
func New(q Querier, c cache.Cache, logger log.Logger) *Store {
	return &Store{
		q:      q,
		cache:  c,
		logger: logger,
		now:    time.Now,
		sleep:  sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Cache tags. Reads register under the tags that cover them; writes
// invalidate the same tags.
func tagChat(id string) string           { return "chat_" + id }
func tagUserChats(uid uuid.UUID) string  { return "user_" + uid.String() + "_chats" }
func tagChatMessages(id string) string   { return "chat_" + id + "_messages" }
func tagChatVotes(id string) string      { return "chat_" + id + "_votes" }
func tagDocument(id string) string       { return "document_" + id }
func tagDocVersions(id string) string    { return "document_" + id + "_versions" }
func tagDocSuggestions(id string) string { return "document_" + id + "_suggestions" }
func tagUserEmail(email string) string   { return "user_" + email }

const (
	tagAllChats     = "chats"
	tagAllDocuments = "documents"
)

// cachedJSON reads a value through the cache, JSON-serializing on the
// store side so both cache backends deal only in bytes.
func cachedJSON[T any](ctx context.Context, c cache.Cache, key string, ttl time.Duration, tags []string, load func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	data, err := c.GetOrLoad(ctx, key, ttl, tags, func(ctx context.Context) ([]byte, error) {
		v, err := load(ctx)
		if err != nil {
			return nil, err
		}
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encoding %s for cache: %w", key, err)
		}
		return b, nil
	})
	if err != nil {
		return zero, err
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return zero, fmt.Errorf("decoding cached %s: %w", key, err)
	}
	return v, nil
}

// invalidate drops tags, logging rather than failing: the write already
// happened, and entity TTLs bound how long stale reads can survive.
func (s *Store) invalidate(ctx context.Context, tags ...string) {
	if err := s.cache.Invalidate(ctx, tags...); err != nil {
		s.logger.Warn("cache invalidation failed", "tags", tags, "error", err)
	}
}
