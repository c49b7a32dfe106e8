package store

import (
	"context"

	"github.com/quillhq/quill/internal/cache"
)

// UserByEmail looks up a user by email. Cached for an hour: accounts
// change rarely and auth hits this on most requests.
func (s *Store) UserByEmail(ctx context.Context, email string) (User, error) {
	return cachedJSON(ctx, s.cache, "user:email:"+email, cache.UserByEmailTTL,
		[]string{tagUserEmail(email)},
		func(ctx context.Context) (User, error) {
			return s.q.UserByEmail(ctx, email)
		})
}

// CreateUser registers a new account.
func (s *Store) CreateUser(ctx context.Context, email, passwordHash string) (User, error) {
	u, err := s.q.InsertUser(ctx, email, passwordHash)
	if err != nil {
		return User{}, err
	}
	s.invalidate(ctx, tagUserEmail(email))
	return u, nil
}
