package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func loadValue(v string) LoadFunc {
	return func(context.Context) ([]byte, error) {
		return []byte(v), nil
	}
}

func TestMemoryGetOrLoad(t *testing.T) {
	ctx := context.Background()

	t.Run("miss calls loader and caches", func(t *testing.T) {
		m := NewMemory()
		calls := 0
		load := func(context.Context) ([]byte, error) {
			calls++
			return []byte("hello"), nil
		}

		v, err := m.GetOrLoad(ctx, "k", time.Minute, []string{"t"}, load)
		require.NoError(t, err)
		assert.Equal(t, []byte("hello"), v)

		v, err = m.GetOrLoad(ctx, "k", time.Minute, []string{"t"}, load)
		require.NoError(t, err)
		assert.Equal(t, []byte("hello"), v)
		assert.Equal(t, 1, calls, "second read should hit the cache")
	})

	t.Run("loader error is not cached", func(t *testing.T) {
		m := NewMemory()
		boom := errors.New("boom")

		_, err := m.GetOrLoad(ctx, "k", time.Minute, nil, func(context.Context) ([]byte, error) {
			return nil, boom
		})
		assert.ErrorIs(t, err, boom)

		v, err := m.GetOrLoad(ctx, "k", time.Minute, nil, loadValue("recovered"))
		require.NoError(t, err)
		assert.Equal(t, []byte("recovered"), v)
	})

	t.Run("expired entry reloads", func(t *testing.T) {
		m := NewMemory()
		now := time.Now()
		m.now = func() time.Time { return now }

		_, err := m.GetOrLoad(ctx, "k", time.Second, []string{"t"}, loadValue("old"))
		require.NoError(t, err)

		now = now.Add(2 * time.Second)
		v, err := m.GetOrLoad(ctx, "k", time.Second, []string{"t"}, loadValue("new"))
		require.NoError(t, err)
		assert.Equal(t, []byte("new"), v)
	})
}

func TestMemoryInvalidate(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	_, err := m.GetOrLoad(ctx, "a", time.Minute, []string{"shared", "only-a"}, loadValue("va"))
	require.NoError(t, err)
	_, err = m.GetOrLoad(ctx, "b", time.Minute, []string{"shared"}, loadValue("vb"))
	require.NoError(t, err)
	_, err = m.GetOrLoad(ctx, "c", time.Minute, []string{"other"}, loadValue("vc"))
	require.NoError(t, err)

	require.NoError(t, m.Invalidate(ctx, "shared"))

	// a and b reload, c does not.
	v, err := m.GetOrLoad(ctx, "a", time.Minute, nil, loadValue("va2"))
	require.NoError(t, err)
	assert.Equal(t, []byte("va2"), v)

	v, err = m.GetOrLoad(ctx, "b", time.Minute, nil, loadValue("vb2"))
	require.NoError(t, err)
	assert.Equal(t, []byte("vb2"), v)

	v, err = m.GetOrLoad(ctx, "c", time.Minute, nil, loadValue("never"))
	require.NoError(t, err)
	assert.Equal(t, []byte("vc"), v)
}

func TestMemoryInvalidateUnknownTag(t *testing.T) {
	m := NewMemory()
	assert.NoError(t, m.Invalidate(context.Background(), "nothing-here"))
}

func TestMemoryConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = m.GetOrLoad(ctx, "k", time.Minute, []string{"t"}, loadValue("v"))
		}()
		go func() {
			defer wg.Done()
			_ = m.Invalidate(ctx, "t")
		}()
	}
	wg.Wait()
}
