// Package storetest checks that a checkpoint.Store honors the Store
// contract.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonwraymond/modmemo/anyvalue"
	"github.com/jonwraymond/modmemo/cache"
	"github.com/jonwraymond/modmemo/checkpoint"
)

// Run exercises the store returned by open. open is called once per
// subtest and must return an empty store; Run closes it.
func Run(t *testing.T, open func(t *testing.T) checkpoint.Store) {
	t.Helper()

	t.Run("PutGet", func(t *testing.T) {
		s := open(t)
		defer s.Close()
		ctx := context.Background()

		require.NoError(t, s.Put(ctx, "a", []byte("first")))
		data, err := s.Get(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, []byte("first"), data)

		require.NoError(t, s.Put(ctx, "a", []byte("second")))
		data, err = s.Get(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, []byte("second"), data)
	})

	t.Run("NotFound", func(t *testing.T) {
		s := open(t)
		defer s.Close()
		ctx := context.Background()

		_, err := s.Get(ctx, "missing")
		assert.ErrorIs(t, err, checkpoint.ErrNotFound)
		assert.ErrorIs(t, s.Delete(ctx, "missing"), checkpoint.ErrNotFound)
	})

	t.Run("InvalidName", func(t *testing.T) {
		s := open(t)
		defer s.Close()
		ctx := context.Background()

		for _, name := range []string{"", "../escape", "a/b", ".hidden"} {
			assert.ErrorIs(t, s.Put(ctx, name, []byte("x")), checkpoint.ErrInvalidName, name)
			_, err := s.Get(ctx, name)
			assert.ErrorIs(t, err, checkpoint.ErrInvalidName, name)
		}
	})

	t.Run("ListSortedAndDelete", func(t *testing.T) {
		s := open(t)
		defer s.Close()
		ctx := context.Background()

		names, err := s.List(ctx)
		require.NoError(t, err)
		assert.Empty(t, names)

		for _, name := range []string{"c", "a", "b"} {
			require.NoError(t, s.Put(ctx, name, []byte(name)))
		}
		names, err = s.List(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b", "c"}, names)

		require.NoError(t, s.Delete(ctx, "b"))
		names, err = s.List(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "c"}, names)
	})

	t.Run("Ping", func(t *testing.T) {
		s := open(t)
		defer s.Close()
		assert.NoError(t, s.Ping(context.Background()))
	})

	t.Run("Concurrent", func(t *testing.T) {
		s := open(t)
		defer s.Close()
		ctx := context.Background()

		var wg sync.WaitGroup
		for i := range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				name := fmt.Sprintf("n%02d", i)
				assert.NoError(t, s.Put(ctx, name, []byte(name)))
			}()
		}
		wg.Wait()

		names, err := s.List(ctx)
		require.NoError(t, err)
		assert.Len(t, names, 8)
	})

	t.Run("SaveLoadLatest", func(t *testing.T) {
		s := open(t)
		defer s.Close()
		ctx := context.Background()

		c := cache.New(cache.DefaultPolicy())
		require.NoError(t, c.Insert(ctx, "k1", anyvalue.Wrap(25)))

		first, err := checkpoint.Save(ctx, s, c)
		require.NoError(t, err)
		require.NoError(t, c.Insert(ctx, "k2", anyvalue.Wrap("x")))
		second, err := checkpoint.Save(ctx, s, c)
		require.NoError(t, err)
		require.Less(t, first.ID, second.ID)

		latest, err := checkpoint.Latest(ctx, s)
		require.NoError(t, err)
		assert.Equal(t, second.ID, latest)

		restored, report, err := checkpoint.Load(ctx, s, latest)
		require.NoError(t, err)
		assert.Equal(t, 2, report.Restored)
		v, ok := restored.Lookup(ctx, "k1")
		require.True(t, ok)
		assert.Equal(t, 25, anyvalue.MustCast[int](v))

		n, err := checkpoint.Prune(ctx, s, 1)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		names, err := s.List(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{second.ID}, names)
	})
}
