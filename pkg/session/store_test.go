package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"careroute/pkg/models"
)

func TestMemoryStore_LRUOrder(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	base := time.Now()

	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, store.Put(ctx, New(id, "u", models.LanguageEnglish, base.Add(time.Duration(i)*time.Second))))
	}

	oldest, err := store.Oldest(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, oldest)

	a, err := store.Get(ctx, "a")
	require.NoError(t, err)
	a.UpdatedAt = base.Add(time.Minute)
	require.NoError(t, store.Put(ctx, a))

	oldest, err = store.Oldest(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c", "a"}, oldest)

	require.NoError(t, store.Delete(ctx, "b"))
	n, err := store.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = store.Get(ctx, "b")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Put(ctx, New("a", "u", models.LanguageEnglish, time.Now())))

	s, err := store.Get(ctx, "a")
	require.NoError(t, err)
	s.TurnCount = 42
	s.RecordTechniques("x")

	again, err := store.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 0, again.TurnCount)
	assert.Empty(t, again.TechniquesUsed)
}
