package storage

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalFileStorePutGetRoundTrip(t *testing.T) {
	store, err := NewLocalFileStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	content := "hello design"
	require.NoError(t, store.Put(ctx, "cache/previews/telegram/d1/a.jpg", strings.NewReader(content), int64(len(content))))

	r, err := store.Get(ctx, "cache/previews/telegram/d1/a.jpg")
	require.NoError(t, err)
	defer r.Close()
	body, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, content, string(body))
}

func TestLocalFileStoreExistsAndDelete(t *testing.T) {
	store, err := NewLocalFileStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	ok, err := store.Exists(ctx, "missing.txt")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Put(ctx, "present.txt", strings.NewReader("x"), 1))
	ok, err = store.Exists(ctx, "present.txt")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, store.Delete(ctx, "present.txt"))
	ok, err = store.Exists(ctx, "present.txt")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLocalFileStoreURLIsEmpty(t *testing.T) {
	store, err := NewLocalFileStore(t.TempDir())
	require.NoError(t, err)
	u, err := store.URL(context.Background(), "anything")
	require.NoError(t, err)
	assert.Empty(t, u)
}

func TestLocalFileStoreDeleteMissingIsNotAnError(t *testing.T) {
	store, err := NewLocalFileStore(t.TempDir())
	require.NoError(t, err)
	assert.NoError(t, store.Delete(context.Background(), "does/not/exist.txt"))
}
