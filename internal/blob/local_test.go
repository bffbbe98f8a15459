package blob

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recaudo/pkg/platform/sentinel"
)

func TestLocalRoundTrip(t *testing.T) {
	store, err := NewLocal(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	content := "hello blob"
	err = store.Put(ctx, "actas/a1/file.pdf", strings.NewReader(content), int64(len(content)), "application/pdf")
	require.NoError(t, err)

	rc, err := store.Get(ctx, "actas/a1/file.pdf")
	require.NoError(t, err)
	defer rc.Close()

	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, content, string(got))
}

func TestLocalGetMissing(t *testing.T) {
	store, err := NewLocal(t.TempDir())
	require.NoError(t, err)

	_, err = store.Get(context.Background(), "actas/a1/nope.pdf")
	assert.True(t, errors.Is(err, sentinel.ErrNotFound))
}

func TestLocalDelete(t *testing.T) {
	store, err := NewLocal(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "x/y.txt", strings.NewReader("x"), 1, "text/plain"))
	require.NoError(t, store.Delete(ctx, "x/y.txt"))

	_, err = store.Get(ctx, "x/y.txt")
	assert.True(t, errors.Is(err, sentinel.ErrNotFound))

	err = store.Delete(ctx, "x/y.txt")
	assert.True(t, errors.Is(err, sentinel.ErrNotFound))
}

func TestLocalRejectsTraversal(t *testing.T) {
	store, err := NewLocal(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	for _, path := range []string{
		"../outside.txt",
		"a/../../outside.txt",
		"..",
		"/etc/passwd",
		"",
	} {
		err := store.Put(ctx, path, strings.NewReader("x"), 1, "text/plain")
		assert.Error(t, err, "path %q", path)
	}

	// Up-references are rejected on reads too.
	_, err = store.Get(ctx, "../outside.txt")
	assert.Error(t, err)
}

func TestLocalRejectsSizeMismatch(t *testing.T) {
	store, err := NewLocal(t.TempDir())
	require.NoError(t, err)

	err = store.Put(context.Background(), "a/b.txt", strings.NewReader("short"), 100, "text/plain")
	assert.Error(t, err)

	_, err = store.Get(context.Background(), "a/b.txt")
	assert.True(t, errors.Is(err, sentinel.ErrNotFound))
}
