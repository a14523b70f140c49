package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func newLocal(t *testing.T) *Local {
	t.Helper()

	l, err := NewLocal(t.TempDir())
	require.NoError(t, err)
	return l
}

func TestLocal_RoundTrip(t *testing.T) {
	t.Parallel()

	l := newLocal(t)
	ctx := context.Background()

	stored, err := l.Put(ctx, "user-a", "report.txt", strings.NewReader("hello world"), 11, "text/plain")
	require.NoError(t, err)
	require.Equal(t, "report.txt", stored.Filename)
	require.EqualValues(t, 11, stored.Size)

	files, err := l.List(ctx, "user-a")
	require.NoError(t, err)
	require.Len(t, files, 1)
	require.Equal(t, "report.txt", files[0].Filename)
	require.EqualValues(t, 11, files[0].Size)

	require.NoError(t, l.Delete(ctx, "user-a", "report.txt"))

	files, err = l.List(ctx, "user-a")
	require.NoError(t, err)
	require.Empty(t, files)
}

func TestLocal_ListMissingNamespace(t *testing.T) {
	t.Parallel()

	l := newLocal(t)

	files, err := l.List(context.Background(), "nobody")
	require.NoError(t, err)
	require.Empty(t, files)
}

func TestLocal_OverwriteLastWriteWins(t *testing.T) {
	t.Parallel()

	l := newLocal(t)
	ctx := context.Background()

	_, err := l.Put(ctx, "u", "notes.txt", strings.NewReader("first"), 5, "text/plain")
	require.NoError(t, err)

	stored, err := l.Put(ctx, "u", "notes.txt", strings.NewReader("second version"), 14, "text/plain")
	require.NoError(t, err)
	require.EqualValues(t, 14, stored.Size)

	files, err := l.List(ctx, "u")
	require.NoError(t, err)
	require.Len(t, files, 1)
	require.EqualValues(t, 14, files[0].Size)
}

func TestLocal_NamespaceIsolation(t *testing.T) {
	t.Parallel()

	l := newLocal(t)
	ctx := context.Background()

	_, err := l.Put(ctx, "owner", "secret.txt", strings.NewReader("data"), 4, "text/plain")
	require.NoError(t, err)

	// Someone else deleting the same name hits their own empty namespace
	err = l.Delete(ctx, "intruder", "secret.txt")
	require.ErrorIs(t, err, ErrNotFound)

	files, err := l.List(ctx, "owner")
	require.NoError(t, err)
	require.Len(t, files, 1)
}

func TestLocal_DeleteMissing(t *testing.T) {
	t.Parallel()

	l := newLocal(t)

	err := l.Delete(context.Background(), "u", "never-uploaded.txt")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestLocal_TraversalRejected(t *testing.T) {
	t.Parallel()

	l := newLocal(t)
	ctx := context.Background()

	for _, name := range []string{"../escape.txt", "..", "a/../../b"} {
		_, err := l.Put(ctx, "u", name, strings.NewReader("x"), 1, "text/plain")
		require.ErrorIs(t, err, ErrUnsafeName, "name %q", name)

		err = l.Delete(ctx, "u", name)
		require.ErrorIs(t, err, ErrUnsafeName, "name %q", name)
	}

	// Nothing escaped into the base dir
	entries, err := os.ReadDir(filepath.Dir(l.namespace("u")))
	require.NoError(t, err)
	for _, e := range entries {
		require.NotEqual(t, "escape.txt", e.Name())
	}
}

func TestLocal_ListSkipsDirectories(t *testing.T) {
	t.Parallel()

	l := newLocal(t)
	ctx := context.Background()

	_, err := l.Put(ctx, "u", "file.txt", strings.NewReader("x"), 1, "text/plain")
	require.NoError(t, err)

	require.NoError(t, os.MkdirAll(filepath.Join(l.namespace("u"), "subdir"), 0o755))

	files, err := l.List(ctx, "u")
	require.NoError(t, err)
	require.Len(t, files, 1)
	require.Equal(t, "file.txt", files[0].Filename)
}
