package filesystem_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wit-vcs/wit/plumbing"
	"github.com/wit-vcs/wit/plumbing/object"
	"github.com/wit-vcs/wit/storage/filesystem"
)

func TestPutGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := filesystem.NewStorage(t.TempDir(), plumbing.SHA1)

	blob := object.NewBlob(plumbing.SHA1, []byte("hello\n"))
	hash, err := s.Put(ctx, blob)
	require.NoError(t, err)

	got, err := s.Get(ctx, hash)
	require.NoError(t, err)
	require.Equal(t, plumbing.BlobObject, got.Type())

	rc, err := got.Reader()
	require.NoError(t, err)
	defer rc.Close()
}

func TestPutIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := filesystem.NewStorage(t.TempDir(), plumbing.SHA1)

	blob1 := object.NewBlob(plumbing.SHA1, []byte("hello\n"))
	h1, err := s.Put(ctx, blob1)
	require.NoError(t, err)

	blob2 := object.NewBlob(plumbing.SHA1, []byte("hello\n"))
	h2, err := s.Put(ctx, blob2)
	require.NoError(t, err)
	require.True(t, h1.Equal(h2))
}

func TestGetMissingIsNotFound(t *testing.T) {
	ctx := context.Background()
	s := filesystem.NewStorage(t.TempDir(), plumbing.SHA1)

	_, err := s.Get(ctx, plumbing.MustHash("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"))
	require.ErrorIs(t, err, plumbing.ErrObjectNotFound)
}

func TestExistsAndDelete(t *testing.T) {
	ctx := context.Background()
	s := filesystem.NewStorage(t.TempDir(), plumbing.SHA1)

	blob := object.NewBlob(plumbing.SHA1, []byte("hello\n"))
	hash, err := s.Put(ctx, blob)
	require.NoError(t, err)

	ok, err := s.Exists(ctx, hash)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, s.Delete(ctx, hash))

	ok, err = s.Exists(ctx, hash)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestListHashes(t *testing.T) {
	ctx := context.Background()
	s := filesystem.NewStorage(t.TempDir(), plumbing.SHA1)

	h1, err := s.Put(ctx, object.NewBlob(plumbing.SHA1, []byte("a")))
	require.NoError(t, err)
	h2, err := s.Put(ctx, object.NewBlob(plumbing.SHA1, []byte("b")))
	require.NoError(t, err)

	iter, err := s.ListHashes(ctx)
	require.NoError(t, err)
	defer iter.Close()

	var got []plumbing.Hash
	for {
		h, ok := iter.Next()
		if !ok {
			break
		}
		got = append(got, h)
	}
	require.Len(t, got, 2)
	require.Contains(t, got, h1)
	require.Contains(t, got, h2)
}
