package memory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wit-vcs/wit/plumbing"
	"github.com/wit-vcs/wit/plumbing/object"
	"github.com/wit-vcs/wit/storage/memory"
)

func TestPutGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := memory.NewStorage(plumbing.SHA1)

	blob := object.NewBlob(plumbing.SHA1, []byte("hello\n"))
	hash, err := s.Put(ctx, blob)
	require.NoError(t, err)

	got, err := s.Get(ctx, hash)
	require.NoError(t, err)
	require.Equal(t, plumbing.BlobObject, got.Type())
}

func TestPutIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := memory.NewStorage(plumbing.SHA1)

	h1, err := s.Put(ctx, object.NewBlob(plumbing.SHA1, []byte("hello\n")))
	require.NoError(t, err)
	h2, err := s.Put(ctx, object.NewBlob(plumbing.SHA1, []byte("hello\n")))
	require.NoError(t, err)
	require.True(t, h1.Equal(h2))

	iter, err := s.ListHashes(ctx)
	require.NoError(t, err)
	defer iter.Close()
	var count int
	for {
		if _, ok := iter.Next(); !ok {
			break
		}
		count++
	}
	require.Equal(t, 1, count, "re-putting identical content must not duplicate the stored object")
}

func TestGetMissingIsNotFound(t *testing.T) {
	ctx := context.Background()
	s := memory.NewStorage(plumbing.SHA1)

	_, err := s.Get(ctx, plumbing.MustHash("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"))
	require.ErrorIs(t, err, plumbing.ErrObjectNotFound)
}

func TestGetRawReturnsADefensiveCopy(t *testing.T) {
	ctx := context.Background()
	s := memory.NewStorage(plumbing.SHA1)

	hash, err := s.Put(ctx, object.NewBlob(plumbing.SHA1, []byte("hello\n")))
	require.NoError(t, err)

	_, payload, err := s.GetRaw(ctx, hash)
	require.NoError(t, err)
	payload[0] = 'X'

	_, payload2, err := s.GetRaw(ctx, hash)
	require.NoError(t, err)
	require.Equal(t, byte('h'), payload2[0], "mutating a returned payload must not corrupt the stored copy")
}

func TestExistsAndDelete(t *testing.T) {
	ctx := context.Background()
	s := memory.NewStorage(plumbing.SHA1)

	hash, err := s.Put(ctx, object.NewBlob(plumbing.SHA1, []byte("hello\n")))
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
	s := memory.NewStorage(plumbing.SHA1)

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
