package fsck_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wit-vcs/wit/fsck"
	"github.com/wit-vcs/wit/plumbing"
	"github.com/wit-vcs/wit/plumbing/object"
	"github.com/wit-vcs/wit/storage/memory"
)

func putBlob(t *testing.T, store *memory.Storage, content string) plumbing.Hash {
	t.Helper()
	h, err := store.Put(context.Background(), object.NewBlob(store.HashAlgo(), []byte(content)))
	require.NoError(t, err)
	return h
}

func TestScanCleanStoreReportsNoIssues(t *testing.T) {
	store := memory.NewStorage(plumbing.SHA1)
	blob := putBlob(t, store, "hello\n")
	tree, err := object.NewTree([]object.TreeEntry{{Name: "a.txt", Mode: plumbing.ModeRegular, Hash: blob}})
	require.NoError(t, err)
	treeHash, err := store.Put(context.Background(), tree.Encode(store.HashAlgo()))
	require.NoError(t, err)

	c := &object.Commit{TreeHash: treeHash, Message: "m", Author: object.Signature{Name: "a", Email: "a@example.com"}}
	_, err = store.Put(context.Background(), c.Encode(store.HashAlgo()))
	require.NoError(t, err)

	issues, err := fsck.Scan(context.Background(), store, fsck.Options{Full: true})
	require.NoError(t, err)
	require.Empty(t, issues)
}

func TestScanFlagsMissingTreeReference(t *testing.T) {
	store := memory.NewStorage(plumbing.SHA1)
	missingTree := plumbing.HashObject(plumbing.SHA1, []byte("tree 0\x00"))

	c := &object.Commit{TreeHash: missingTree, Message: "m", Author: object.Signature{Name: "a", Email: "a@example.com"}}
	_, err := store.Put(context.Background(), c.Encode(store.HashAlgo()))
	require.NoError(t, err)

	issues, err := fsck.Scan(context.Background(), store, fsck.Options{})
	require.NoError(t, err)
	require.Len(t, issues, 1)
	require.Equal(t, fsck.Missing, issues[0].Kind)
	require.Equal(t, missingTree, issues[0].Hash)
}

func TestScanFlagsMissingTreeEntry(t *testing.T) {
	store := memory.NewStorage(plumbing.SHA1)
	missingBlob := plumbing.HashObject(plumbing.SHA1, []byte("blob 0\x00"))
	tree, err := object.NewTree([]object.TreeEntry{{Name: "a.txt", Mode: plumbing.ModeRegular, Hash: missingBlob}})
	require.NoError(t, err)
	_, err = store.Put(context.Background(), tree.Encode(store.HashAlgo()))
	require.NoError(t, err)

	issues, err := fsck.Scan(context.Background(), store, fsck.Options{})
	require.NoError(t, err)
	require.Len(t, issues, 1)
	require.Equal(t, fsck.Missing, issues[0].Kind)
}

func TestFullScanRecomputesHashesWithoutFalsePositives(t *testing.T) {
	// memory.Storage keys every object by its own computed hash, so there
	// is no way to store a mismatched object through its public API; this
	// only exercises that a full scan's recomputation agrees with content
	// that was written correctly (hash-mismatch detection itself is only
	// reachable against a tampered on-disk store, e.g. storage/filesystem).
	store := memory.NewStorage(plumbing.SHA1)
	putBlob(t, store, "hello\n")

	issues, err := fsck.Scan(context.Background(), store, fsck.Options{Full: true})
	require.NoError(t, err)
	require.Empty(t, issues)
}
