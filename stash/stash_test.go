package stash_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wit-vcs/wit/index"
	"github.com/wit-vcs/wit/plumbing"
	"github.com/wit-vcs/wit/plumbing/object"
	"github.com/wit-vcs/wit/stash"
	"github.com/wit-vcs/wit/storage/memory"
)

func setupRepo(t *testing.T) (repoRoot string, indexPath string, store *memory.Storage, ix *index.Index, headTree plumbing.Hash) {
	t.Helper()
	repoRoot = t.TempDir()
	store = memory.NewStorage(plumbing.SHA1)
	indexPath = filepath.Join(t.TempDir(), "index")
	ix = index.New(indexPath, store)

	require.NoError(t, os.WriteFile(filepath.Join(repoRoot, "a.txt"), []byte("base\n"), 0o644))
	require.NoError(t, ix.Add(context.Background(), repoRoot, "a.txt"))

	tree, err := object.NewTree([]object.TreeEntry{
		{Name: "a.txt", Mode: plumbing.ModeRegular, Hash: blobHash(t, store, "base\n")},
	})
	require.NoError(t, err)
	h, err := store.Put(context.Background(), tree.Encode(store.HashAlgo()))
	require.NoError(t, err)
	headTree = h
	return
}

func blobHash(t *testing.T, store *memory.Storage, content string) plumbing.Hash {
	t.Helper()
	h, err := store.Put(context.Background(), object.NewBlob(store.HashAlgo(), []byte(content)))
	require.NoError(t, err)
	return h
}

func TestSaveCapturesDirtyFilesAndResetsToHead(t *testing.T) {
	repoRoot, indexPath, store, ix, headTree := setupRepo(t)
	ctx := context.Background()

	// Dirty the working tree: modify the tracked file and add an untracked one.
	require.NoError(t, os.WriteFile(filepath.Join(repoRoot, "a.txt"), []byte("dirty\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(repoRoot, "new.txt"), []byte("new\n"), 0o644))

	s, err := stash.Open(filepath.Join(t.TempDir(), "stash"))
	require.NoError(t, err)

	entry, err := stash.Save(ctx, s, store, repoRoot, indexPath, ix, headTree, "wip")
	require.NoError(t, err)
	require.NotNil(t, entry)
	require.Equal(t, "wip", entry.Message)

	// Working tree should now be back at HEAD: a.txt restored, new.txt gone.
	got, err := os.ReadFile(filepath.Join(repoRoot, "a.txt"))
	require.NoError(t, err)
	require.Equal(t, "base\n", string(got))
	_, err = os.Stat(filepath.Join(repoRoot, "new.txt"))
	require.True(t, os.IsNotExist(err))

	list, err := s.List()
	require.NoError(t, err)
	require.Len(t, list, 1)
}

func TestSaveWithCleanTreeIsNoop(t *testing.T) {
	repoRoot, indexPath, store, ix, headTree := setupRepo(t)
	s, err := stash.Open(filepath.Join(t.TempDir(), "stash"))
	require.NoError(t, err)

	entry, err := stash.Save(context.Background(), s, store, repoRoot, indexPath, ix, headTree, "")
	require.NoError(t, err)
	require.Nil(t, entry)

	list, err := s.List()
	require.NoError(t, err)
	require.Empty(t, list)
}

func TestApplyRestoresFilesWithoutDroppingEntry(t *testing.T) {
	repoRoot, indexPath, store, ix, headTree := setupRepo(t)
	ctx := context.Background()
	require.NoError(t, os.WriteFile(filepath.Join(repoRoot, "a.txt"), []byte("dirty\n"), 0o644))

	s, err := stash.Open(filepath.Join(t.TempDir(), "stash"))
	require.NoError(t, err)
	_, err = stash.Save(ctx, s, store, repoRoot, indexPath, ix, headTree, "wip")
	require.NoError(t, err)

	require.NoError(t, stash.Apply(ctx, s, repoRoot, ix, 0))

	got, err := os.ReadFile(filepath.Join(repoRoot, "a.txt"))
	require.NoError(t, err)
	require.Equal(t, "dirty\n", string(got))

	list, err := s.List()
	require.NoError(t, err)
	require.Len(t, list, 1)
}

func TestPopRemovesEntryAfterApplying(t *testing.T) {
	repoRoot, indexPath, store, ix, headTree := setupRepo(t)
	ctx := context.Background()
	require.NoError(t, os.WriteFile(filepath.Join(repoRoot, "a.txt"), []byte("dirty\n"), 0o644))

	s, err := stash.Open(filepath.Join(t.TempDir(), "stash"))
	require.NoError(t, err)
	_, err = stash.Save(ctx, s, store, repoRoot, indexPath, ix, headTree, "wip")
	require.NoError(t, err)

	require.NoError(t, stash.Pop(ctx, s, repoRoot, ix, 0))

	list, err := s.List()
	require.NoError(t, err)
	require.Empty(t, list)
}

func TestDropAndClear(t *testing.T) {
	s, err := stash.Open(filepath.Join(t.TempDir(), "stash"))
	require.NoError(t, err)

	repoRoot, indexPath, store, ix, headTree := setupRepo(t)
	ctx := context.Background()

	require.NoError(t, os.WriteFile(filepath.Join(repoRoot, "a.txt"), []byte("one\n"), 0o644))
	_, err = stash.Save(ctx, s, store, repoRoot, indexPath, ix, headTree, "one")
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(repoRoot, "a.txt"), []byte("two\n"), 0o644))
	_, err = stash.Save(ctx, s, store, repoRoot, indexPath, ix, headTree, "two")
	require.NoError(t, err)

	list, err := s.List()
	require.NoError(t, err)
	require.Len(t, list, 2)
	// Newest first.
	require.Equal(t, "two", list[0].Message)

	require.NoError(t, s.Drop(1))
	list, err = s.List()
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "two", list[0].Message)

	require.NoError(t, s.Clear())
	list, err = s.List()
	require.NoError(t, err)
	require.Empty(t, list)
}
