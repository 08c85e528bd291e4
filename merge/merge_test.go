package merge_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wit-vcs/wit/merge"
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

func putTree(t *testing.T, store *memory.Storage, entries ...object.TreeEntry) plumbing.Hash {
	t.Helper()
	tree, err := object.NewTree(entries)
	require.NoError(t, err)
	h, err := store.Put(context.Background(), tree.Encode(store.HashAlgo()))
	require.NoError(t, err)
	return h
}

func putCommit(t *testing.T, store *memory.Storage, tree plumbing.Hash, parents ...plumbing.Hash) plumbing.Hash {
	t.Helper()
	c := &object.Commit{TreeHash: tree, Parents: parents, Message: "m"}
	h, err := store.Put(context.Background(), c.Encode(store.HashAlgo()))
	require.NoError(t, err)
	return h
}

func TestMergeBaseSymmetric(t *testing.T) {
	store := memory.NewStorage(plumbing.SHA1)
	tree := putTree(t, store)
	root := putCommit(t, store, tree)
	left := putCommit(t, store, tree, root)
	right := putCommit(t, store, tree, root)

	ctx := context.Background()
	ab, err := merge.MergeBase(ctx, store, left, right)
	require.NoError(t, err)
	ba, err := merge.MergeBase(ctx, store, right, left)
	require.NoError(t, err)
	require.Equal(t, ab, ba)
	require.Equal(t, root, ab)
}

func TestMergeFastForward(t *testing.T) {
	store := memory.NewStorage(plumbing.SHA1)
	blobA := putBlob(t, store, "x\n")
	treeA := putTree(t, store, object.TreeEntry{Name: "a.txt", Mode: plumbing.ModeRegular, Hash: blobA})
	root := putCommit(t, store, treeA)

	blobB := putBlob(t, store, "x\n")
	treeB := putTree(t, store, object.TreeEntry{Name: "a.txt", Mode: plumbing.ModeRegular, Hash: blobB}, object.TreeEntry{Name: "b.txt", Mode: plumbing.ModeRegular, Hash: blobB})
	feat := putCommit(t, store, treeB, root)

	result, err := merge.Merge(context.Background(), store, merge.Options{Ours: root, Theirs: feat, Strategy: merge.FastForwardOnly})
	require.NoError(t, err)
	require.True(t, result.FastForward)
	require.Equal(t, feat, result.Commit)
}

func TestMergeThreeWayNonConflicting(t *testing.T) {
	store := memory.NewStorage(plumbing.SHA1)
	baseBlob := putBlob(t, store, "hello\n")
	baseTree := putTree(t, store, object.TreeEntry{Name: "a.txt", Mode: plumbing.ModeRegular, Hash: baseBlob})
	root := putCommit(t, store, baseTree)

	// feat: line 1 -> "HELLO"
	featBlob := putBlob(t, store, "HELLO\n")
	featTree := putTree(t, store, object.TreeEntry{Name: "a.txt", Mode: plumbing.ModeRegular, Hash: featBlob})
	feat := putCommit(t, store, featTree, root)

	// main: append "world"
	mainBlob := putBlob(t, store, "hello\nworld\n")
	mainTree := putTree(t, store, object.TreeEntry{Name: "a.txt", Mode: plumbing.ModeRegular, Hash: mainBlob})
	main := putCommit(t, store, mainTree, root)

	result, err := merge.Merge(context.Background(), store, merge.Options{
		Ours: main, Theirs: feat, Strategy: merge.ThreeWay,
		Author: object.Signature{Name: "t", Email: "t@example.com"}, Message: "merge feat",
	})
	require.NoError(t, err)
	require.Empty(t, result.Conflicts)
	require.False(t, result.Commit.IsZero())

	mergedCommit, err := store.Get(context.Background(), result.Commit)
	require.NoError(t, err)
	decoded, err := object.DecodeCommit(mergedCommit, plumbing.SHA1)
	require.NoError(t, err)
	require.Len(t, decoded.Parents, 2)

	tree, err := store.Get(context.Background(), decoded.TreeHash)
	require.NoError(t, err)
	decodedTree, err := object.DecodeTree(tree, plumbing.SHA1)
	require.NoError(t, err)
	entry, ok := decodedTree.Find("a.txt")
	require.True(t, ok)

	blobObj, err := store.Get(context.Background(), entry.Hash)
	require.NoError(t, err)
	rc, err := blobObj.Reader()
	require.NoError(t, err)
	defer rc.Close()
	buf := make([]byte, 64)
	n, _ := rc.Read(buf)
	require.Equal(t, "HELLO\nworld\n", string(buf[:n]))
}

func TestMergeThreeWayConflicting(t *testing.T) {
	store := memory.NewStorage(plumbing.SHA1)
	baseBlob := putBlob(t, store, "hello\n")
	baseTree := putTree(t, store, object.TreeEntry{Name: "a.txt", Mode: plumbing.ModeRegular, Hash: baseBlob})
	root := putCommit(t, store, baseTree)

	oursBlob := putBlob(t, store, "OURS\n")
	oursTree := putTree(t, store, object.TreeEntry{Name: "a.txt", Mode: plumbing.ModeRegular, Hash: oursBlob})
	ours := putCommit(t, store, oursTree, root)

	theirsBlob := putBlob(t, store, "THEIRS\n")
	theirsTree := putTree(t, store, object.TreeEntry{Name: "a.txt", Mode: plumbing.ModeRegular, Hash: theirsBlob})
	theirs := putCommit(t, store, theirsTree, root)

	result, err := merge.Merge(context.Background(), store, merge.Options{Ours: ours, Theirs: theirs, Strategy: merge.ThreeWay})
	require.NoError(t, err)
	require.Len(t, result.Conflicts, 1)
	require.Equal(t, "a.txt", result.Conflicts[0].Path)
	require.Contains(t, result.Conflicts[0].Markers, "<<<<<<< ours")
	require.Contains(t, result.Conflicts[0].Markers, ">>>>>>> theirs")
}

func TestIsAncestor(t *testing.T) {
	store := memory.NewStorage(plumbing.SHA1)
	tree := putTree(t, store)
	root := putCommit(t, store, tree)
	child := putCommit(t, store, tree, root)

	ok, err := merge.IsAncestor(context.Background(), store, root, child)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = merge.IsAncestor(context.Background(), store, child, root)
	require.NoError(t, err)
	require.False(t, ok)
}
