package mergequeue_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wit-vcs/wit/mergequeue"
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
	c := &object.Commit{TreeHash: tree, Parents: parents, Message: "m", Author: object.Signature{Name: "a", Email: "a@example.com"}}
	h, err := store.Put(context.Background(), c.Encode(store.HashAlgo()))
	require.NoError(t, err)
	return h
}

func setupRoot(t *testing.T, store *memory.Storage) (root plumbing.Hash) {
	t.Helper()
	a := putBlob(t, store, "base\n")
	b := putBlob(t, store, "base\n")
	tree := putTree(t, store,
		object.TreeEntry{Name: "a.txt", Mode: plumbing.ModeRegular, Hash: a},
		object.TreeEntry{Name: "b.txt", Mode: plumbing.ModeRegular, Hash: b},
	)
	return putCommit(t, store, tree)
}

func TestAnalyzePRFlagsConflictAreas(t *testing.T) {
	store := memory.NewStorage(plumbing.SHA1)
	root := setupRoot(t, store)

	lockBlob := putBlob(t, store, "{}\n")
	tree := putTree(t, store,
		object.TreeEntry{Name: "a.txt", Mode: plumbing.ModeRegular, Hash: putBlob(t, store, "base\n")},
		object.TreeEntry{Name: "b.txt", Mode: plumbing.ModeRegular, Hash: putBlob(t, store, "base\n")},
		object.TreeEntry{Name: "package-lock.json", Mode: plumbing.ModeRegular, Hash: lockBlob},
	)
	head := putCommit(t, store, tree, root)

	analysis, err := mergequeue.AnalyzePR(context.Background(), store, mergequeue.PRInput{PRID: "pr1", Head: head, Base: root})
	require.NoError(t, err)
	require.True(t, analysis.ConflictAreas["package-lock.json"])
	require.Len(t, analysis.Files, 1)
}

func TestPredictConflictNoOverlap(t *testing.T) {
	store := memory.NewStorage(plumbing.SHA1)
	root := setupRoot(t, store)

	treeA := putTree(t, store,
		object.TreeEntry{Name: "a.txt", Mode: plumbing.ModeRegular, Hash: putBlob(t, store, "changed-a\n")},
		object.TreeEntry{Name: "b.txt", Mode: plumbing.ModeRegular, Hash: putBlob(t, store, "base\n")},
	)
	headA := putCommit(t, store, treeA, root)

	treeB := putTree(t, store,
		object.TreeEntry{Name: "a.txt", Mode: plumbing.ModeRegular, Hash: putBlob(t, store, "base\n")},
		object.TreeEntry{Name: "b.txt", Mode: plumbing.ModeRegular, Hash: putBlob(t, store, "changed-b\n")},
	)
	headB := putCommit(t, store, treeB, root)

	ctx := context.Background()
	prA, err := mergequeue.AnalyzePR(ctx, store, mergequeue.PRInput{PRID: "pr-a", Head: headA, Base: root})
	require.NoError(t, err)
	prB, err := mergequeue.AnalyzePR(ctx, store, mergequeue.PRInput{PRID: "pr-b", Head: headB, Base: root})
	require.NoError(t, err)

	prediction := mergequeue.PredictConflict(prA, prB, mergequeue.DefaultWeights)
	require.Zero(t, prediction.Probability)
	require.Empty(t, prediction.ConflictingFiles)
	require.NotEqual(t, mergequeue.ManualRequired, prediction.Resolution)
}

func TestPredictConflictOverlapForcesManualReview(t *testing.T) {
	store := memory.NewStorage(plumbing.SHA1)
	root := setupRoot(t, store)

	treeA := putTree(t, store,
		object.TreeEntry{Name: "a.txt", Mode: plumbing.ModeRegular, Hash: putBlob(t, store, "ours\n")},
		object.TreeEntry{Name: "b.txt", Mode: plumbing.ModeRegular, Hash: putBlob(t, store, "base\n")},
	)
	headA := putCommit(t, store, treeA, root)

	treeB := putTree(t, store,
		object.TreeEntry{Name: "a.txt", Mode: plumbing.ModeRegular, Hash: putBlob(t, store, "theirs\n")},
		object.TreeEntry{Name: "b.txt", Mode: plumbing.ModeRegular, Hash: putBlob(t, store, "base\n")},
	)
	headB := putCommit(t, store, treeB, root)

	ctx := context.Background()
	prA, err := mergequeue.AnalyzePR(ctx, store, mergequeue.PRInput{PRID: "pr-a", Head: headA, Base: root})
	require.NoError(t, err)
	prB, err := mergequeue.AnalyzePR(ctx, store, mergequeue.PRInput{PRID: "pr-b", Head: headB, Base: root})
	require.NoError(t, err)

	weights := mergequeue.Weights{FileOverlap: 80, ConflictArea: 80, DirectoryOverlap: 5}
	prediction := mergequeue.PredictConflict(prA, prB, weights)
	require.Equal(t, []string{"a.txt"}, prediction.ConflictingFiles)
	require.Equal(t, mergequeue.ManualRequired, prediction.Resolution)
}

func TestOrderPRsIsDeterministicAndTieBreaksByID(t *testing.T) {
	store := memory.NewStorage(plumbing.SHA1)
	root := setupRoot(t, store)

	treeA := putTree(t, store,
		object.TreeEntry{Name: "a.txt", Mode: plumbing.ModeRegular, Hash: putBlob(t, store, "changed-a\n")},
		object.TreeEntry{Name: "b.txt", Mode: plumbing.ModeRegular, Hash: putBlob(t, store, "base\n")},
	)
	headA := putCommit(t, store, treeA, root)

	treeB := putTree(t, store,
		object.TreeEntry{Name: "a.txt", Mode: plumbing.ModeRegular, Hash: putBlob(t, store, "base\n")},
		object.TreeEntry{Name: "b.txt", Mode: plumbing.ModeRegular, Hash: putBlob(t, store, "changed-b\n")},
	)
	headB := putCommit(t, store, treeB, root)

	ctx := context.Background()
	analyses, err := mergequeue.AnalyzeAll(ctx, store, []mergequeue.PRInput{
		{PRID: "pr-b", Head: headB, Base: root},
		{PRID: "pr-a", Head: headA, Base: root},
	})
	require.NoError(t, err)
	require.Len(t, analyses, 2)

	ordered := mergequeue.OrderPRs([]string{"pr-b", "pr-a"}, analyses, mergequeue.DefaultWeights)
	require.Equal(t, []string{"pr-a", "pr-b"}, ordered)
}

func TestReassembleNonConflictingPRs(t *testing.T) {
	store := memory.NewStorage(plumbing.SHA1)
	root := setupRoot(t, store)

	treeA := putTree(t, store,
		object.TreeEntry{Name: "a.txt", Mode: plumbing.ModeRegular, Hash: putBlob(t, store, "changed-a\n")},
		object.TreeEntry{Name: "b.txt", Mode: plumbing.ModeRegular, Hash: putBlob(t, store, "base\n")},
	)
	headA := putCommit(t, store, treeA, root)

	treeB := putTree(t, store,
		object.TreeEntry{Name: "a.txt", Mode: plumbing.ModeRegular, Hash: putBlob(t, store, "base\n")},
		object.TreeEntry{Name: "b.txt", Mode: plumbing.ModeRegular, Hash: putBlob(t, store, "changed-b\n")},
	)
	headB := putCommit(t, store, treeB, root)

	sig := object.Signature{Name: "queue", Email: "queue@example.com"}
	result, err := mergequeue.Reassemble(context.Background(), store, root, []mergequeue.PRInput{
		{PRID: "pr-a", Head: headA, Base: root},
		{PRID: "pr-b", Head: headB, Base: root},
	}, sig)
	require.NoError(t, err)
	require.Empty(t, result.FailedPRs)
	require.Len(t, result.Entries, 2)
	require.False(t, result.Head.IsZero())

	finalCommit, err := object.DecodeCommit(mustGet(t, store, result.Head), plumbing.SHA1)
	require.NoError(t, err)
	finalTree, err := object.DecodeTree(mustGet(t, store, finalCommit.TreeHash), plumbing.SHA1)
	require.NoError(t, err)
	aEntry, ok := finalTree.Find("a.txt")
	require.True(t, ok)
	bEntry, ok := finalTree.Find("b.txt")
	require.True(t, ok)
	require.NotEqual(t, aEntry.Hash, bEntry.Hash)
}

// TestProcessBatchIsolatesFailingPR reproduces S7 (§8): with pr-b the only
// PR that conflicts, ProcessBatch must still merge pr-a and pr-c (the PR
// positioned *after* the failure) rather than dropping everything past the
// first conflict it bisects down to.
func TestProcessBatchIsolatesFailingPR(t *testing.T) {
	store := memory.NewStorage(plumbing.SHA1)
	root := setupRoot(t, store)

	// pr-a and pr-b both touch a.txt, diverging from root — cherry-picking
	// pr-b after pr-a lands will conflict on that file, and the fallback
	// merge will conflict too, so pr-b should be reported as the failure.
	// pr-c only touches b.txt, independent of pr-a/pr-b, so it must still
	// land even though it comes after the failing PR in the batch.
	treeA := putTree(t, store,
		object.TreeEntry{Name: "a.txt", Mode: plumbing.ModeRegular, Hash: putBlob(t, store, "ours\n")},
		object.TreeEntry{Name: "b.txt", Mode: plumbing.ModeRegular, Hash: putBlob(t, store, "base\n")},
	)
	headA := putCommit(t, store, treeA, root)

	treeB := putTree(t, store,
		object.TreeEntry{Name: "a.txt", Mode: plumbing.ModeRegular, Hash: putBlob(t, store, "theirs\n")},
		object.TreeEntry{Name: "b.txt", Mode: plumbing.ModeRegular, Hash: putBlob(t, store, "base\n")},
	)
	headB := putCommit(t, store, treeB, root)

	treeC := putTree(t, store,
		object.TreeEntry{Name: "a.txt", Mode: plumbing.ModeRegular, Hash: putBlob(t, store, "base\n")},
		object.TreeEntry{Name: "b.txt", Mode: plumbing.ModeRegular, Hash: putBlob(t, store, "changed-c\n")},
	)
	headC := putCommit(t, store, treeC, root)

	sig := object.Signature{Name: "queue", Email: "queue@example.com"}
	result, err := mergequeue.ProcessBatch(context.Background(), store, root, []mergequeue.PRInput{
		{PRID: "pr-a", Head: headA, Base: root},
		{PRID: "pr-b", Head: headB, Base: root},
		{PRID: "pr-c", Head: headC, Base: root},
	}, sig)
	require.NoError(t, err)
	require.Equal(t, []string{"pr-b"}, result.FailedPRs)

	var mergedPRs []string
	for _, e := range result.Entries {
		mergedPRs = append(mergedPRs, e.PRID)
	}
	require.ElementsMatch(t, []string{"pr-a", "pr-c"}, mergedPRs)

	finalCommit, err := object.DecodeCommit(mustGet(t, store, result.Head), plumbing.SHA1)
	require.NoError(t, err)
	finalTree, err := object.DecodeTree(mustGet(t, store, finalCommit.TreeHash), plumbing.SHA1)
	require.NoError(t, err)
	aEntry, ok := finalTree.Find("a.txt")
	require.True(t, ok)
	require.Equal(t, "ours\n", string(mustBlobContent(t, store, aEntry.Hash)))
	bEntry, ok := finalTree.Find("b.txt")
	require.True(t, ok)
	require.Equal(t, "changed-c\n", string(mustBlobContent(t, store, bEntry.Hash)))
}

func mustBlobContent(t *testing.T, store *memory.Storage, hash plumbing.Hash) []byte {
	t.Helper()
	o := mustGet(t, store, hash)
	rc, err := o.Reader()
	require.NoError(t, err)
	defer rc.Close()
	buf := make([]byte, 1024)
	n, _ := rc.Read(buf)
	return buf[:n]
}

func mustGet(t *testing.T, store *memory.Storage, hash plumbing.Hash) plumbing.EncodedObject {
	t.Helper()
	o, err := store.Get(context.Background(), hash)
	require.NoError(t, err)
	return o
}
