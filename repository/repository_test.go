package repository_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wit-vcs/wit/merge"
	"github.com/wit-vcs/wit/plumbing"
	"github.com/wit-vcs/wit/plumbing/codec"
	"github.com/wit-vcs/wit/plumbing/object"
	"github.com/wit-vcs/wit/refs"
	"github.com/wit-vcs/wit/repository"
)

func initRepo(t *testing.T) (*repository.Repository, string) {
	t.Helper()
	dir := t.TempDir()
	r, err := repository.Init(dir, plumbing.SHA1)
	require.NoError(t, err)
	return r, dir
}

func writeFile(t *testing.T, dir, path, content string) {
	t.Helper()
	full := filepath.Join(dir, path)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}

func TestInitCreatesLayoutAndUnbornHead(t *testing.T) {
	r, dir := initRepo(t)
	for _, p := range []string{"objects", "refs/heads", "refs/tags", "logs", "config"} {
		_, err := os.Stat(filepath.Join(dir, repository.DotDir, p))
		require.NoError(t, err)
	}
	head, err := r.Refs.Get(refs.HEAD)
	require.NoError(t, err)
	require.Equal(t, refs.SymbolicReference, head.Type())
	require.Equal(t, refs.BranchRef("main"), head.Target())
}

func TestCommitCreatesRootCommitAndAdvancesBranch(t *testing.T) {
	r, dir := initRepo(t)
	writeFile(t, dir, "hello.txt", "hello world\n")

	sig := &object.Signature{Name: "Ada", Email: "ada@example.com"}
	hash, err := r.Commit(context.Background(), repository.CommitOptions{
		Message: "initial commit",
		Files:   []string{"hello.txt"},
		Author:  sig,
	})
	require.NoError(t, err)
	require.False(t, hash.IsZero())

	head, err := r.Refs.GetHead()
	require.NoError(t, err)
	require.Equal(t, hash, head.Target)

	commit, err := r.Store.Get(context.Background(), hash)
	require.NoError(t, err)
	decoded, err := object.DecodeCommit(commit, plumbing.SHA1)
	require.NoError(t, err)
	require.Empty(t, decoded.Parents)
	require.Equal(t, "initial commit", decoded.Message)
}

func TestCommitWithNoChangesFailsWithoutAllowEmpty(t *testing.T) {
	r, dir := initRepo(t)
	writeFile(t, dir, "a.txt", "content\n")
	ctx := context.Background()
	_, err := r.Commit(ctx, repository.CommitOptions{Message: "first", Files: []string{"a.txt"}})
	require.NoError(t, err)

	_, err = r.Commit(ctx, repository.CommitOptions{Message: "second", Files: []string{"a.txt"}})
	require.Error(t, err)
}

func TestAmendReplacesMessageKeepingParents(t *testing.T) {
	r, dir := initRepo(t)
	writeFile(t, dir, "a.txt", "content\n")
	ctx := context.Background()
	first, err := r.Commit(ctx, repository.CommitOptions{Message: "first", Files: []string{"a.txt"}})
	require.NoError(t, err)

	amended, err := r.Commit(ctx, repository.CommitOptions{Message: "first, amended", Amend: true, AllowEmpty: true})
	require.NoError(t, err)
	require.NotEqual(t, first, amended)

	o, err := r.Store.Get(ctx, amended)
	require.NoError(t, err)
	c, err := object.DecodeCommit(o, plumbing.SHA1)
	require.NoError(t, err)
	require.Empty(t, c.Parents)
	require.Equal(t, "first, amended", c.Message)
}

func TestCheckoutSafeRefusesToClobberModifiedFile(t *testing.T) {
	r, dir := initRepo(t)
	writeFile(t, dir, "a.txt", "v1\n")
	ctx := context.Background()
	_, err := r.Commit(ctx, repository.CommitOptions{Message: "v1", Files: []string{"a.txt"}})
	require.NoError(t, err)

	require.NoError(t, r.CreateBranch("feature"))

	writeFile(t, dir, "a.txt", "dirty, uncommitted\n")
	err = r.Checkout(ctx, "feature", repository.CheckoutSafe)
	var conflictErr *repository.CheckoutConflictError
	require.ErrorAs(t, err, &conflictErr)
}

func TestCheckoutForceMaterializesTree(t *testing.T) {
	r, dir := initRepo(t)
	writeFile(t, dir, "a.txt", "v1\n")
	ctx := context.Background()
	_, err := r.Commit(ctx, repository.CommitOptions{Message: "v1", Files: []string{"a.txt"}})
	require.NoError(t, err)
	require.NoError(t, r.CreateBranch("other"))

	writeFile(t, dir, "a.txt", "v2\n")
	_, err = r.Commit(ctx, repository.CommitOptions{Message: "v2", Files: []string{"a.txt"}})
	require.NoError(t, err)

	require.NoError(t, r.Checkout(ctx, "other", repository.CheckoutForce))
	got, err := os.ReadFile(filepath.Join(dir, "a.txt"))
	require.NoError(t, err)
	require.Equal(t, "v1\n", string(got))
}

// TestBasicCommitRoundTrip exercises the engine's most basic end-to-end
// path: write a file, add it, commit it, and read it back after a
// checkout, independently verifying the stored blob's hash matches the
// framed content hash a caller would compute by hand.
func TestBasicCommitRoundTrip(t *testing.T) {
	r, dir := initRepo(t)
	writeFile(t, dir, "a.txt", "hello\n")

	hash, err := r.Commit(context.Background(), repository.CommitOptions{
		Message: "m1",
		Files:   []string{"a.txt"},
		Author:  &object.Signature{Name: "t", Email: "t@example.com"},
	})
	require.NoError(t, err)

	commit, err := r.Store.Get(context.Background(), hash)
	require.NoError(t, err)
	decoded, err := object.DecodeCommit(commit, plumbing.SHA1)
	require.NoError(t, err)

	tree, err := r.Store.Get(context.Background(), decoded.TreeHash)
	require.NoError(t, err)
	decodedTree, err := object.DecodeTree(tree, plumbing.SHA1)
	require.NoError(t, err)
	require.Len(t, decodedTree.Entries, 1)
	require.Equal(t, "a.txt", decodedTree.Entries[0].Name)

	wantHash := plumbing.HashObject(plumbing.SHA1, codec.Frame(plumbing.BlobObject, []byte("hello\n")))
	require.Equal(t, wantHash, decodedTree.Entries[0].Hash)

	require.NoError(t, os.Remove(filepath.Join(dir, "a.txt")))
	require.NoError(t, r.Checkout(context.Background(), "main", repository.CheckoutForce))

	got, err := os.ReadFile(filepath.Join(dir, "a.txt"))
	require.NoError(t, err)
	require.Equal(t, "hello\n", string(got))
}

func TestDeleteBranchRefusesCurrentBranch(t *testing.T) {
	r, dir := initRepo(t)
	writeFile(t, dir, "a.txt", "v1\n")
	ctx := context.Background()
	_, err := r.Commit(ctx, repository.CommitOptions{Message: "v1", Files: []string{"a.txt"}})
	require.NoError(t, err)

	require.Error(t, r.DeleteBranch("main"))
}

// TestMergeFastForwardAdvancesBranch reproduces S2 (§8): merging a
// descendant branch fast-forwards the current branch's ref and writes no
// new commit object, and the working tree picks up the fast-forwarded
// content without a separate checkout.
func TestMergeFastForwardAdvancesBranch(t *testing.T) {
	r, dir := initRepo(t)
	ctx := context.Background()
	sig := &object.Signature{Name: "t", Email: "t@example.com"}

	writeFile(t, dir, "a.txt", "hello\n")
	_, err := r.Commit(ctx, repository.CommitOptions{Message: "m1", Files: []string{"a.txt"}, Author: sig})
	require.NoError(t, err)

	require.NoError(t, r.CreateBranch("feat"))
	require.NoError(t, r.Checkout(ctx, "feat", repository.CheckoutForce))
	writeFile(t, dir, "b.txt", "x")
	featHash, err := r.Commit(ctx, repository.CommitOptions{Message: "m2", Files: []string{"b.txt"}, Author: sig})
	require.NoError(t, err)

	require.NoError(t, r.Checkout(ctx, "main", repository.CheckoutForce))
	result, err := r.Merge(ctx, "feat", merge.Options{Strategy: merge.FastForwardOnly, Author: *sig})
	require.NoError(t, err)
	require.True(t, result.FastForward)
	require.Equal(t, featHash, result.Commit)

	head, err := r.Refs.GetHead()
	require.NoError(t, err)
	require.Equal(t, featHash, head.Target)

	got, err := os.ReadFile(filepath.Join(dir, "b.txt"))
	require.NoError(t, err)
	require.Equal(t, "x", string(got))
}

// TestMergeConflictStagesIndexAndWritesMarkers reproduces S4 (§8): a
// divergent same-line edit fails the merge, leaving conflict markers on
// disk and the path staged at index stages 1/2/3, with the branch ref left
// untouched until the caller resolves and commits.
func TestMergeConflictStagesIndexAndWritesMarkers(t *testing.T) {
	r, dir := initRepo(t)
	ctx := context.Background()
	sig := &object.Signature{Name: "t", Email: "t@example.com"}

	writeFile(t, dir, "a.txt", "hello\n")
	_, err := r.Commit(ctx, repository.CommitOptions{Message: "base", Files: []string{"a.txt"}, Author: sig})
	require.NoError(t, err)
	require.NoError(t, r.CreateBranch("feat"))

	require.NoError(t, r.Checkout(ctx, "feat", repository.CheckoutForce))
	writeFile(t, dir, "a.txt", "from feat\n")
	_, err = r.Commit(ctx, repository.CommitOptions{Message: "feat edit", Files: []string{"a.txt"}, Author: sig})
	require.NoError(t, err)

	require.NoError(t, r.Checkout(ctx, "main", repository.CheckoutForce))
	writeFile(t, dir, "a.txt", "from main\n")
	mainHash, err := r.Commit(ctx, repository.CommitOptions{Message: "main edit", Files: []string{"a.txt"}, Author: sig})
	require.NoError(t, err)

	result, err := r.Merge(ctx, "feat", merge.Options{Strategy: merge.ThreeWay, Author: *sig})
	require.NoError(t, err)
	require.Len(t, result.Conflicts, 1)
	require.Equal(t, "a.txt", result.Conflicts[0].Path)

	head, err := r.Refs.GetHead()
	require.NoError(t, err)
	require.Equal(t, mainHash, head.Target, "a conflicting merge must not move the branch ref")

	onDisk, err := os.ReadFile(filepath.Join(dir, "a.txt"))
	require.NoError(t, err)
	require.Contains(t, string(onDisk), "<<<<<<<")
	require.Contains(t, string(onDisk), "from feat")
	require.Contains(t, string(onDisk), "from main")

	var stages []int
	for _, e := range r.Index.GetAll() {
		if e.Path == "a.txt" {
			stages = append(stages, int(e.Stage))
		}
	}
	require.ElementsMatch(t, []int{1, 2, 3}, stages)
}
