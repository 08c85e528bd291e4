package diff_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wit-vcs/wit/diff"
	"github.com/wit-vcs/wit/plumbing"
)

func TestLinesClassifiesAddRemoveContext(t *testing.T) {
	old := "a\nb\nc\n"
	new := "a\nB\nc\n"
	lines := diff.Lines(old, new)

	var adds, removes, ctx int
	for _, l := range lines {
		switch l.Op {
		case diff.Add:
			adds++
		case diff.Remove:
			removes++
		case diff.Context:
			ctx++
		}
	}
	require.Equal(t, 1, adds)
	require.Equal(t, 1, removes)
	require.GreaterOrEqual(t, ctx, 2)
}

func TestGroupMergesCloseChanges(t *testing.T) {
	lines := diff.Lines("1\n2\n3\n4\n5\n6\n7\n", "1\nX\n3\n4\nY\n6\n7\n")
	hunks := diff.Group(lines, 1)
	require.Len(t, hunks, 1, "changes 2 unchanged lines apart with context 1 should merge into a single hunk")
}

func TestUnifiedRendersHeaderAndHunks(t *testing.T) {
	lines := diff.Lines("a\nb\n", "a\nc\n")
	hunks := diff.Group(lines, 3)
	out := diff.Unified("old.txt", "new.txt", hunks)
	require.Contains(t, out, "--- old.txt")
	require.Contains(t, out, "+++ new.txt")
	require.Contains(t, out, "@@")
	require.Contains(t, out, "-b")
	require.Contains(t, out, "+c")
}

func TestDetectRenamesExactHash(t *testing.T) {
	h := plumbing.MustHash("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	deletes := []diff.FileRef{{Path: "src/alpha.ts", Hash: h, Content: []byte("same content")}}
	adds := []diff.FileRef{{Path: "src/beta.ts", Hash: h, Content: []byte("same content")}}

	pairs := diff.DetectRenames(deletes, adds, diff.DefaultRenameOptions)
	require.Len(t, pairs, 1)
	require.Equal(t, "src/alpha.ts", pairs[0].Old)
	require.Equal(t, "src/beta.ts", pairs[0].New)
	require.Equal(t, 1.0, pairs[0].Similarity)
}

func TestDetectRenamesSimilarityThreshold(t *testing.T) {
	deletes := []diff.FileRef{{Path: "src/alpha.ts", Content: []byte("line1\nline2\nline3\nline4\nline5\nline6\nline7\nline8\nline9\nline10\n")}}
	adds := []diff.FileRef{{Path: "src/beta.ts", Content: []byte("line1\nline2\nline3\nline4\nline5\nline6\nline7\nline8\nline9\nCHANGED\n")}}

	pairs := diff.DetectRenames(deletes, adds, diff.DefaultRenameOptions)
	require.Len(t, pairs, 1)
	require.GreaterOrEqual(t, pairs[0].Similarity, 0.5)
}

func TestDetectRenamesEachSideUsedOnce(t *testing.T) {
	d1 := diff.FileRef{Path: "a.txt", Content: []byte("shared\nfoo\n")}
	d2 := diff.FileRef{Path: "b.txt", Content: []byte("shared\nbar\n")}
	a1 := diff.FileRef{Path: "c.txt", Content: []byte("shared\nfoo\n")}

	pairs := diff.DetectRenames([]diff.FileRef{d1, d2}, []diff.FileRef{a1}, diff.DefaultRenameOptions)
	require.Len(t, pairs, 1)
	require.Equal(t, "a.txt", pairs[0].Old)
}
