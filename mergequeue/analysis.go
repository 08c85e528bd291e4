// Package mergequeue implements C10, the speculative multi-PR merge queue:
// per-PR analysis, pairwise conflict prediction, greedy ordering, scratch-
// workspace reassembly via cherry-pick, and optimistic batching with
// bisection on failure (spec.md §4.10).
package mergequeue

import (
	"context"
	"path"
	"strings"

	"github.com/wit-vcs/wit/diff"
	"github.com/wit-vcs/wit/merge"
	"github.com/wit-vcs/wit/plumbing"
	"github.com/wit-vcs/wit/plumbing/object"
	"github.com/wit-vcs/wit/storage"
	"golang.org/x/sync/errgroup"
)

// PRInput is the identifying record spec.md §4.10 takes as input: a PR's
// head and base hashes against a common target branch.
type PRInput struct {
	PRID string
	Head plumbing.Hash
	Base plumbing.Hash
}

// CommitInfo is one commit within a PR's chain.
type CommitInfo struct {
	Hash    plumbing.Hash
	Message string
	Author  object.Signature
	Files   []string
}

// PRAnalysis is spec.md §4.10's per-PR analysis result.
type PRAnalysis struct {
	PRID          string
	Files         []diff.FileChange
	Commits       []CommitInfo
	Directories   map[string]bool
	ConflictAreas map[string]bool
	Additions     int
	Deletions     int
}

// Churn is the total line churn (additions+deletions) across a PR's files,
// the tie-break spec.md §4.10 uses when conflict probability doesn't force
// manual_required: "prefer smaller PR first (by total line churn)".
func (a *PRAnalysis) Churn() int { return a.Additions + a.Deletions }

// AnalyzePR computes a PRAnalysis for one PR: the file-level diff between
// base and head trees, per-commit file lists, touched directories, and
// conflict-area flags.
func AnalyzePR(ctx context.Context, store storage.ObjectStorer, pr PRInput) (*PRAnalysis, error) {
	baseCommit, err := merge.LoadCommit(ctx, store, pr.Base)
	if err != nil {
		return nil, err
	}
	headCommit, err := merge.LoadCommit(ctx, store, pr.Head)
	if err != nil {
		return nil, err
	}

	files, err := diff.Trees(ctx, store, baseCommit.TreeHash, headCommit.TreeHash, diff.DefaultRenameOptions)
	if err != nil {
		return nil, err
	}

	commits, err := merge.CommitsSince(ctx, store, pr.Base, pr.Head)
	if err != nil {
		return nil, err
	}

	analysis := &PRAnalysis{
		PRID:          pr.PRID,
		Files:         files,
		Directories:   map[string]bool{},
		ConflictAreas: map[string]bool{},
	}

	for _, f := range files {
		analysis.Additions += f.Additions
		analysis.Deletions += f.Deletions
		recordDirectories(analysis.Directories, f.Path)
		if f.OldPath != "" {
			recordDirectories(analysis.Directories, f.OldPath)
		}
		if isConflictArea(f) {
			analysis.ConflictAreas[f.Path] = true
		}
	}

	for _, c := range commits {
		var parentTree plumbing.Hash
		if len(c.Parents) > 0 {
			parent, err := merge.LoadCommit(ctx, store, c.Parents[0])
			if err != nil {
				return nil, err
			}
			parentTree = parent.TreeHash
		}
		commitFiles, err := diff.Trees(ctx, store, parentTree, c.TreeHash, diff.DefaultRenameOptions)
		if err != nil {
			return nil, err
		}
		paths := make([]string, 0, len(commitFiles))
		for _, cf := range commitFiles {
			paths = append(paths, cf.Path)
		}
		analysis.Commits = append(analysis.Commits, CommitInfo{
			Hash: c.Hash, Message: c.Message, Author: c.Author, Files: paths,
		})
	}

	return analysis, nil
}

// AnalyzeAll runs AnalyzePR for every PR concurrently, one errgroup
// goroutine per PR with no limit on the fan-out; per-PR analysis is the one
// place in this engine that uses errgroup — each PR's tree diff is
// independent I/O against the same read-only store.
func AnalyzeAll(ctx context.Context, store storage.ObjectStorer, prs []PRInput) (map[string]*PRAnalysis, error) {
	results := make([]*PRAnalysis, len(prs))
	g, gctx := errgroup.WithContext(ctx)
	for i, pr := range prs {
		i, pr := i, pr
		g.Go(func() error {
			a, err := AnalyzePR(gctx, store, pr)
			if err != nil {
				return err
			}
			results[i] = a
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[string]*PRAnalysis, len(prs))
	for _, a := range results {
		out[a.PRID] = a
	}
	return out, nil
}

func recordDirectories(dirs map[string]bool, filePath string) {
	dir := path.Dir(filePath)
	for dir != "." && dir != "/" && dir != "" {
		dirs[dir] = true
		dir = path.Dir(dir)
	}
}

var lockfileNames = map[string]bool{
	"package-lock.json": true,
	"yarn.lock":         true,
	"pnpm-lock.yaml":    true,
	"Gemfile.lock":      true,
	"Cargo.lock":        true,
	"poetry.lock":       true,
	"go.sum":            true,
	"composer.lock":     true,
}

// isConflictArea implements spec.md §4.10's conflict_areas rule: lockfiles,
// schema/migration files, generated files, or any file whose total churn
// exceeds 100 lines.
func isConflictArea(f diff.FileChange) bool {
	base := path.Base(f.Path)
	if lockfileNames[base] {
		return true
	}
	lower := strings.ToLower(f.Path)
	if strings.Contains(lower, "migration") || strings.Contains(lower, "/schema/") || strings.HasSuffix(lower, "schema.sql") {
		return true
	}
	if strings.Contains(lower, "/generated/") || strings.HasSuffix(lower, ".pb.go") || strings.HasSuffix(lower, "_generated.go") || strings.HasSuffix(lower, ".gen.go") {
		return true
	}
	if f.Additions+f.Deletions > 100 {
		return true
	}
	return false
}
