package merge

import (
	"context"
	"fmt"

	"dario.cat/mergo"

	"github.com/wit-vcs/wit/chunk"
	"github.com/wit-vcs/wit/plumbing"
	"github.com/wit-vcs/wit/plumbing/object"
	"github.com/wit-vcs/wit/storage"
)

// Strategy is the closed enumeration spec.md §7 defines for merges: "merge
// strategy ∈ {ff, three-way, squash, rebase}". ThreeWay is the zero value
// so a caller-supplied Options{} defaults to it without any extra step.
type Strategy int

const (
	ThreeWay Strategy = iota
	FastForwardOnly
	Squash
	Rebase
)

// ConflictKind distinguishes the shape of a per-file conflict.
type ConflictKind int

const (
	ContentConflict ConflictKind = iota
	ModifyDeleteConflict
	RenameConflict
)

// FileConflict is one unresolved path, carrying whichever side hashes are
// present (nil means the path was absent on that side) and the rendered
// conflict-marker text for content conflicts. The *Mode fields mirror the
// *Hash fields and are only meaningful when the matching hash is non-nil;
// they let a caller stage each present side at its original tree mode via
// index.AddConflict without re-reading the source trees.
type FileConflict struct {
	Path                           string
	Kind                           ConflictKind
	BaseHash, OursHash, TheirsHash *plumbing.Hash
	BaseMode, OursMode, TheirsMode plumbing.FileMode
	Markers                        string
}

// Options configures a merge invocation (spec.md §7's merge options).
type Options struct {
	Ours, Theirs plumbing.Hash
	Strategy     Strategy
	Author       object.Signature
	Message      string
}

// Result is what Merge returns: either a fast-forward/no-op outcome, a
// successful new commit, or a set of structured conflicts (spec.md §4.9:
// "Success(new_commit) or Conflict{files, per-file...}").
type Result struct {
	AlreadyUpToDate bool
	FastForward     bool
	Commit          plumbing.Hash
	Conflicts       []FileConflict
}

// DefaultOptions is the baseline every caller-supplied Options is merged
// over before a merge runs, so a caller only has to set the fields that
// matter for their call (spec.md §7's "merge strategy ∈ {ff, three-way,
// squash, rebase}" defaults to three-way, the common case).
var DefaultOptions = Options{Strategy: ThreeWay}

// WithDefaults overlays opts onto DefaultOptions, leaving any field opts
// already set untouched. Mirrors the option-defaulting convention used for
// diff.RenameOptions and branchstate.Config.
func WithDefaults(opts Options) (Options, error) {
	merged := DefaultOptions
	if err := mergo.Merge(&merged, opts, mergo.WithOverride); err != nil {
		return Options{}, err
	}
	return merged, nil
}

// Merge implements spec.md §4.9's merge(ours, theirs, strategy) dispatch.
func Merge(ctx context.Context, store storage.ObjectStorer, opts Options) (*Result, error) {
	opts, err := WithDefaults(opts)
	if err != nil {
		return nil, err
	}
	alreadyMerged, err := IsAncestor(ctx, store, opts.Theirs, opts.Ours)
	if err != nil {
		return nil, err
	}
	if alreadyMerged {
		return &Result{AlreadyUpToDate: true, Commit: opts.Ours}, nil
	}

	canFF, err := IsAncestor(ctx, store, opts.Ours, opts.Theirs)
	if err != nil {
		return nil, err
	}
	if canFF {
		return &Result{FastForward: true, Commit: opts.Theirs}, nil
	}
	if opts.Strategy == FastForwardOnly {
		return nil, fmt.Errorf("merge: %s and %s have diverged, fast-forward not possible", opts.Ours, opts.Theirs)
	}

	if opts.Strategy == Rebase {
		base, err := MergeBase(ctx, store, opts.Ours, opts.Theirs)
		if err != nil {
			return nil, err
		}
		commits, err := commitsSince(ctx, store, base, opts.Theirs)
		if err != nil {
			return nil, err
		}
		newHead, conflicts, err := RebaseCommits(ctx, store, opts.Ours, commits, opts.Author)
		if err != nil {
			return nil, err
		}
		if len(conflicts) > 0 {
			return &Result{Conflicts: conflicts}, nil
		}
		return &Result{Commit: newHead}, nil
	}

	base, err := MergeBase(ctx, store, opts.Ours, opts.Theirs)
	if err != nil {
		return nil, err
	}

	oursCommit, err := loadCommit(ctx, store, opts.Ours)
	if err != nil {
		return nil, err
	}
	theirsCommit, err := loadCommit(ctx, store, opts.Theirs)
	if err != nil {
		return nil, err
	}
	var baseTree plumbing.Hash
	if !base.IsZero() {
		baseCommit, err := loadCommit(ctx, store, base)
		if err != nil {
			return nil, err
		}
		baseTree = baseCommit.TreeHash
	}

	treeHash, conflicts, err := mergeTrees(ctx, store, baseTree, oursCommit.TreeHash, theirsCommit.TreeHash)
	if err != nil {
		return nil, err
	}
	if len(conflicts) > 0 {
		return &Result{Conflicts: conflicts}, nil
	}

	switch opts.Strategy {
	case Squash:
		commit := &object.Commit{
			TreeHash: treeHash,
			Parents:  []plumbing.Hash{opts.Ours},
			Author:   opts.Author, Committer: opts.Author,
			Message: opts.Message,
		}
		hash, err := store.Put(ctx, commit.Encode(store.HashAlgo()))
		if err != nil {
			return nil, err
		}
		return &Result{Commit: hash}, nil
	case ThreeWay:
		commit := &object.Commit{
			TreeHash: treeHash,
			Parents:  []plumbing.Hash{opts.Ours, opts.Theirs},
			Author:   opts.Author, Committer: opts.Author,
			Message: opts.Message,
		}
		hash, err := store.Put(ctx, commit.Encode(store.HashAlgo()))
		if err != nil {
			return nil, err
		}
		return &Result{Commit: hash}, nil
	default:
		return nil, fmt.Errorf("merge: unknown strategy %d", opts.Strategy)
	}
}

// CanFastForward reports whether head could be fast-forwarded to target
// (spec.md §4.10 "can_fast_forward(head, base)").
func CanFastForward(ctx context.Context, store storage.ObjectStorer, head, target plumbing.Hash) (bool, error) {
	return IsAncestor(ctx, store, head, target)
}

// mergeTrees implements spec.md §4.9's per-path three-way comparison.
func mergeTrees(ctx context.Context, store storage.ObjectStorer, baseTree, oursTree, theirsTree plumbing.Hash) (plumbing.Hash, []FileConflict, error) {
	baseEntries := map[string]object.TreeEntry{}
	oursEntries := map[string]object.TreeEntry{}
	theirsEntries := map[string]object.TreeEntry{}
	if err := flattenTree(ctx, store, baseTree, "", baseEntries); err != nil {
		return plumbing.Hash{}, nil, err
	}
	if err := flattenTree(ctx, store, oursTree, "", oursEntries); err != nil {
		return plumbing.Hash{}, nil, err
	}
	if err := flattenTree(ctx, store, theirsTree, "", theirsEntries); err != nil {
		return plumbing.Hash{}, nil, err
	}

	seen := map[string]bool{}
	var paths []string
	for p := range baseEntries {
		if !seen[p] {
			seen[p] = true
			paths = append(paths, p)
		}
	}
	for p := range oursEntries {
		if !seen[p] {
			seen[p] = true
			paths = append(paths, p)
		}
	}
	for p := range theirsEntries {
		if !seen[p] {
			seen[p] = true
			paths = append(paths, p)
		}
	}

	merged := map[string]object.TreeEntry{}
	var conflicts []FileConflict

	for _, p := range paths {
		b, hasB := baseEntries[p]
		o, hasO := oursEntries[p]
		t, hasT := theirsEntries[p]

		switch {
		case hasO && hasT && o.Hash.Equal(t.Hash) && o.Mode == t.Mode:
			// Unchanged, or the same change made on both sides.
			merged[p] = o

		case hasB && hasO && !hasT && b.Hash.Equal(o.Hash):
			// Theirs deleted it, ours left it unchanged: delete wins.

		case hasB && hasT && !hasO && b.Hash.Equal(t.Hash):
			// Ours deleted it, theirs left it unchanged: delete wins.

		case hasB && hasO && hasT && b.Hash.Equal(o.Hash):
			// Unchanged on ours, take theirs' side (add, modify, or the
			// equal-hash case already handled above).
			merged[p] = t

		case hasB && hasO && hasT && b.Hash.Equal(t.Hash):
			// Unchanged on theirs, take ours' side.
			merged[p] = o

		case !hasB && hasO && !hasT:
			merged[p] = o

		case !hasB && hasT && !hasO:
			merged[p] = t

		case !hasO && !hasT:
			// Deleted on both sides (with or without a base): nothing to do.

		case hasB && hasO && !hasT:
			conflicts = append(conflicts, modifyDeleteConflict(p, &b, &o, nil))

		case hasB && hasT && !hasO:
			conflicts = append(conflicts, modifyDeleteConflict(p, &b, nil, &t))

		case hasO && hasT:
			// Divergent modification (with or without a common base):
			// attempt a line-level three-way content merge.
			c, err := contentConflictOrMerge(ctx, store, p, baseEntryOrNil(b, hasB), o, t, merged)
			if err != nil {
				return plumbing.Hash{}, nil, err
			}
			if c != nil {
				conflicts = append(conflicts, *c)
			}

		default:
			conflicts = append(conflicts, FileConflict{Path: p, Kind: ContentConflict})
		}
	}

	if len(conflicts) > 0 {
		return plumbing.Hash{}, conflicts, nil
	}
	treeHash, err := buildTree(ctx, store, merged)
	return treeHash, nil, err
}

func baseEntryOrNil(b object.TreeEntry, has bool) *object.TreeEntry {
	if !has {
		return nil
	}
	return &b
}

func modifyDeleteConflict(p string, base, ours, theirs *object.TreeEntry) FileConflict {
	c := FileConflict{Path: p, Kind: ModifyDeleteConflict}
	if base != nil {
		c.BaseHash, c.BaseMode = &base.Hash, base.Mode
	}
	if ours != nil {
		c.OursHash, c.OursMode = &ours.Hash, ours.Mode
	}
	if theirs != nil {
		c.TheirsHash, c.TheirsMode = &theirs.Hash, theirs.Mode
	}
	return c
}

// contentConflictOrMerge attempts the line-level three-way merge for a
// path both sides touched; on success it writes the merged blob into
// merged[p] and returns nil, on conflict it returns the rendered
// FileConflict without mutating merged.
func contentConflictOrMerge(ctx context.Context, store storage.ObjectStorer, p string, base *object.TreeEntry, ours, theirs object.TreeEntry, merged map[string]object.TreeEntry) (*FileConflict, error) {
	if ours.Mode != theirs.Mode || (base != nil && ours.Mode != base.Mode) {
		return conflictEntry(p, base, &ours, &theirs), nil
	}

	oursContent, err := chunk.ReadBlob(ctx, store, ours.Hash)
	if err != nil {
		return nil, err
	}
	theirsContent, err := chunk.ReadBlob(ctx, store, theirs.Hash)
	if err != nil {
		return nil, err
	}
	var baseContent []byte
	if base != nil {
		baseContent, err = chunk.ReadBlob(ctx, store, base.Hash)
		if err != nil {
			return nil, err
		}
	}

	mergedText, conflictLines := mergeContent(string(baseContent), string(oursContent), string(theirsContent))
	if len(conflictLines) > 0 {
		fc := conflictEntry(p, base, &ours, &theirs)
		fc.Markers = renderConflictMarkers(string(baseContent), string(oursContent), string(theirsContent))
		return fc, nil
	}

	blobHash, err := store.Put(ctx, object.NewBlob(store.HashAlgo(), []byte(mergedText)))
	if err != nil {
		return nil, err
	}
	merged[p] = object.TreeEntry{Name: ours.Name, Mode: ours.Mode, Hash: blobHash}
	return nil, nil
}

func conflictEntry(p string, base *object.TreeEntry, ours, theirs *object.TreeEntry) *FileConflict {
	c := &FileConflict{Path: p, Kind: ContentConflict}
	if base != nil {
		c.BaseHash, c.BaseMode = &base.Hash, base.Mode
	}
	if ours != nil {
		c.OursHash, c.OursMode = &ours.Hash, ours.Mode
	}
	if theirs != nil {
		c.TheirsHash, c.TheirsMode = &theirs.Hash, theirs.Mode
	}
	return c
}
