package diff

import (
	"context"

	"github.com/wit-vcs/wit/chunk"
	"github.com/wit-vcs/wit/plumbing"
	"github.com/wit-vcs/wit/plumbing/object"
	"github.com/wit-vcs/wit/storage"
)

// ChangeType is the closed enumeration spec.md §4.10 expects per file in a
// PRAnalysis: {path, change_type, additions, deletions, old_path?}.
type ChangeType int

const (
	Added ChangeType = iota
	Modified
	Deleted
	Renamed
)

func (c ChangeType) String() string {
	switch c {
	case Added:
		return "added"
	case Modified:
		return "modified"
	case Deleted:
		return "deleted"
	case Renamed:
		return "renamed"
	default:
		return "unknown"
	}
}

// FileChange is one path's change between two trees, with the line-level
// additions/deletions counted via Lines so callers (PR analysis, conflict
// scoring) never need to re-diff the blobs themselves.
type FileChange struct {
	Path      string
	OldPath   string // set only for Renamed
	Type      ChangeType
	Additions int
	Deletions int
}

// Trees diffs oldTree against newTree and returns one FileChange per path
// that differs, with renames resolved via DetectRenames. Directories are
// flattened away — only blob-bearing paths are ever reported.
func Trees(ctx context.Context, store storage.ObjectStorer, oldTree, newTree plumbing.Hash, opts RenameOptions) ([]FileChange, error) {
	opts, err := WithDefaults(opts)
	if err != nil {
		return nil, err
	}
	oldEntries := map[string]object.TreeEntry{}
	newEntries := map[string]object.TreeEntry{}
	if !oldTree.IsZero() {
		if err := flatten(ctx, store, oldTree, "", oldEntries); err != nil {
			return nil, err
		}
	}
	if !newTree.IsZero() {
		if err := flatten(ctx, store, newTree, "", newEntries); err != nil {
			return nil, err
		}
	}

	var deletedPaths, addedPaths []string
	var changes []FileChange

	for p, oldEntry := range oldEntries {
		newEntry, stillPresent := newEntries[p]
		if !stillPresent {
			deletedPaths = append(deletedPaths, p)
			continue
		}
		if newEntry.Hash.Equal(oldEntry.Hash) && newEntry.Mode == oldEntry.Mode {
			continue
		}
		add, del, err := lineCounts(ctx, store, oldEntry.Hash, newEntry.Hash)
		if err != nil {
			return nil, err
		}
		changes = append(changes, FileChange{Path: p, Type: Modified, Additions: add, Deletions: del})
	}
	for p := range newEntries {
		if _, existed := oldEntries[p]; !existed {
			addedPaths = append(addedPaths, p)
		}
	}

	deletes := make([]FileRef, 0, len(deletedPaths))
	for _, p := range deletedPaths {
		content, _ := contentOf(ctx, store, oldEntries[p].Hash)
		deletes = append(deletes, FileRef{Path: p, Hash: oldEntries[p].Hash, Content: content})
	}
	adds := make([]FileRef, 0, len(addedPaths))
	for _, p := range addedPaths {
		content, _ := contentOf(ctx, store, newEntries[p].Hash)
		adds = append(adds, FileRef{Path: p, Hash: newEntries[p].Hash, Content: content})
	}
	renames := DetectRenames(deletes, adds, opts)

	renamedOld := map[string]bool{}
	renamedNew := map[string]bool{}
	for _, r := range renames {
		renamedOld[r.Old] = true
		renamedNew[r.New] = true
		add, del, err := lineCounts(ctx, store, oldEntries[r.Old].Hash, newEntries[r.New].Hash)
		if err != nil {
			return nil, err
		}
		changes = append(changes, FileChange{Path: r.New, OldPath: r.Old, Type: Renamed, Additions: add, Deletions: del})
	}
	for _, p := range deletedPaths {
		if renamedOld[p] {
			continue
		}
		content, err := contentOf(ctx, store, oldEntries[p].Hash)
		if err != nil {
			return nil, err
		}
		changes = append(changes, FileChange{Path: p, Type: Deleted, Deletions: countLines(string(content))})
	}
	for _, p := range addedPaths {
		if renamedNew[p] {
			continue
		}
		content, err := contentOf(ctx, store, newEntries[p].Hash)
		if err != nil {
			return nil, err
		}
		changes = append(changes, FileChange{Path: p, Type: Added, Additions: countLines(string(content))})
	}

	return changes, nil
}

func flatten(ctx context.Context, store storage.ObjectStorer, treeHash plumbing.Hash, prefix string, out map[string]object.TreeEntry) error {
	o, err := store.Get(ctx, treeHash)
	if err != nil {
		return err
	}
	tree, err := object.DecodeTree(o, store.HashAlgo())
	if err != nil {
		return err
	}
	for _, e := range tree.Entries {
		p := e.Name
		if prefix != "" {
			p = prefix + "/" + e.Name
		}
		if e.Mode == plumbing.ModeDirectory {
			if err := flatten(ctx, store, e.Hash, p, out); err != nil {
				return err
			}
			continue
		}
		out[p] = e
	}
	return nil
}

func contentOf(ctx context.Context, store storage.ObjectStorer, hash plumbing.Hash) ([]byte, error) {
	return chunk.ReadBlob(ctx, store, hash)
}

func lineCounts(ctx context.Context, store storage.ObjectStorer, oldHash, newHash plumbing.Hash) (additions, deletions int, err error) {
	oldContent, err := contentOf(ctx, store, oldHash)
	if err != nil {
		return 0, 0, err
	}
	newContent, err := contentOf(ctx, store, newHash)
	if err != nil {
		return 0, 0, err
	}
	for _, l := range Lines(string(oldContent), string(newContent)) {
		switch l.Op {
		case Add:
			additions++
		case Remove:
			deletions++
		}
	}
	return additions, deletions, nil
}

func countLines(s string) int {
	return len(splitKeepEmpty(s))
}
