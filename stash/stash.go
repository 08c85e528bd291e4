// Package stash implements C14: a named ordered stack of working-tree
// snapshots. save captures modified, staged, untracked, and deleted files
// then resets the working tree to HEAD; apply/pop/drop/clear/show/list
// complete the interface (spec.md §4.14).
package stash

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/wit-vcs/wit/branchstate"
	"github.com/wit-vcs/wit/chunk"
	"github.com/wit-vcs/wit/index"
	"github.com/wit-vcs/wit/plumbing"
	"github.com/wit-vcs/wit/plumbing/codec"
	"github.com/wit-vcs/wit/storage"
	"github.com/wit-vcs/wit/worktree"
)

// Entry is one stashed working-tree state.
type Entry struct {
	Message     string                     `json:"message"`
	CreatedAt   time.Time                  `json:"created_at"`
	StagedPaths []string                   `json:"staged_paths"`
	Files       []branchstate.FileSnapshot `json:"files"`
}

// Stack persists the ordered stash entries for one repository as a single
// compressed JSON document, newest entry first.
type Stack struct {
	path string
}

// Open returns a Stack backed by path (typically <gitdir>/stash), creating
// its parent directory if needed. The file itself is created lazily on
// first Save.
func Open(path string) (*Stack, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return &Stack{path: path}, nil
}

// List returns every stashed entry, newest (index 0) first.
func (s *Stack) List() ([]Entry, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	decompressed, err := codec.Decompress(raw)
	if err != nil {
		return nil, err
	}
	var entries []Entry
	if err := json.Unmarshal(decompressed, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// Show returns the entry at index without modifying the stack.
func (s *Stack) Show(index int) (Entry, error) {
	entries, err := s.List()
	if err != nil {
		return Entry{}, err
	}
	if index < 0 || index >= len(entries) {
		return Entry{}, plumbing.ErrRefNotFound
	}
	return entries[index], nil
}

// Clear empties the stack.
func (s *Stack) Clear() error {
	return s.write(nil)
}

// Drop removes the entry at index without applying it.
func (s *Stack) Drop(index int) error {
	entries, err := s.List()
	if err != nil {
		return err
	}
	if index < 0 || index >= len(entries) {
		return plumbing.ErrRefNotFound
	}
	entries = append(entries[:index], entries[index+1:]...)
	return s.write(entries)
}

func (s *Stack) push(e Entry) error {
	entries, err := s.List()
	if err != nil {
		return err
	}
	entries = append([]Entry{e}, entries...)
	return s.write(entries)
}

func (s *Stack) write(entries []Entry) error {
	raw, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	compressed := codec.Compress(raw)
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, compressed, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

// Save captures the working tree's modified, staged, untracked, and
// deleted files as a new entry, pushes it onto the stack, then resets the
// working tree and index to headTree (spec.md §4.14: "captures ...,
// then resets the working tree to HEAD").
func Save(ctx context.Context, s *Stack, store storage.ObjectStorer, repoRoot, indexPath string, ix *index.Index, headTree plumbing.Hash, message string) (*Entry, error) {
	files, staged, err := captureDirty(ctx, store, repoRoot, ix)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, nil
	}

	entry := Entry{Message: message, CreatedAt: time.Now().UTC(), StagedPaths: staged, Files: files}
	if err := s.push(entry); err != nil {
		return nil, err
	}

	newIndex := index.New(indexPath, store)
	wanted := map[string]bool{}
	if err := resetTree(ctx, store, repoRoot, "", headTree, newIndex, wanted); err != nil {
		return nil, err
	}
	if err := removeUntracked(repoRoot, files, wanted); err != nil {
		return nil, err
	}
	if err := newIndex.Save(); err != nil {
		return nil, err
	}
	*ix = *newIndex

	return &entry, nil
}

// captureDirty walks the working tree and returns every modified,
// untracked, or deleted path as a FileSnapshot (deleted paths' content is
// read back from the object store via the index's recorded blob hash,
// since the file itself is gone from disk), plus the subset of paths that
// were staged.
func captureDirty(ctx context.Context, store storage.ObjectStorer, repoRoot string, ix *index.Index) ([]branchstate.FileSnapshot, []string, error) {
	entries, err := worktree.Walk(ctx, repoRoot, ix)
	if err != nil {
		return nil, nil, err
	}

	var files []branchstate.FileSnapshot
	var staged []string

	// branchstate.CaptureWorkingTree already handles the modified/untracked
	// half of the walk (mode/mtime detection, symlink targets); reuse it
	// rather than re-deriving that logic here, and fold in deleted paths
	// (whose content only survives in the object store) separately below.
	modifiedOrUntracked, err := branchstate.CaptureWorkingTree(ctx, repoRoot, ix)
	if err != nil {
		return nil, nil, err
	}
	files = append(files, modifiedOrUntracked...)

	for _, e := range entries {
		switch {
		case e.IsDir || e.Status == worktree.Unchanged:
			continue
		case e.Status == worktree.Deleted:
			idxEntry, ok := ix.Get(e.Path)
			if !ok {
				continue
			}
			content, err := chunk.ReadBlob(ctx, store, idxEntry.Hash)
			if err != nil {
				return nil, nil, err
			}
			files = append(files, branchstate.FileSnapshot{Path: e.Path, Mode: idxEntry.Mode, Content: content})
			staged = append(staged, e.Path)
		case e.Status == worktree.Modified:
			if _, tracked := ix.Get(e.Path); tracked {
				staged = append(staged, e.Path)
			}
		}
	}

	return files, staged, nil
}
