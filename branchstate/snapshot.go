// Package branchstate implements C11, per-branch working-tree snapshots:
// save/restore of uncommitted work across branch switches, backed by a
// bounded history ring (spec.md §4.11).
package branchstate

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"dario.cat/mergo"

	"github.com/wit-vcs/wit/index"
	"github.com/wit-vcs/wit/plumbing"
	"github.com/wit-vcs/wit/worktree"
)

// FileSnapshot is one captured file's bytes, mode, and mtime.
type FileSnapshot struct {
	Path    string
	Mode    plumbing.FileMode
	Mtime   time.Time
	Content []byte
}

// Snapshot is the full captured state of one branch's working tree at the
// moment of save (spec.md §4.11: "captures file bytes/mode/mtime").
type Snapshot struct {
	Branch      string
	Message     string
	CreatedAt   time.Time
	StagedPaths []string
	Files       []FileSnapshot
}

// Config is the closed-enumeration branch-state config spec.md §9 lists:
// "{auto_save, auto_restore, max_states}".
type Config struct {
	AutoSave    bool
	AutoRestore bool
	MaxStates   int
}

// DefaultConfig auto-saves and auto-restores, keeping the 5 most recent
// snapshots per branch (spec.md §4.11: "a bounded history ring").
var DefaultConfig = Config{AutoSave: true, AutoRestore: true, MaxStates: 5}

// ConfigWithDefaults overlays a caller-supplied partial Config (e.g. just a
// custom MaxStates) over DefaultConfig.
func ConfigWithDefaults(cfg Config) (Config, error) {
	merged := DefaultConfig
	if err := mergo.Merge(&merged, cfg, mergo.WithOverride); err != nil {
		return Config{}, err
	}
	return merged, nil
}

// CaptureWorkingTree walks repoRoot (honoring ignore rules via
// worktree.Walk) and reads the bytes, mode, and mtime of every modified or
// untracked path, skipping directories and already-deleted tracked paths.
func CaptureWorkingTree(ctx context.Context, repoRoot string, ix *index.Index) ([]FileSnapshot, error) {
	entries, err := worktree.Walk(ctx, repoRoot, ix)
	if err != nil {
		return nil, err
	}

	var out []FileSnapshot
	for _, e := range entries {
		if e.IsDir || e.Status == worktree.Deleted || e.Status == worktree.Unchanged {
			continue
		}
		full := filepath.Join(repoRoot, filepath.FromSlash(e.Path))
		info, err := os.Lstat(full)
		if err != nil {
			return nil, fmt.Errorf("branchstate capture %q: %w", e.Path, err)
		}

		mode := plumbing.ModeRegular
		var content []byte
		if info.Mode()&os.ModeSymlink != 0 {
			mode = plumbing.ModeSymlink
			target, err := os.Readlink(full)
			if err != nil {
				return nil, fmt.Errorf("branchstate capture %q: %w", e.Path, err)
			}
			content = []byte(target)
		} else {
			if info.Mode()&0o111 != 0 {
				mode = plumbing.ModeExecutable
			}
			content, err = os.ReadFile(full)
			if err != nil {
				return nil, fmt.Errorf("branchstate capture %q: %w", e.Path, err)
			}
		}

		out = append(out, FileSnapshot{Path: e.Path, Mode: mode, Mtime: info.ModTime(), Content: content})
	}
	return out, nil
}

// Materialize writes every file in the snapshot back onto repoRoot,
// restoring its mode and mtime (spec.md §4.11: "restore(branch) ...
// materializes the snapshot").
func Materialize(repoRoot string, snap *Snapshot) error {
	for _, f := range snap.Files {
		full := filepath.Join(repoRoot, filepath.FromSlash(f.Path))
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			return err
		}
		if f.Mode == plumbing.ModeSymlink {
			os.Remove(full)
			if err := os.Symlink(string(f.Content), full); err != nil {
				return err
			}
			continue
		}
		perm := os.FileMode(0o644)
		if f.Mode == plumbing.ModeExecutable {
			perm = 0o755
		}
		if err := os.WriteFile(full, f.Content, perm); err != nil {
			return err
		}
		if !f.Mtime.IsZero() {
			_ = os.Chtimes(full, f.Mtime, f.Mtime)
		}
	}
	return nil
}
