package branchstate

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/wit-vcs/wit/plumbing/codec"
)

// Store persists snapshots under dir, one compressed "<sanitized>.json" per
// branch plus a "<sanitized>.history.json" ring of prior snapshots (spec.md
// §6: "branch-states/<sanitized>.json, ...history.json — compressed
// snapshots").
type Store struct {
	Dir    string
	Config Config
}

// NewStore returns a Store rooted at dir (typically <gitdir>/branch-states),
// creating it if absent. cfg's AutoSave/AutoRestore flags are used as given;
// a non-positive MaxStates falls back to DefaultConfig.MaxStates.
func NewStore(dir string, cfg Config) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	if cfg.MaxStates <= 0 {
		cfg.MaxStates = DefaultConfig.MaxStates
	}
	return &Store{Dir: dir, Config: cfg}, nil
}

var unsafeBranchChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// sanitizeBranchName maps a branch name (which may contain "/") to a safe
// single path component.
func sanitizeBranchName(branch string) string {
	return unsafeBranchChars.ReplaceAllString(branch, "_")
}

func (s *Store) latestPath(branch string) string {
	return filepath.Join(s.Dir, sanitizeBranchName(branch)+".json")
}

func (s *Store) historyPath(branch string) string {
	return filepath.Join(s.Dir, sanitizeBranchName(branch)+".history.json")
}

// Save writes snap as the latest snapshot for its branch, first pushing
// whatever was previously latest onto the bounded history ring (spec.md
// §4.11: "save(branch, staged_paths, message?) ... writes
// branch-states/<sanitized-branch>.json. A bounded history ring sits
// alongside.").
func (s *Store) Save(ctx context.Context, snap *Snapshot) error {
	if existing, err := s.readLatestRaw(snap.Branch); err == nil && existing != nil {
		if err := s.pushHistory(snap.Branch, existing); err != nil {
			return err
		}
	}
	return s.writeCompressed(s.latestPath(snap.Branch), snap)
}

// Restore decompresses and returns the latest snapshot for branch.
func (s *Store) Restore(ctx context.Context, branch string) (*Snapshot, error) {
	var snap Snapshot
	ok, err := s.readJSON(s.latestPath(branch), &snap)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("branchstate: no saved state for %q", branch)
	}
	return &snap, nil
}

// History returns the bounded ring of prior snapshots for branch, most
// recent first.
func (s *Store) History(branch string) ([]Snapshot, error) {
	var ring []Snapshot
	if _, err := s.readJSON(s.historyPath(branch), &ring); err != nil {
		return nil, err
	}
	return ring, nil
}

func (s *Store) pushHistory(branch string, latestRaw *Snapshot) error {
	var ring []Snapshot
	if _, err := s.readJSON(s.historyPath(branch), &ring); err != nil {
		return err
	}
	ring = append([]Snapshot{*latestRaw}, ring...)
	max := s.Config.MaxStates
	if max <= 0 {
		max = DefaultConfig.MaxStates
	}
	if len(ring) > max {
		ring = ring[:max]
	}
	return s.writeCompressed(s.historyPath(branch), ring)
}

func (s *Store) readLatestRaw(branch string) (*Snapshot, error) {
	var snap Snapshot
	ok, err := s.readJSON(s.latestPath(branch), &snap)
	if err != nil || !ok {
		return nil, err
	}
	return &snap, nil
}

func (s *Store) writeCompressed(path string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	compressed := codec.Compress(raw)

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, compressed, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// readJSON reads and decompresses path into v, reporting (false, nil) if
// the file doesn't exist yet.
func (s *Store) readJSON(path string, v any) (bool, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	decompressed, err := codec.Decompress(raw)
	if err != nil {
		return false, fmt.Errorf("branchstate: %s: %w", path, err)
	}
	if err := json.Unmarshal(decompressed, v); err != nil {
		return false, fmt.Errorf("branchstate: %s: %w", path, err)
	}
	return true, nil
}

// SwitchResult is what OnBranchSwitch returns (spec.md §4.11:
// "on_branch_switch(from, to, staged_paths, dirty) ->
// {saved_from, restored_to}").
type SwitchResult struct {
	SavedFrom  bool
	RestoredTo bool
}

// OnBranchSwitch performs the save-then-restore dance automatically when
// configured: if the working tree is dirty and auto-save is on, the
// outgoing branch's state is captured; if auto-restore is on and the
// incoming branch has a saved state, it is materialized onto repoRoot.
func (s *Store) OnBranchSwitch(ctx context.Context, repoRoot string, from, to string, staged []string, dirty bool, message string, files []FileSnapshot) (*SwitchResult, error) {
	result := &SwitchResult{}

	if s.Config.AutoSave && dirty && from != "" {
		snap := &Snapshot{Branch: from, Message: message, StagedPaths: staged, Files: files}
		if err := s.Save(ctx, snap); err != nil {
			return nil, err
		}
		result.SavedFrom = true
	}

	if s.Config.AutoRestore && to != "" {
		snap, err := s.Restore(ctx, to)
		if err == nil {
			if err := Materialize(repoRoot, snap); err != nil {
				return nil, err
			}
			result.RestoredTo = true
		}
	}

	return result, nil
}

// Sanitize is exported for callers (e.g. the CLI) that need to predict a
// snapshot's on-disk filename without going through Save.
func Sanitize(branch string) string { return sanitizeBranchName(branch) }
