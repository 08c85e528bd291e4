// Package repository wires the object store, reference store, and index
// into the repository lifecycle and the C8 commit/checkout operations
// (spec.md §4.8, §6 "Repository lifecycle").
package repository

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/wit-vcs/wit/index"
	"github.com/wit-vcs/wit/plumbing"
	"github.com/wit-vcs/wit/refs"
	"github.com/wit-vcs/wit/storage"
	"github.com/wit-vcs/wit/storage/filesystem"
)

// DotDir is the name of the engine's metadata directory within a working
// tree, the working-tree analogue of Git's ".git".
const DotDir = ".wit"

// Repository is an opened, on-disk repository: a working tree plus its
// metadata directory.
type Repository struct {
	WorkTree string
	GitDir   string

	Algo  plumbing.HashAlgo
	Store storage.ObjectStorer
	Refs  *refs.Store
	Index *index.Index
}

// Init creates a new repository at path for the given hash algorithm,
// writing the on-disk layout spec.md §6 describes and pointing HEAD at an
// as-yet-unborn refs/heads/main.
func Init(path string, algo plumbing.HashAlgo) (*Repository, error) {
	gitDir := filepath.Join(path, DotDir)
	if _, err := os.Stat(gitDir); err == nil {
		return nil, fmt.Errorf("%w: repository already initialized at %s", plumbing.ErrAlreadyExists, gitDir)
	}

	for _, dir := range []string{"objects", "refs/heads", "refs/tags", "logs", "hooks", "chunks", "manifests", "branch-states"} {
		if err := os.MkdirAll(filepath.Join(gitDir, dir), 0o755); err != nil {
			return nil, err
		}
	}
	if err := writeConfig(gitDir, Config{HashAlgo: algo}); err != nil {
		return nil, err
	}

	store := filesystem.NewStorage(filepath.Join(gitDir, "objects"), algo)
	r := &Repository{
		WorkTree: path,
		GitDir:   gitDir,
		Algo:     algo,
		Store:    store,
		Refs:     refs.NewStore(gitDir, algo),
		Index:    index.New(filepath.Join(gitDir, "index"), store),
	}

	if err := r.Refs.SetHeadSymbolic(refs.BranchRef("main")); err != nil {
		return nil, err
	}
	return r, nil
}

// Open opens an existing repository at path, auto-detecting its hash
// algorithm from the on-disk config (a SUPPLEMENTED FEATURE: the caller no
// longer has to remember and re-pass the algorithm chosen at Init).
func Open(path string) (*Repository, error) {
	gitDir := filepath.Join(path, DotDir)
	cfg, err := readConfig(gitDir)
	if err != nil {
		return nil, err
	}

	store := filesystem.NewStorage(filepath.Join(gitDir, "objects"), cfg.HashAlgo)
	r := &Repository{
		WorkTree: path,
		GitDir:   gitDir,
		Algo:     cfg.HashAlgo,
		Store:    store,
		Refs:     refs.NewStore(gitDir, cfg.HashAlgo),
		Index:    index.New(filepath.Join(gitDir, "index"), store),
	}
	if err := r.Index.Load(); err != nil {
		return nil, err
	}
	return r, nil
}

// Find walks upward from cwd looking for a DotDir, the way the teacher's
// own repository discovery climbs parent directories looking for ".git".
func Find(cwd string) (*Repository, error) {
	dir, err := filepath.Abs(cwd)
	if err != nil {
		return nil, err
	}
	for {
		if info, err := os.Stat(filepath.Join(dir, DotDir)); err == nil && info.IsDir() {
			return Open(dir)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, fmt.Errorf("%w: no %s directory found above %s", plumbing.ErrRefNotFound, DotDir, cwd)
		}
		dir = parent
	}
}
