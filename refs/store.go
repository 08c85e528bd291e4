package refs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/wit-vcs/wit/plumbing"
)

// Store is the on-disk reference store rooted at a repository directory
// containing HEAD, refs/heads/, refs/tags/, and logs/. Each ref update is a
// linearizable read-modify-CAS, guarded by a per-ref lock so concurrent
// operations on disjoint refs never block each other (spec.md §5 Locking).
type Store struct {
	root string
	algo plumbing.HashAlgo

	locksMu sync.Mutex
	locks   map[Name]*sync.Mutex
}

// NewStore returns a Store rooted at repoRoot.
func NewStore(repoRoot string, algo plumbing.HashAlgo) *Store {
	return &Store{root: repoRoot, algo: algo, locks: make(map[Name]*sync.Mutex)}
}

func (s *Store) lockFor(n Name) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	l, ok := s.locks[n]
	if !ok {
		l = &sync.Mutex{}
		s.locks[n] = l
	}
	return l
}

func (s *Store) refPath(n Name) string {
	if n == HEAD {
		return filepath.Join(s.root, "HEAD")
	}
	return filepath.Join(s.root, filepath.FromSlash(string(n)))
}

// Resolve follows a (possibly symbolic) reference until it reaches a hash,
// returning plumbing.ErrRefNotFound if the name does not exist.
func (s *Store) Resolve(n Name) (plumbing.Hash, error) {
	seen := map[Name]bool{}
	for {
		if seen[n] {
			return plumbing.Hash{}, fmt.Errorf("%w: symbolic reference cycle at %s", plumbing.ErrObjectCorrupt, n)
		}
		seen[n] = true

		raw, err := s.readRaw(n)
		if err != nil {
			return plumbing.Hash{}, err
		}
		ref, err := Decode(n, raw)
		if err != nil {
			return plumbing.Hash{}, err
		}
		if ref.Type() == HashReference {
			return ref.Hash(), nil
		}
		n = ref.Target()
	}
}

func (s *Store) readRaw(n Name) (string, error) {
	b, err := os.ReadFile(s.refPath(n))
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", plumbing.ErrRefNotFound, n)
		}
		return "", err
	}
	return string(b), nil
}

// Get reads a single reference without following symbolic indirection.
func (s *Store) Get(n Name) (*Reference, error) {
	raw, err := s.readRaw(n)
	if err != nil {
		return nil, err
	}
	return Decode(n, raw)
}

// CommitAuthor names the identity recorded in a reflog line; callers supply
// it (no process-global identity, per Design Notes: no shared mutable
// singletons).
type CommitAuthor struct {
	Name  string
	Email string
}

// Set performs an atomic compare-and-set of a hash reference: it writes
// newHash only if the ref's current value equals expectedOld (the zero
// hash meaning "must not currently exist"). On success it appends a
// reflog line; on CAS failure it returns plumbing.ErrRefMoved and leaves
// the reflog untouched (spec.md §4.4, §5).
func (s *Store) Set(n Name, newHash plumbing.Hash, expectedOld plumbing.Hash, author CommitAuthor, message string) error {
	if err := ValidateName(string(n)); n != HEAD && err != nil {
		return err
	}
	lock := s.lockFor(n)
	lock.Lock()
	defer lock.Unlock()

	current, err := s.Resolve(n)
	exists := err == nil
	if err != nil && !errors.Is(err, plumbing.ErrRefNotFound) {
		return err
	}
	if exists && !current.Equal(expectedOld) {
		return fmt.Errorf("%w: %s is at %s, expected %s", plumbing.ErrRefMoved, n, current, expectedOld)
	}
	if !exists && !expectedOld.IsZero() {
		return fmt.Errorf("%w: %s does not exist, expected %s", plumbing.ErrRefMoved, n, expectedOld)
	}

	if err := s.writeAtomic(n, NewHashReference(n, newHash).Encode()); err != nil {
		return err
	}

	old := expectedOld
	if !exists {
		old = plumbing.ZeroHash(s.algo)
	}
	entry := ReflogEntry{
		Old: old, New: newHash,
		AuthorName: author.Name, AuthorEmail: author.Email,
		When: time.Now(), Message: message,
	}
	return s.reflogFor(n).Append(entry)
}

// SetSymbolic writes (or rewrites) a symbolic reference, e.g. HEAD pointing
// at a branch. Symbolic updates do not go through the hash CAS path and
// append no reflog entry.
func (s *Store) SetSymbolic(n, target Name) error {
	return s.writeAtomic(n, NewSymbolicReference(n, target).Encode())
}

// writeAtomic performs the write-temp-then-rename discipline so a reader
// never observes a partially written ref file.
func (s *Store) writeAtomic(n Name, content string) error {
	path := s.refPath(n)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "tmp_ref_")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.WriteString(content + "\n"); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}

// Delete removes a reference. Deleting the branch HEAD currently points at
// is the caller's responsibility to reject (spec.md §7 Conflict variant
// "branch-delete-of-current"); Store itself only removes the file.
func (s *Store) Delete(n Name) error {
	lock := s.lockFor(n)
	lock.Lock()
	defer lock.Unlock()

	err := os.Remove(s.refPath(n))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// ListBranches returns every refs/heads/* name.
func (s *Store) ListBranches() ([]Name, error) { return s.list(headsPrefix) }

// ListTags returns every refs/tags/* name.
func (s *Store) ListTags() ([]Name, error) { return s.list(tagsPrefix) }

func (s *Store) list(prefix string) ([]Name, error) {
	dir := filepath.Join(s.root, filepath.FromSlash(prefix))
	var out []Name
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return filepath.SkipDir
			}
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		out = append(out, Name(filepath.ToSlash(rel)))
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// Head describes the current HEAD: either symbolic (pointing at a branch)
// or detached (pointing directly at a commit hash).
type Head struct {
	Symbolic bool
	Branch   Name          // valid when Symbolic
	Target   plumbing.Hash // resolved commit hash either way
}

// GetHead reports HEAD's current shape.
func (s *Store) GetHead() (Head, error) {
	ref, err := s.Get(HEAD)
	if err != nil {
		return Head{}, err
	}
	if ref.Type() == SymbolicReference {
		hash, err := s.Resolve(HEAD)
		if err != nil {
			return Head{}, err
		}
		return Head{Symbolic: true, Branch: ref.Target(), Target: hash}, nil
	}
	return Head{Symbolic: false, Target: ref.Hash()}, nil
}

// SetHeadSymbolic points HEAD at branch without touching the branch itself.
func (s *Store) SetHeadSymbolic(branch Name) error {
	return s.SetSymbolic(HEAD, branch)
}

// SetHeadDetached points HEAD directly at a commit hash.
func (s *Store) SetHeadDetached(hash plumbing.Hash) error {
	return s.writeAtomic(HEAD, hash.String())
}

// Reflog returns the append-only log for the given ref name (or HEAD).
func (s *Store) Reflog(n Name) *Reflog {
	return s.reflogFor(n)
}

func (s *Store) reflogFor(n Name) *Reflog {
	return newReflog(filepath.Join(s.root, "logs"), n, s.algo)
}

// ResolveAt resolves "ref@{N}" (n >= 0, newest first) against n's reflog.
func (s *Store) ResolveAt(n Name, index int) (plumbing.Hash, error) {
	return s.reflogFor(n).AtIndex(index)
}

// ResolveAtTime resolves "ref@{<time>}".
func (s *Store) ResolveAtTime(n Name, t time.Time) (plumbing.Hash, error) {
	return s.reflogFor(n).AtTime(t)
}

// ParseAtExpr parses the "@{...}" suffix of a ref expression, returning
// either an index-based or time-based lookup result. It accepts both
// "ref@{3}" and "ref@{2024-01-02T15:04:05Z}" forms.
func (s *Store) ParseAtExpr(n Name, expr string) (plumbing.Hash, error) {
	inner := strings.TrimSuffix(strings.TrimPrefix(expr, "@{"), "}")
	if idx, err := strconv.Atoi(inner); err == nil {
		return s.ResolveAt(n, idx)
	}
	t, err := time.Parse(time.RFC3339, inner)
	if err != nil {
		return plumbing.Hash{}, fmt.Errorf("%w: unrecognized @{...} expression %q", plumbing.ErrInvalidRefName, expr)
	}
	return s.ResolveAtTime(n, t)
}
