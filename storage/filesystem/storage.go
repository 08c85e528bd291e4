// Package filesystem implements the on-disk object store: objects live at
// objects/<first-2-hex>/<remaining-hex>, compressed framed bytes, written
// with the teacher's write-temp-then-rename discipline so a reader never
// observes a partially written object (spec.md §4.2, §6).
package filesystem

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/wit-vcs/wit/plumbing"
	"github.com/wit-vcs/wit/plumbing/codec"
	"github.com/wit-vcs/wit/storage"
)

// Storage is a directory-backed ObjectStorer rooted at <repo>/objects.
type Storage struct {
	root string
	algo plumbing.HashAlgo
}

// NewStorage returns a Storage rooted at objectsDir.
func NewStorage(objectsDir string, algo plumbing.HashAlgo) *Storage {
	return &Storage{root: objectsDir, algo: algo}
}

func (s *Storage) HashAlgo() plumbing.HashAlgo { return s.algo }

func (s *Storage) path(hash plumbing.Hash) string {
	hex := hash.String()
	return filepath.Join(s.root, hex[:2], hex[2:])
}

func (s *Storage) Put(ctx context.Context, o plumbing.EncodedObject) (plumbing.Hash, error) {
	if err := ctx.Err(); err != nil {
		return plumbing.Hash{}, err
	}
	rc, err := o.Reader()
	if err != nil {
		return plumbing.Hash{}, err
	}
	defer rc.Close()

	payload, err := io.ReadAll(rc)
	if err != nil {
		return plumbing.Hash{}, err
	}
	framed := codec.Frame(o.Type(), payload)
	hash := plumbing.HashObject(s.algo, framed)

	dst := s.path(hash)
	if _, err := os.Stat(dst); err == nil {
		return hash, nil // idempotent: already present
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return plumbing.Hash{}, fmt.Errorf("object store: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), "tmp_obj_")
	if err != nil {
		return plumbing.Hash{}, fmt.Errorf("object store: %w", err)
	}
	tmpName := tmp.Name()
	compressed := codec.Compress(framed)
	if _, err := tmp.Write(compressed); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return plumbing.Hash{}, fmt.Errorf("object store: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return plumbing.Hash{}, fmt.Errorf("object store: %w", err)
	}
	if err := os.Rename(tmpName, dst); err != nil {
		os.Remove(tmpName)
		return plumbing.Hash{}, fmt.Errorf("object store: %w", err)
	}
	return hash, nil
}

func (s *Storage) GetRaw(ctx context.Context, hash plumbing.Hash) (plumbing.ObjectType, []byte, error) {
	if err := ctx.Err(); err != nil {
		return plumbing.InvalidObject, nil, err
	}
	compressed, err := os.ReadFile(s.path(hash))
	if err != nil {
		if os.IsNotExist(err) {
			return plumbing.InvalidObject, nil, fmt.Errorf("%w: %s", plumbing.ErrObjectNotFound, hash)
		}
		return plumbing.InvalidObject, nil, fmt.Errorf("object store: %w", err)
	}
	framed, err := codec.Decompress(compressed)
	if err != nil {
		return plumbing.InvalidObject, nil, err
	}
	typ, payload, err := codec.Unframe(framed)
	if err != nil {
		return plumbing.InvalidObject, nil, err
	}
	return typ, payload, nil
}

// VerifyRaw re-hashes a stored object's framed bytes and reports a
// HashMismatch if the directory path and the recomputed hash disagree.
// It serves callers wanting per-read verification (spec.md §4.2); fsck
// re-hashes objects itself and does not call it.
func (s *Storage) VerifyRaw(ctx context.Context, hash plumbing.Hash) error {
	typ, payload, err := s.GetRaw(ctx, hash)
	if err != nil {
		return err
	}
	framed := codec.Frame(typ, payload)
	got := plumbing.HashObject(s.algo, framed)
	if !got.Equal(hash) {
		return fmt.Errorf("%w: stored at %s, recomputed %s", plumbing.ErrHashMismatch, hash, got)
	}
	return nil
}

func (s *Storage) Get(ctx context.Context, hash plumbing.Hash) (plumbing.EncodedObject, error) {
	typ, payload, err := s.GetRaw(ctx, hash)
	if err != nil {
		return nil, err
	}
	mo := plumbing.NewMemoryObject(s.algo)
	mo.SetType(typ)
	mo.SetSize(int64(len(payload)))
	w, _ := mo.Writer()
	_, _ = w.Write(payload)
	_ = w.Close()
	return mo, nil
}

func (s *Storage) Exists(ctx context.Context, hash plumbing.Hash) (bool, error) {
	_, err := os.Stat(s.path(hash))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

func (s *Storage) Delete(ctx context.Context, hash plumbing.Hash) error {
	err := os.Remove(s.path(hash))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (s *Storage) ListHashes(ctx context.Context) (storage.ObjectIter, error) {
	var hashes []plumbing.Hash
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return &hashIter{}, nil
		}
		return nil, err
	}
	for _, dir := range entries {
		if !dir.IsDir() || len(dir.Name()) != 2 {
			continue
		}
		sub, err := os.ReadDir(filepath.Join(s.root, dir.Name()))
		if err != nil {
			return nil, err
		}
		for _, f := range sub {
			if f.IsDir() {
				continue
			}
			h, err := plumbing.NewHash(dir.Name() + f.Name())
			if err != nil {
				continue
			}
			hashes = append(hashes, h)
		}
	}
	return &hashIter{hashes: hashes}, nil
}

type hashIter struct {
	hashes []plumbing.Hash
	pos    int
}

func (it *hashIter) Next() (plumbing.Hash, bool) {
	if it.pos >= len(it.hashes) {
		return plumbing.Hash{}, false
	}
	h := it.hashes[it.pos]
	it.pos++
	return h, true
}

func (it *hashIter) Close() { it.pos = len(it.hashes) }
