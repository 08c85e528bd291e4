// Package memory implements an in-memory ObjectStorer. The module's tests
// use it as their object store; no non-test code in the module constructs
// one.
package memory

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/wit-vcs/wit/plumbing"
	"github.com/wit-vcs/wit/plumbing/codec"
	"github.com/wit-vcs/wit/storage"
)

// Storage is a concurrency-safe map-backed ObjectStorer.
type Storage struct {
	mu      sync.RWMutex
	algo    plumbing.HashAlgo
	objects map[plumbing.Hash]rawObject
}

type rawObject struct {
	typ     plumbing.ObjectType
	payload []byte
}

// NewStorage returns an empty store for the given hash algorithm.
func NewStorage(algo plumbing.HashAlgo) *Storage {
	return &Storage{algo: algo, objects: make(map[plumbing.Hash]rawObject)}
}

func (s *Storage) HashAlgo() plumbing.HashAlgo { return s.algo }

func (s *Storage) Put(ctx context.Context, o plumbing.EncodedObject) (plumbing.Hash, error) {
	if err := ctx.Err(); err != nil {
		return plumbing.Hash{}, err
	}
	rc, err := o.Reader()
	if err != nil {
		return plumbing.Hash{}, err
	}
	defer rc.Close()

	buf := make([]byte, o.Size())
	if o.Size() > 0 {
		if _, err := io.ReadFull(rc, buf); err != nil {
			return plumbing.Hash{}, err
		}
	}
	framed := codec.Frame(o.Type(), buf)
	hash := plumbing.HashObject(s.algo, framed)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[hash]; !ok {
		s.objects[hash] = rawObject{typ: o.Type(), payload: buf}
	}
	return hash, nil
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

func (s *Storage) GetRaw(ctx context.Context, hash plumbing.Hash) (plumbing.ObjectType, []byte, error) {
	if err := ctx.Err(); err != nil {
		return plumbing.InvalidObject, nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[hash]
	if !ok {
		return plumbing.InvalidObject, nil, fmt.Errorf("%w: %s", plumbing.ErrObjectNotFound, hash)
	}
	cp := make([]byte, len(obj.payload))
	copy(cp, obj.payload)
	return obj.typ, cp, nil
}

func (s *Storage) Exists(ctx context.Context, hash plumbing.Hash) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.objects[hash]
	return ok, nil
}

func (s *Storage) Delete(ctx context.Context, hash plumbing.Hash) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, hash)
	return nil
}

func (s *Storage) ListHashes(ctx context.Context) (storage.ObjectIter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	hashes := make([]plumbing.Hash, 0, len(s.objects))
	for h := range s.objects {
		hashes = append(hashes, h)
	}
	return &sliceIter{hashes: hashes}, nil
}

type sliceIter struct {
	hashes []plumbing.Hash
	pos    int
}

func (it *sliceIter) Next() (plumbing.Hash, bool) {
	if it.pos >= len(it.hashes) {
		return plumbing.Hash{}, false
	}
	h := it.hashes[it.pos]
	it.pos++
	return h, true
}

func (it *sliceIter) Close() { it.pos = len(it.hashes) }
