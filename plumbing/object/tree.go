package object

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/wit-vcs/wit/plumbing"
)

// TreeEntry is one (mode, name, hash) triple (spec.md §3).
type TreeEntry struct {
	Name string
	Mode plumbing.FileMode
	Hash plumbing.Hash
}

// Tree is an ordered set of entries. The ordering and the no-duplicate-name
// invariant are enforced by NewTree/Encode, never left to the caller.
type Tree struct {
	Hash    plumbing.Hash
	Entries []TreeEntry
}

// sortName returns the key used to order tree entries: directory names sort
// as if they ended in "/", matching Git's tree ordering so that e.g. "lib"
// (a file) sorts before "lib-tools" but "lib/" (a directory) sorts after it.
func sortName(e TreeEntry) string {
	if e.Mode.IsDir() {
		return e.Name + "/"
	}
	return e.Name
}

// NewTree validates and sorts entries, rejecting duplicate names and
// invalid modes, then returns a Tree ready for Encode.
func NewTree(entries []TreeEntry) (*Tree, error) {
	out := make([]TreeEntry, len(entries))
	copy(out, entries)
	sort.Slice(out, func(i, j int) bool { return sortName(out[i]) < sortName(out[j]) })

	for i, e := range out {
		if !e.Mode.Valid() {
			return nil, fmt.Errorf("%w: invalid mode %o for %q", plumbing.ErrInvalidType, e.Mode, e.Name)
		}
		if i > 0 && out[i-1].Name == e.Name {
			return nil, fmt.Errorf("%w: %q", plumbing.ErrDuplicateEntry, e.Name)
		}
	}
	return &Tree{Entries: out}, nil
}

// Encode builds the MemoryObject for this tree using algo's hash length for
// each entry.
func (t *Tree) Encode(algo plumbing.HashAlgo) *plumbing.MemoryObject {
	var buf bytes.Buffer
	for _, e := range t.Entries {
		fmt.Fprintf(&buf, "%o %s\x00", e.Mode, e.Name)
		buf.Write(e.Hash.Bytes())
	}

	o := plumbing.NewMemoryObject(algo)
	o.SetType(plumbing.TreeObject)
	o.SetSize(int64(buf.Len()))
	w, _ := o.Writer()
	_, _ = w.Write(buf.Bytes())
	_ = w.Close()
	return o
}

// DecodeTree parses a tree object's payload. algo determines the byte
// length of each entry's hash field.
func DecodeTree(o plumbing.EncodedObject, algo plumbing.HashAlgo) (*Tree, error) {
	if o.Type() != plumbing.TreeObject {
		return nil, plumbing.ErrInvalidType
	}
	t := &Tree{Hash: o.Hash()}
	if o.Size() == 0 {
		return t, nil
	}

	rc, err := o.Reader()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	r := bufio.NewReader(rc)

	hashLen := algo.Size()
	for {
		modeStr, err := r.ReadString(' ')
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", plumbing.ErrObjectCorrupt, err)
		}
		modeInt, err := strconv.ParseUint(modeStr[:len(modeStr)-1], 8, 32)
		if err != nil {
			return nil, fmt.Errorf("%w: bad mode field: %v", plumbing.ErrObjectCorrupt, err)
		}

		name, err := r.ReadString(0)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", plumbing.ErrObjectCorrupt, err)
		}
		name = name[:len(name)-1]

		hashBytes := make([]byte, hashLen)
		if _, err := io.ReadFull(r, hashBytes); err != nil {
			return nil, fmt.Errorf("%w: truncated entry hash: %v", plumbing.ErrObjectCorrupt, err)
		}

		t.Entries = append(t.Entries, TreeEntry{
			Name: name,
			Mode: plumbing.FileMode(modeInt),
			Hash: plumbing.NewHashFromBytes(algo, hashBytes),
		})
	}
	return t, nil
}

// Find returns the entry with the given name, if present.
func (t *Tree) Find(name string) (TreeEntry, bool) {
	for _, e := range t.Entries {
		if e.Name == name {
			return e, true
		}
	}
	return TreeEntry{}, false
}
