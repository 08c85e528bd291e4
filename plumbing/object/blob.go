package object

import (
	"io"

	"github.com/wit-vcs/wit/plumbing"
)

// Blob is an opaque byte string (spec.md §3). It carries no structure of
// its own; the tree entry that references it supplies the mode and name.
type Blob struct {
	Hash plumbing.Hash
	Size int64

	obj plumbing.EncodedObject
}

// DecodeBlob wraps an already-read EncodedObject as a Blob without copying
// its payload; Reader() streams lazily from the underlying object.
func DecodeBlob(o plumbing.EncodedObject) (*Blob, error) {
	if o.Type() != plumbing.BlobObject {
		return nil, plumbing.ErrInvalidType
	}
	return &Blob{Hash: o.Hash(), Size: o.Size(), obj: o}, nil
}

// Reader streams the blob's content.
func (b *Blob) Reader() (io.ReadCloser, error) { return b.obj.Reader() }

// NewBlob builds a MemoryObject ready to be written to a store.
func NewBlob(algo plumbing.HashAlgo, content []byte) *plumbing.MemoryObject {
	o := plumbing.NewMemoryObject(algo)
	o.SetType(plumbing.BlobObject)
	o.SetSize(int64(len(content)))
	w, _ := o.Writer()
	_, _ = w.Write(content)
	_ = w.Close()
	return o
}
