package plumbing

import (
	"bytes"
	"io"
	"strconv"
)

// MemoryObject is an EncodedObject held entirely in memory: the scratch
// representation every writer (index tree-builder, commit, merge) fills in
// before handing it to an object store's Put. Its Hash is computed lazily
// from the declared type, size, and accumulated bytes, matching the
// teacher's plumbing.MemoryObject.
type MemoryObject struct {
	typ  ObjectType
	size int64
	algo HashAlgo
	buf  bytes.Buffer
	hash *Hash
}

// NewMemoryObject returns an empty MemoryObject that will hash itself using
// algo once filled.
func NewMemoryObject(algo HashAlgo) *MemoryObject {
	return &MemoryObject{algo: algo}
}

func (o *MemoryObject) Type() ObjectType      { return o.typ }
func (o *MemoryObject) SetType(t ObjectType)  { o.typ = t; o.hash = nil }
func (o *MemoryObject) Size() int64           { return o.size }
func (o *MemoryObject) SetSize(s int64)       { o.size = s }

// Hash computes (and caches) the object's hash. It returns the zero hash if
// the declared size and the accumulated bytes disagree, mirroring the
// teacher's "hash not filled" behavior.
func (o *MemoryObject) Hash() Hash {
	if o.hash != nil {
		return *o.hash
	}
	if int64(o.buf.Len()) != o.size {
		return ZeroHash(o.algo)
	}
	// Same "<type> <size>\0<payload>" framing as codec.Frame, built here
	// because package codec imports plumbing.
	framed := append([]byte(o.typ.String()+" "+strconv.Itoa(o.buf.Len())+"\x00"), o.buf.Bytes()...)
	h := HashObject(o.algo, framed)
	o.hash = &h
	return h
}

func (o *MemoryObject) Reader() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(o.buf.Bytes())), nil
}

func (o *MemoryObject) Writer() (io.WriteCloser, error) {
	return nopWriteCloser{o}, nil
}

func (o *MemoryObject) Write(p []byte) (int, error) {
	n, err := o.buf.Write(p)
	o.size = int64(o.buf.Len())
	o.hash = nil
	return n, err
}

// Bytes returns the accumulated payload.
func (o *MemoryObject) Bytes() []byte { return o.buf.Bytes() }

type nopWriteCloser struct{ w io.Writer }

func (n nopWriteCloser) Write(p []byte) (int, error) { return n.w.Write(p) }
func (n nopWriteCloser) Close() error                { return nil }
