// Package codec implements the C1 "hash & codec" component: object framing
// and zlib-family compression. The zlib writer is pooled with sync.Pool the
// way the teacher's utils/sync package pools zlib writers, so repeated
// object writes under heavy churn (status, gc, merge-queue reassembly)
// don't thrash the allocator; Decompress creates a fresh reader per call.
package codec

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"io"
	"strconv"
	"sync"

	"github.com/wit-vcs/wit/plumbing"
)

var zlibWriterPool = sync.Pool{
	New: func() any { return zlib.NewWriter(io.Discard) },
}

// Frame builds the "<type> <size>\0<payload>" representation that every
// object variant is hashed and stored under (spec.md §3).
func Frame(t plumbing.ObjectType, payload []byte) []byte {
	header := fmt.Sprintf("%s %d\x00", t, len(payload))
	buf := make([]byte, 0, len(header)+len(payload))
	buf = append(buf, header...)
	buf = append(buf, payload...)
	return buf
}

// Unframe parses framed bytes back into a type and payload. It rejects any
// input whose declared size does not match the payload length, satisfying
// the framing invariant in spec.md §4.1.
func Unframe(framed []byte) (plumbing.ObjectType, []byte, error) {
	nul := bytes.IndexByte(framed, 0)
	if nul < 0 {
		return plumbing.InvalidObject, nil, fmt.Errorf("%w: missing header terminator", plumbing.ErrObjectCorrupt)
	}
	header := framed[:nul]
	payload := framed[nul+1:]

	sp := bytes.IndexByte(header, ' ')
	if sp < 0 {
		return plumbing.InvalidObject, nil, fmt.Errorf("%w: malformed header %q", plumbing.ErrObjectCorrupt, header)
	}
	t, err := plumbing.ParseObjectType(string(header[:sp]))
	if err != nil {
		return plumbing.InvalidObject, nil, fmt.Errorf("%w: %v", plumbing.ErrObjectCorrupt, err)
	}
	size, err := strconv.ParseInt(string(header[sp+1:]), 10, 64)
	if err != nil {
		return plumbing.InvalidObject, nil, fmt.Errorf("%w: bad size field: %v", plumbing.ErrObjectCorrupt, err)
	}
	if size != int64(len(payload)) {
		return plumbing.InvalidObject, nil, fmt.Errorf("%w: declared size %d does not match payload length %d", plumbing.ErrObjectCorrupt, size, len(payload))
	}
	return t, payload, nil
}

// Compress deflates b using zlib, for on-disk storage.
func Compress(b []byte) []byte {
	w := zlibWriterPool.Get().(*zlib.Writer)
	defer zlibWriterPool.Put(w)

	var buf bytes.Buffer
	w.Reset(&buf)
	_, _ = w.Write(b)
	_ = w.Close()
	return buf.Bytes()
}

// Decompress inflates b, returning plumbing.ErrObjectCorrupt if the stream
// is truncated or malformed.
func Decompress(b []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", plumbing.ErrObjectCorrupt, err)
	}
	defer r.Close()

	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", plumbing.ErrObjectCorrupt, err)
	}
	return out, nil
}
