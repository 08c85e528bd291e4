package plumbing

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"sort"

	"github.com/pjbgf/sha1cd"
)

// HashAlgo names the digest algorithm a repository was created with. It is
// fixed at init() time and recorded on disk; every Hash produced by that
// repository carries bytes of the matching length.
type HashAlgo uint8

const (
	// SHA1 is the default algorithm: 20 bytes, 40 hex characters, computed
	// with a collision-detecting implementation so poisoned repositories
	// are surfaced instead of silently accepted.
	SHA1 HashAlgo = iota
	// SHA256 is the 32-byte, 64 hex character alternative mode.
	SHA256
)

func (a HashAlgo) String() string {
	if a == SHA256 {
		return "sha256"
	}
	return "sha1"
}

// Size returns the digest length in bytes for the algorithm.
func (a HashAlgo) Size() int {
	if a == SHA256 {
		return sha256.Size
	}
	return sha1cd.Size
}

// ParseHashAlgo maps a recorded repository config string back to a HashAlgo.
func ParseHashAlgo(s string) (HashAlgo, error) {
	switch s {
	case "", "sha1":
		return SHA1, nil
	case "sha256":
		return SHA256, nil
	default:
		return SHA1, fmt.Errorf("%w: unknown hash algorithm %q", ErrInvalidType, s)
	}
}

// Hash is the hex-decoded digest of a framed object (or, for a tag/commit
// field, of another object). Its length is determined by the algorithm the
// owning repository was created with, so Hash deliberately does not expose
// a fixed-size array: a SHA-1 repository's hashes are 20 bytes, a SHA-256
// repository's are 32.
type Hash struct {
	algo HashAlgo
	b    []byte
}

// ZeroHash returns the all-zero hash for algo, used to denote "absence" in
// reflog lines and ref deletions.
func ZeroHash(algo HashAlgo) Hash {
	return Hash{algo: algo, b: make([]byte, algo.Size())}
}

// NewHash decodes a hex string into a Hash. The algorithm is inferred from
// the string length; invalid input produces the zero-value Hash and an
// error rather than panicking.
func NewHash(s string) (Hash, error) {
	var algo HashAlgo
	switch len(s) {
	case sha1cd.Size * 2:
		algo = SHA1
	case sha256.Size * 2:
		algo = SHA256
	default:
		return Hash{}, fmt.Errorf("%w: hash %q has invalid length", ErrInvalidType, s)
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return Hash{}, fmt.Errorf("%w: %v", ErrInvalidType, err)
	}
	return Hash{algo: algo, b: b}, nil
}

// NewHashFromBytes wraps raw digest bytes as a Hash of the given algorithm.
// The caller is responsible for len(b) matching algo.Size(); this is used
// by decoders reading a fixed-width hash field out of a framed object.
func NewHashFromBytes(algo HashAlgo, b []byte) Hash {
	cp := make([]byte, len(b))
	copy(cp, b)
	return Hash{algo: algo, b: cp}
}

// MustHash is NewHash for callers holding a compile-time-known-valid string
// (tests, fixtures). It panics on invalid input.
func MustHash(s string) Hash {
	h, err := NewHash(s)
	if err != nil {
		panic(err)
	}
	return h
}

// Algo returns the hash algorithm that produced h.
func (h Hash) Algo() HashAlgo { return h.algo }

// IsZero reports whether h is the absence sentinel for its algorithm.
func (h Hash) IsZero() bool {
	if len(h.b) == 0 {
		return true
	}
	for _, c := range h.b {
		if c != 0 {
			return false
		}
	}
	return true
}

// Bytes returns the raw digest bytes. Callers must not mutate the result.
func (h Hash) Bytes() []byte { return h.b }

// String returns the lowercase hex representation.
func (h Hash) String() string {
	if len(h.b) == 0 {
		return ""
	}
	return hex.EncodeToString(h.b)
}

// Compare orders two hashes byte-wise (bytes.Compare). It does not check
// that both hashes were produced by the same algorithm.
func (h Hash) Compare(o Hash) int {
	return bytes.Compare(h.b, o.b)
}

// Equal reports byte-for-byte equality.
func (h Hash) Equal(o Hash) bool { return bytes.Equal(h.b, o.b) }

// IsHash reports whether s decodes to a valid hash under any supported
// algorithm's hex length.
func IsHash(s string) bool {
	switch len(s) {
	case sha1cd.Size * 2, sha256.Size * 2:
		_, err := hex.DecodeString(s)
		return err == nil
	default:
		return false
	}
}

// HashSlice attaches sort.Interface to []Hash for deterministic ordering
// (tree entry sort, reachability set output).
type HashSlice []Hash

func (s HashSlice) Len() int           { return len(s) }
func (s HashSlice) Less(i, j int) bool { return s[i].Compare(s[j]) < 0 }
func (s HashSlice) Swap(i, j int)      { s[i], s[j] = s[j], s[i] }

// SortHashes sorts a slice of Hash in increasing byte order.
func SortHashes(hs []Hash) { sort.Sort(HashSlice(hs)) }

// Hasher wraps the algorithm-appropriate hash.Hash and produces a Hash once
// the framed object header and payload have been written through it.
type Hasher struct {
	algo HashAlgo
	h    hash.Hash
}

// NewHasher returns a Hasher for algo, reset and ready to accept framed
// bytes via Write.
func NewHasher(algo HashAlgo) *Hasher {
	var h hash.Hash
	if algo == SHA256 {
		h = sha256.New()
	} else {
		h = sha1cd.New()
	}
	return &Hasher{algo: algo, h: h}
}

func (hh *Hasher) Write(p []byte) (int, error) { return hh.h.Write(p) }

// Sum finalizes the digest into a Hash without resetting the hasher.
func (hh *Hasher) Sum() Hash {
	return Hash{algo: hh.algo, b: hh.h.Sum(nil)}
}

// HashObject computes the content hash of a single framed object in one
// call, for callers that already hold the full framed byte slice.
func HashObject(algo HashAlgo, framed []byte) Hash {
	h := NewHasher(algo)
	_, _ = h.Write(framed)
	return h.Sum()
}
