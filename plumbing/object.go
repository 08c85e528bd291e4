// Package plumbing implements the core vocabulary shared by every other
// package in the engine: object types, hashes, and the error values that
// flow out of the object store, the reference store, and the index.
package plumbing

import (
	"errors"
	"io"
)

// Sentinel errors returned by the object store, reference store, and index.
// Higher-level packages wrap these with fmt.Errorf("%w: ...") for context;
// callers compare with errors.Is.
var (
	ErrObjectNotFound   = errors.New("object not found")
	ErrInvalidType      = errors.New("invalid object type")
	ErrObjectCorrupt    = errors.New("object corrupt")
	ErrHashMismatch     = errors.New("object hash mismatch")
	ErrRefNotFound      = errors.New("reference not found")
	ErrRefExists        = errors.New("reference already exists")
	ErrRefMoved         = errors.New("reference moved")
	ErrInvalidRefName   = errors.New("invalid reference name")
	ErrCancelled        = errors.New("operation cancelled")
	ErrDuplicateEntry   = errors.New("duplicate tree entry")
	ErrEmptyCommit      = errors.New("nothing to commit")
	ErrDetachedHead     = errors.New("HEAD is detached")
	ErrWorkingTreeDirty = errors.New("working tree has uncommitted changes")

	// ErrInvalidArgument covers the catch-all "malformed input" category
	// (spec.md §7): a bad hash, an empty commit message, an out-of-range
	// option value — anything that isn't specifically one of the other,
	// more precise sentinels above.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrPermissionDenied is returned when an ACL decision rejects a
	// caller; the rejection reason travels alongside it via %w wrapping.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrHookFailed is returned when an abort-capable hook point (pre-*,
	// commit-msg) fails or times out; captured stderr travels alongside
	// it via %w wrapping.
	ErrHookFailed = errors.New("hook failed")
	// ErrConflict is the general Conflict category (spec.md §7) for cases
	// that aren't specifically a ref CAS mismatch (ErrRefMoved): deleting
	// the branch HEAD currently points at, for instance.
	ErrConflict = errors.New("conflict")
	// ErrAlreadyExists is the general AlreadyExists category (spec.md
	// §7): a duplicate branch/tag (alongside the more specific
	// ErrRefExists) or re-initializing an already-initialized repository.
	ErrAlreadyExists = errors.New("already exists")
)

// EncodedObject is the generic representation of any object read from or
// about to be written to the store. It is the single interface readers and
// writers of Blob/Tree/Commit/Tag operate against; nothing downstream ever
// needs a runtime type switch beyond the discriminant returned by Type().
type EncodedObject interface {
	Hash() Hash
	Type() ObjectType
	SetType(ObjectType)
	Size() int64
	SetSize(int64)
	Reader() (io.ReadCloser, error)
	Writer() (io.WriteCloser, error)
}

// ObjectType is the discriminant of the tagged sum Blob | Tree | Commit | Tag.
type ObjectType int8

const (
	InvalidObject ObjectType = iota
	CommitObject
	TreeObject
	BlobObject
	TagObject
)

func (t ObjectType) String() string {
	switch t {
	case CommitObject:
		return "commit"
	case TreeObject:
		return "tree"
	case BlobObject:
		return "blob"
	case TagObject:
		return "tag"
	default:
		return "invalid"
	}
}

// Bytes returns the header representation used when framing an object.
func (t ObjectType) Bytes() []byte { return []byte(t.String()) }

// ParseObjectType parses the header token of a framed object.
func ParseObjectType(s string) (ObjectType, error) {
	switch s {
	case "commit":
		return CommitObject, nil
	case "tree":
		return TreeObject, nil
	case "blob":
		return BlobObject, nil
	case "tag":
		return TagObject, nil
	default:
		return InvalidObject, ErrInvalidType
	}
}

// FileMode mirrors the mode values a tree entry may carry. Values match the
// octal constants used by the original Git object format so that hashes
// computed here are stable and recognizable.
type FileMode uint32

const (
	ModeRegular    FileMode = 0o100644
	ModeExecutable FileMode = 0o100755
	ModeSymlink    FileMode = 0o120000
	ModeDirectory  FileMode = 0o040000
	ModeSubmodule  FileMode = 0o160000
)

// Valid reports whether m is one of the five mode values the tree entry
// invariant in spec.md §3 allows.
func (m FileMode) Valid() bool {
	switch m {
	case ModeRegular, ModeExecutable, ModeSymlink, ModeDirectory, ModeSubmodule:
		return true
	default:
		return false
	}
}

func (m FileMode) IsDir() bool { return m == ModeDirectory }
