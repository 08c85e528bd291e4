// Package refs implements the C4 reference store: branches, tags, HEAD
// (symbolic or detached), and the reflog. Every mutation is a
// compare-and-set against the on-disk value of a single ref, matching the
// linearizable-transaction contract in spec.md §5.
package refs

import (
	"fmt"
	"strings"

	"github.com/wit-vcs/wit/plumbing"
)

const (
	headsPrefix  = "refs/heads/"
	tagsPrefix   = "refs/tags/"
	symrefPrefix = "ref: "
)

// Name is a fully-qualified reference name: "HEAD", "refs/heads/main", or
// "refs/tags/v1".
type Name string

const HEAD Name = "HEAD"

func BranchRef(short string) Name { return Name(headsPrefix + short) }
func TagRef(short string) Name    { return Name(tagsPrefix + short) }

// IsBranch, IsTag report the reference namespace.
func (n Name) IsBranch() bool { return strings.HasPrefix(string(n), headsPrefix) }
func (n Name) IsTag() bool    { return strings.HasPrefix(string(n), tagsPrefix) }

// Short returns the name with its refs/heads/ or refs/tags/ prefix
// stripped, or the name unchanged if it carries neither.
func (n Name) Short() string {
	s := string(n)
	s = strings.TrimPrefix(s, headsPrefix)
	s = strings.TrimPrefix(s, tagsPrefix)
	return s
}

// ValidateName enforces the ref-name invariant in spec.md §3: no control
// characters, no "..", no leading/trailing "/", no spaces, and none of the
// sequences "@{" or "//".
func ValidateName(n string) error {
	if n == "" {
		return fmt.Errorf("%w: empty name", plumbing.ErrInvalidRefName)
	}
	if strings.HasPrefix(n, "/") || strings.HasSuffix(n, "/") {
		return fmt.Errorf("%w: %q has leading or trailing slash", plumbing.ErrInvalidRefName, n)
	}
	if strings.Contains(n, "..") {
		return fmt.Errorf("%w: %q contains \"..\"", plumbing.ErrInvalidRefName, n)
	}
	if strings.Contains(n, "@{") {
		return fmt.Errorf("%w: %q contains \"@{\"", plumbing.ErrInvalidRefName, n)
	}
	if strings.Contains(n, "//") {
		return fmt.Errorf("%w: %q contains \"//\"", plumbing.ErrInvalidRefName, n)
	}
	if strings.Contains(n, " ") {
		return fmt.Errorf("%w: %q contains a space", plumbing.ErrInvalidRefName, n)
	}
	for _, r := range n {
		if r < 0x20 || r == 0x7f {
			return fmt.Errorf("%w: %q contains a control character", plumbing.ErrInvalidRefName, n)
		}
	}
	return nil
}

// Type discriminates a hash reference from a symbolic one.
type Type int8

const (
	InvalidReference Type = iota
	HashReference
	SymbolicReference
)

// Reference is either a hash reference (points at an object) or a symbolic
// reference (points at another ref's name). HEAD is the only ref in this
// engine allowed to be symbolic and point outside refs/heads (spec.md §3).
type Reference struct {
	typ    Type
	name   Name
	hash   plumbing.Hash
	target Name
}

func NewHashReference(name Name, hash plumbing.Hash) *Reference {
	return &Reference{typ: HashReference, name: name, hash: hash}
}

func NewSymbolicReference(name, target Name) *Reference {
	return &Reference{typ: SymbolicReference, name: name, target: target}
}

func (r *Reference) Type() Type     { return r.typ }
func (r *Reference) Name() Name     { return r.name }
func (r *Reference) Hash() plumbing.Hash { return r.hash }
func (r *Reference) Target() Name   { return r.target }

// Encode renders a reference's on-disk single-line content.
func (r *Reference) Encode() string {
	if r.typ == SymbolicReference {
		return symrefPrefix + string(r.target)
	}
	return r.hash.String()
}

// Decode parses a ref file's raw content for the given name, inferring
// whether it is symbolic or a hash.
func Decode(name Name, content string) (*Reference, error) {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, symrefPrefix) {
		return NewSymbolicReference(name, Name(strings.TrimPrefix(content, symrefPrefix))), nil
	}
	hash, err := plumbing.NewHash(content)
	if err != nil {
		return nil, fmt.Errorf("%w: ref %q has invalid content %q", plumbing.ErrObjectCorrupt, name, content)
	}
	return NewHashReference(name, hash), nil
}
