package object

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/wit-vcs/wit/plumbing"
)

// Commit is an immutable point in history: a tree, zero or more parents,
// author/committer signatures, and a message (spec.md §3). Zero parents
// means a root commit; one, a normal commit; two or more, a merge.
type Commit struct {
	Hash      plumbing.Hash
	TreeHash  plumbing.Hash
	Parents   []plumbing.Hash
	Author    Signature
	Committer Signature
	Message   string
}

// NumParents reports whether this is a root (0), normal (1), or merge (2+)
// commit.
func (c *Commit) NumParents() int { return len(c.Parents) }

// IsMerge reports whether the commit has two or more parents.
func (c *Commit) IsMerge() bool { return len(c.Parents) >= 2 }

// Encode renders the line-oriented textual form described in spec.md §3:
// "tree", "parent*", "author", "committer" headers, a blank line, then the
// message.
func (c *Commit) Encode(algo plumbing.HashAlgo) *plumbing.MemoryObject {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "tree %s\n", c.TreeHash.String())
	for _, p := range c.Parents {
		fmt.Fprintf(&buf, "parent %s\n", p.String())
	}
	fmt.Fprintf(&buf, "author %s\n", c.Author.Encode())
	fmt.Fprintf(&buf, "committer %s\n", c.Committer.Encode())
	buf.WriteByte('\n')
	buf.WriteString(c.Message)

	o := plumbing.NewMemoryObject(algo)
	o.SetType(plumbing.CommitObject)
	o.SetSize(int64(buf.Len()))
	w, _ := o.Writer()
	_, _ = w.Write(buf.Bytes())
	_ = w.Close()
	return o
}

// DecodeCommit parses a commit object's textual payload.
func DecodeCommit(o plumbing.EncodedObject, algo plumbing.HashAlgo) (*Commit, error) {
	if o.Type() != plumbing.CommitObject {
		return nil, plumbing.ErrInvalidType
	}
	c := &Commit{Hash: o.Hash()}

	rc, err := o.Reader()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	r := bufio.NewReader(rc)

	var message strings.Builder
	inMessage := false
	for {
		line, err := r.ReadString('\n')
		if err != nil && err != io.EOF {
			return nil, fmt.Errorf("%w: %v", plumbing.ErrObjectCorrupt, err)
		}
		hasNewline := strings.HasSuffix(line, "\n")
		trimmed := strings.TrimSuffix(line, "\n")

		if inMessage {
			message.WriteString(trimmed)
			if hasNewline {
				message.WriteByte('\n')
			}
		} else if trimmed == "" {
			inMessage = true
		} else {
			key, val, ok := strings.Cut(trimmed, " ")
			if !ok {
				return nil, fmt.Errorf("%w: malformed commit header %q", plumbing.ErrObjectCorrupt, trimmed)
			}
			switch key {
			case "tree":
				h, err := plumbing.NewHash(val)
				if err != nil {
					return nil, fmt.Errorf("%w: bad tree hash: %v", plumbing.ErrObjectCorrupt, err)
				}
				c.TreeHash = h
			case "parent":
				h, err := plumbing.NewHash(val)
				if err != nil {
					return nil, fmt.Errorf("%w: bad parent hash: %v", plumbing.ErrObjectCorrupt, err)
				}
				c.Parents = append(c.Parents, h)
			case "author":
				c.Author.Decode([]byte(val))
			case "committer":
				c.Committer.Decode([]byte(val))
			}
		}

		if err == io.EOF {
			break
		}
	}
	c.Message = message.String()
	return c, nil
}
