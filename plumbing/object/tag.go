package object

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/wit-vcs/wit/plumbing"
)

// Tag is an annotated tag: a pointer to another object plus its own author
// and message (spec.md §3).
type Tag struct {
	Hash       plumbing.Hash
	Name       string
	Target     plumbing.Hash
	TargetType plumbing.ObjectType
	Tagger     Signature
	Message    string
}

func (t *Tag) Encode(algo plumbing.HashAlgo) *plumbing.MemoryObject {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "object %s\n", t.Target.String())
	fmt.Fprintf(&buf, "type %s\n", t.TargetType)
	fmt.Fprintf(&buf, "tag %s\n", t.Name)
	fmt.Fprintf(&buf, "tagger %s\n", t.Tagger.Encode())
	buf.WriteByte('\n')
	buf.WriteString(t.Message)

	o := plumbing.NewMemoryObject(algo)
	o.SetType(plumbing.TagObject)
	o.SetSize(int64(buf.Len()))
	w, _ := o.Writer()
	_, _ = w.Write(buf.Bytes())
	_ = w.Close()
	return o
}

func DecodeTag(o plumbing.EncodedObject) (*Tag, error) {
	if o.Type() != plumbing.TagObject {
		return nil, plumbing.ErrInvalidType
	}
	t := &Tag{Hash: o.Hash()}

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
				return nil, fmt.Errorf("%w: malformed tag header %q", plumbing.ErrObjectCorrupt, trimmed)
			}
			switch key {
			case "object":
				h, err := plumbing.NewHash(val)
				if err != nil {
					return nil, fmt.Errorf("%w: bad object hash: %v", plumbing.ErrObjectCorrupt, err)
				}
				t.Target = h
			case "type":
				ot, err := plumbing.ParseObjectType(val)
				if err != nil {
					return nil, err
				}
				t.TargetType = ot
			case "tag":
				t.Name = val
			case "tagger":
				t.Tagger.Decode([]byte(val))
			}
		}

		if err == io.EOF {
			break
		}
	}
	t.Message = message.String()
	return t, nil
}
