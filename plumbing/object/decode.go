package object

import "github.com/wit-vcs/wit/plumbing"

// Decode dispatches on o.Type() and returns the concrete *Blob, *Tree,
// *Commit, or *Tag. This is the single exhaustive decode table readers use;
// nothing downstream needs a further runtime type test.
func Decode(o plumbing.EncodedObject, algo plumbing.HashAlgo) (any, error) {
	switch o.Type() {
	case plumbing.BlobObject:
		return DecodeBlob(o)
	case plumbing.TreeObject:
		return DecodeTree(o, algo)
	case plumbing.CommitObject:
		return DecodeCommit(o, algo)
	case plumbing.TagObject:
		return DecodeTag(o)
	default:
		return nil, plumbing.ErrInvalidType
	}
}
