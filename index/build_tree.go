package index

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/wit-vcs/wit/plumbing"
	"github.com/wit-vcs/wit/plumbing/object"
	"github.com/wit-vcs/wit/storage"
)

// dirNode accumulates the files and subdirectories staged under one
// directory path while BuildTree walks the index bottom-up.
type dirNode struct {
	files map[string]Entry
	dirs  map[string]*dirNode
}

func newDirNode() *dirNode {
	return &dirNode{files: map[string]Entry{}, dirs: map[string]*dirNode{}}
}

// BuildTree writes one tree object per directory implied by the index's
// stage-0 entries and returns the hash of the root tree (spec.md §4.5: the
// index is the sole input to tree construction at commit time).
//
// A conflicted index (any entry above StageNormal) cannot be committed; the
// caller must resolve conflicts first.
func (ix *Index) BuildTree(ctx context.Context, store storage.ObjectStorer) (plumbing.Hash, error) {
	root := newDirNode()
	for _, e := range ix.GetAll() {
		if e.Stage != StageNormal {
			return plumbing.Hash{}, fmt.Errorf("build tree: unresolved conflict at %q", e.Path)
		}
		segs := strings.Split(e.Path, "/")
		node := root
		for _, d := range segs[:len(segs)-1] {
			child, ok := node.dirs[d]
			if !ok {
				child = newDirNode()
				node.dirs[d] = child
			}
			node = child
		}
		node.files[segs[len(segs)-1]] = e
	}
	return writeDirNode(ctx, store, root)
}

func writeDirNode(ctx context.Context, store storage.ObjectStorer, node *dirNode) (plumbing.Hash, error) {
	algo := store.HashAlgo()
	var entries []object.TreeEntry

	for name, e := range node.files {
		entries = append(entries, object.TreeEntry{Name: name, Mode: e.Mode, Hash: e.Hash})
	}
	childNames := make([]string, 0, len(node.dirs))
	for name := range node.dirs {
		childNames = append(childNames, name)
	}
	sort.Strings(childNames)
	for _, name := range childNames {
		hash, err := writeDirNode(ctx, store, node.dirs[name])
		if err != nil {
			return plumbing.Hash{}, err
		}
		entries = append(entries, object.TreeEntry{Name: name, Mode: plumbing.ModeDirectory, Hash: hash})
	}

	tree, err := object.NewTree(entries)
	if err != nil {
		return plumbing.Hash{}, err
	}
	return store.Put(ctx, tree.Encode(algo))
}
