package merge

import (
	"context"
	"sort"
	"strings"

	"github.com/wit-vcs/wit/plumbing"
	"github.com/wit-vcs/wit/plumbing/object"
	"github.com/wit-vcs/wit/storage"
)

// flattenTree walks a tree recursively and returns every blob entry keyed by
// its full repository-relative path (directories themselves are not
// included; the per-path merge only ever needs to reason about files).
func flattenTree(ctx context.Context, store storage.ObjectStorer, treeHash plumbing.Hash, prefix string, out map[string]object.TreeEntry) error {
	if treeHash.IsZero() {
		return nil
	}
	o, err := store.Get(ctx, treeHash)
	if err != nil {
		return err
	}
	tree, err := object.DecodeTree(o, store.HashAlgo())
	if err != nil {
		return err
	}
	for _, e := range tree.Entries {
		p := e.Name
		if prefix != "" {
			p = prefix + "/" + e.Name
		}
		if e.Mode == plumbing.ModeDirectory {
			if err := flattenTree(ctx, store, e.Hash, p, out); err != nil {
				return err
			}
			continue
		}
		out[p] = e
	}
	return nil
}

// buildTree writes one tree object per directory implied by paths and
// returns the root tree's hash, mirroring index.BuildTree's bottom-up
// directory construction over an already-staged path set (this package
// builds merge results the same way the index builds commit trees).
func buildTree(ctx context.Context, store storage.ObjectStorer, paths map[string]object.TreeEntry) (plumbing.Hash, error) {
	type dirNode struct {
		files map[string]object.TreeEntry
		dirs  map[string]*dirNode
	}
	newNode := func() *dirNode { return &dirNode{files: map[string]object.TreeEntry{}, dirs: map[string]*dirNode{}} }

	root := newNode()
	for p, e := range paths {
		segs := strings.Split(p, "/")
		node := root
		for _, d := range segs[:len(segs)-1] {
			child, ok := node.dirs[d]
			if !ok {
				child = newNode()
				node.dirs[d] = child
			}
			node = child
		}
		e.Name = segs[len(segs)-1]
		node.files[e.Name] = e
	}

	var write func(n *dirNode) (plumbing.Hash, error)
	write = func(n *dirNode) (plumbing.Hash, error) {
		var entries []object.TreeEntry
		for _, e := range n.files {
			entries = append(entries, e)
		}
		names := make([]string, 0, len(n.dirs))
		for name := range n.dirs {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			hash, err := write(n.dirs[name])
			if err != nil {
				return plumbing.Hash{}, err
			}
			entries = append(entries, object.TreeEntry{Name: name, Mode: plumbing.ModeDirectory, Hash: hash})
		}
		tree, err := object.NewTree(entries)
		if err != nil {
			return plumbing.Hash{}, err
		}
		return store.Put(ctx, tree.Encode(store.HashAlgo()))
	}
	return write(root)
}
