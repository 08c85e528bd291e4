package mergequeue

import (
	"context"
	"fmt"

	"github.com/wit-vcs/wit/merge"
	"github.com/wit-vcs/wit/plumbing"
	"github.com/wit-vcs/wit/plumbing/object"
	"github.com/wit-vcs/wit/storage"
)

// ReassemblyEntry records one commit's fate during reassembly: its original
// hash, the new hash it was rewritten to, which PR it came from, and its
// position in the final sequence (spec.md §4.10: "{original_hash, new_hash,
// pr_id, order}").
type ReassemblyEntry struct {
	PRID         string
	OriginalHash plumbing.Hash
	NewHash      plumbing.Hash
	Order        int
}

// ReassemblyResult is what Reassemble/ProcessBatch return: either a fully
// assembled Head with no failures, or a Head advanced only as far as the
// complement of FailedPRs that did succeed, alongside the list of PRs that
// could not be reassembled (spec.md §4.10: "{failed_pr, partial_reassembly}";
// §8 testable property #12: "the merged set returned is the complement that
// succeeded"). Reassemble itself only ever reports at most one failure (it
// stops at the first PR it can't place); ProcessBatch's bisection is what
// accumulates more than one.
type ReassemblyResult struct {
	Entries   []ReassemblyEntry
	Head      plumbing.Hash
	FailedPRs []string
}

// Reassemble attempts, in a scratch workspace initialized from target,
// the ordered sequence of PRs: each PR's commits are cherry-picked in
// chronological order; if any cherry-pick in a PR's chain fails, that
// PR's partial chain is abandoned in favor of a single merge commit for
// the whole PR. If even that merge conflicts, reassembly stops and
// reports the failing PR plus whatever was assembled so far.
func Reassemble(ctx context.Context, store storage.ObjectStorer, target plumbing.Hash, prs []PRInput, sig object.Signature) (*ReassemblyResult, error) {
	head := target
	var entries []ReassemblyEntry
	order := 0

	for _, pr := range prs {
		commits, err := merge.CommitsSince(ctx, store, pr.Base, pr.Head)
		if err != nil {
			return nil, err
		}

		cherryHead := head
		var prEntries []ReassemblyEntry
		failed := false
		for _, c := range commits {
			headCommit, err := merge.LoadCommit(ctx, store, cherryHead)
			if err != nil {
				return nil, err
			}
			treeHash, conflicts, err := merge.CherryPick(ctx, store, headCommit.TreeHash, c)
			if err != nil {
				return nil, err
			}
			if len(conflicts) > 0 {
				failed = true
				break
			}
			newCommit := &object.Commit{
				TreeHash: treeHash,
				Parents:  []plumbing.Hash{cherryHead},
				Author:   c.Author, Committer: sig,
				Message: c.Message,
			}
			hash, err := store.Put(ctx, newCommit.Encode(store.HashAlgo()))
			if err != nil {
				return nil, err
			}
			order++
			prEntries = append(prEntries, ReassemblyEntry{PRID: pr.PRID, OriginalHash: c.Hash, NewHash: hash, Order: order})
			cherryHead = hash
		}

		if !failed {
			head = cherryHead
			entries = append(entries, prEntries...)
			continue
		}

		// The chain couldn't be replayed commit-by-commit; fall back to one
		// merge commit for the whole PR (spec.md §4.10: "abort that
		// cherry-pick and instead produce a single merge commit for the
		// remainder of the PR").
		result, err := merge.Merge(ctx, store, merge.Options{
			Ours: head, Theirs: pr.Head, Strategy: merge.ThreeWay,
			Author: sig, Message: fmt.Sprintf("merge PR %s", pr.PRID),
		})
		if err != nil {
			return nil, err
		}
		if len(result.Conflicts) > 0 {
			return &ReassemblyResult{Entries: entries, Head: head, FailedPRs: []string{pr.PRID}}, nil
		}
		order++
		entries = append(entries, ReassemblyEntry{PRID: pr.PRID, OriginalHash: pr.Head, NewHash: result.Commit, Order: order})
		head = result.Commit
	}

	return &ReassemblyResult{Entries: entries, Head: head}, nil
}
