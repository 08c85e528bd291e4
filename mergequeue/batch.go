package mergequeue

import (
	"context"

	"github.com/wit-vcs/wit/plumbing"
	"github.com/wit-vcs/wit/plumbing/object"
	"github.com/wit-vcs/wit/storage"
)

// ProcessBatch implements spec.md §4.10's optimistic batching: it first
// attempts the full batch; on failure, with more than one PR remaining, it
// recursively splits into halves and runs each half in sequence on top of
// the previous success, a binary search that isolates the failing PRs
// without redoing the work that already succeeded.
//
// Isolating a failing half never drops the rest of the batch: both halves
// are always attempted, the second stacked on whatever head the first
// actually produced, and every failure either half reports is carried
// forward in FailedPRs — this is what makes testable property #12 (§8:
// "the merged set returned is the complement that succeeded") and
// scenario S7 hold when the failing PR isn't the last one in the batch.
func ProcessBatch(ctx context.Context, store storage.ObjectStorer, target plumbing.Hash, prs []PRInput, sig object.Signature) (*ReassemblyResult, error) {
	if len(prs) <= 1 {
		return Reassemble(ctx, store, target, prs, sig)
	}

	result, err := Reassemble(ctx, store, target, prs, sig)
	if err != nil {
		return nil, err
	}
	if len(result.FailedPRs) == 0 {
		return result, nil
	}

	mid := len(prs) / 2
	first, err := ProcessBatch(ctx, store, target, prs[:mid], sig)
	if err != nil {
		return nil, err
	}
	second, err := ProcessBatch(ctx, store, first.Head, prs[mid:], sig)
	if err != nil {
		return nil, err
	}

	combined := make([]ReassemblyEntry, 0, len(first.Entries)+len(second.Entries))
	combined = append(combined, first.Entries...)
	combined = append(combined, second.Entries...)
	failed := make([]string, 0, len(first.FailedPRs)+len(second.FailedPRs))
	failed = append(failed, first.FailedPRs...)
	failed = append(failed, second.FailedPRs...)
	return &ReassemblyResult{Entries: combined, Head: second.Head, FailedPRs: failed}, nil
}
