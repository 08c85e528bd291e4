package journal

import (
	"context"
	"fmt"
)

// Applier performs the effect of one journal entry against the live
// repository. Replay passes entries as recorded; Undo passes a reversed
// entry with BeforeState and AfterState swapped. Concrete appliers
// live with their operations (e.g. the commit/ref-update code paths) —
// this package only sequences them, the same way mergequeue sequences the
// merge package's primitives rather than reimplementing them.
type Applier func(ctx context.Context, e Entry) error

// Replay reapplies entries, oldest first, stopping at the first error.
func Replay(ctx context.Context, entries []Entry, apply Applier) error {
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := apply(ctx, e); err != nil {
			return fmt.Errorf("journal: replay op %d (%s): %w", e.Sequence, e.Op, err)
		}
	}
	return nil
}

// Undo builds the reverse entry for seq (its Op unchanged, Args/Metadata
// carried through, but with BeforeState and AfterState swapped so an
// Applier restoring "after_state" fields actually restores what was true
// before the original operation ran) and hands it to apply.
func Undo(ctx context.Context, j *Journal, seq int, apply Applier) error {
	e, ok, err := j.AtSequence(seq)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("journal: no entry with sequence %d", seq)
	}
	reverse := Entry{
		Sequence:    e.Sequence,
		Op:          e.Op,
		Args:        e.Args,
		Metadata:    e.Metadata,
		BeforeState: e.AfterState,
		AfterState:  e.BeforeState,
	}
	if err := apply(ctx, reverse); err != nil {
		return fmt.Errorf("journal: undo op %d (%s): %w", e.Sequence, e.Op, err)
	}
	return nil
}

// UndoLast undoes the most recently recorded entry.
func UndoLast(ctx context.Context, j *Journal, apply Applier) error {
	entries, err := j.Entries()
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return fmt.Errorf("journal: nothing to undo")
	}
	return Undo(ctx, j, entries[len(entries)-1].Sequence, apply)
}
