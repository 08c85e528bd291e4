package journal_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wit-vcs/wit/journal"
)

func mustTime(s string) time.Time {
	tt, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return tt
}

func TestAppendAssignsSequentialNumbers(t *testing.T) {
	j, err := journal.Open(filepath.Join(t.TempDir(), "journal"))
	require.NoError(t, err)

	e1, err := j.Append(journal.Entry{Op: "commit", Args: map[string]string{"message": "first"}})
	require.NoError(t, err)
	require.Equal(t, 1, e1.Sequence)

	e2, err := j.Append(journal.Entry{Op: "commit", Args: map[string]string{"message": "second"}})
	require.NoError(t, err)
	require.Equal(t, 2, e2.Sequence)

	entries, err := j.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "first", entries[0].Args["message"])
	require.Equal(t, "second", entries[1].Args["message"])
}

func TestEntriesOnMissingFileIsEmpty(t *testing.T) {
	j, err := journal.Open(filepath.Join(t.TempDir(), "nested", "journal"))
	require.NoError(t, err)

	entries, err := j.Entries()
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestSinceFiltersByTimestamp(t *testing.T) {
	j, err := journal.Open(filepath.Join(t.TempDir(), "journal"))
	require.NoError(t, err)

	_, err = j.Append(journal.Entry{Op: "commit", When: mustTime("2026-01-01T00:00:00Z")})
	require.NoError(t, err)
	_, err = j.Append(journal.Entry{Op: "checkout", When: mustTime("2026-02-01T00:00:00Z")})
	require.NoError(t, err)

	recent, err := j.Since(mustTime("2026-01-15T00:00:00Z"))
	require.NoError(t, err)
	require.Len(t, recent, 1)
	require.Equal(t, "checkout", recent[0].Op)
}

func TestReplayAppliesEntriesInOrder(t *testing.T) {
	_, err := journal.Open(filepath.Join(t.TempDir(), "journal"))
	require.NoError(t, err)
	entries := []journal.Entry{
		{Op: "a"},
		{Op: "b"},
		{Op: "c"},
	}

	var applied []string
	err = journal.Replay(context.Background(), entries, func(ctx context.Context, e journal.Entry) error {
		applied = append(applied, e.Op)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b", "c"}, applied)
}

func TestUndoSwapsBeforeAndAfterState(t *testing.T) {
	j, err := journal.Open(filepath.Join(t.TempDir(), "journal"))
	require.NoError(t, err)

	_, err = j.Append(journal.Entry{
		Op:          "update_ref",
		BeforeState: map[string]string{"hash": "old"},
		AfterState:  map[string]string{"hash": "new"},
	})
	require.NoError(t, err)

	var restoredTo string
	err = journal.UndoLast(context.Background(), j, func(ctx context.Context, e journal.Entry) error {
		restoredTo = e.AfterState["hash"]
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, "old", restoredTo)
}

func TestUndoLastOnEmptyJournalErrors(t *testing.T) {
	j, err := journal.Open(filepath.Join(t.TempDir(), "journal"))
	require.NoError(t, err)

	err = journal.UndoLast(context.Background(), j, func(ctx context.Context, e journal.Entry) error {
		return nil
	})
	require.Error(t, err)
}
