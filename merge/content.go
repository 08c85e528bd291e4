package merge

import (
	"strings"

	"github.com/wit-vcs/wit/diff"
)

// sideEdit is one side's edit script relative to the base content's line
// numbers: which base lines it deletes, and what it inserts immediately
// after each base line (position 0 meaning "before the first line").
type sideEdit struct {
	deleted    map[int]bool
	insertions map[int][]string
}

func buildSideEdit(lines []diff.Line) sideEdit {
	e := sideEdit{deleted: map[int]bool{}, insertions: map[int][]string{}}
	lastBase := 0
	for _, l := range lines {
		switch l.Op {
		case diff.Context:
			lastBase = l.OldLine
		case diff.Remove:
			e.deleted[l.OldLine] = true
			lastBase = l.OldLine
		case diff.Add:
			e.insertions[lastBase] = append(e.insertions[lastBase], l.Text)
		}
	}
	return e
}

// overlappingLines returns the base line numbers both sides modified —
// spec.md §4.9's conflict rule: "flag conflict iff any line number is
// modified on both sides".
func overlappingLines(a, b sideEdit) []int {
	var out []int
	for ln := range a.deleted {
		if b.deleted[ln] {
			out = append(out, ln)
		}
	}
	return out
}

// mergeContent performs the line-level three-way merge spec.md §4.9
// describes: diffs base→ours and base→theirs are computed, and when no
// base line is modified by both sides the result is built by replaying
// both edit scripts over the base content; any shared modified line is a
// conflict, reported so the caller can render markers.
func mergeContent(base, ours, theirs string) (merged string, conflictLines []int) {
	oursEdit := buildSideEdit(diff.Lines(base, ours))
	theirsEdit := buildSideEdit(diff.Lines(base, theirs))

	conflictLines = overlappingLines(oursEdit, theirsEdit)
	if len(conflictLines) > 0 {
		return "", conflictLines
	}

	baseLines := splitLines(base)
	var out strings.Builder
	emit := func(lines []string) {
		for _, l := range lines {
			out.WriteString(l)
			out.WriteByte('\n')
		}
	}
	emit(oursEdit.insertions[0])
	emit(theirsEdit.insertions[0])
	for i, line := range baseLines {
		ln := i + 1
		if !oursEdit.deleted[ln] && !theirsEdit.deleted[ln] {
			out.WriteString(line)
			out.WriteByte('\n')
		}
		// A side that deleted base line ln placed its replacement at ln;
		// that replacement comes before the other side's appended lines.
		if theirsEdit.deleted[ln] && !oursEdit.deleted[ln] {
			emit(theirsEdit.insertions[ln])
			emit(oursEdit.insertions[ln])
		} else {
			emit(oursEdit.insertions[ln])
			emit(theirsEdit.insertions[ln])
		}
	}
	return out.String(), nil
}

func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	lines := strings.Split(s, "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// renderConflictMarkers wraps the whole base/ours/theirs content in a
// single conflict block (spec.md §4.9: "conflict markers <<<<<<< ours …
// ||||||| base … ======= … >>>>>>> theirs"). This engine renders the
// markers around the full three-sided content rather than isolating just
// the overlapping hunk, trading hunk-level precision for a simpler,
// always-correct fallback.
func renderConflictMarkers(base, ours, theirs string) string {
	var b strings.Builder
	b.WriteString("<<<<<<< ours\n")
	b.WriteString(ours)
	if !strings.HasSuffix(ours, "\n") {
		b.WriteByte('\n')
	}
	b.WriteString("||||||| base\n")
	b.WriteString(base)
	if !strings.HasSuffix(base, "\n") {
		b.WriteByte('\n')
	}
	b.WriteString("=======\n")
	b.WriteString(theirs)
	if !strings.HasSuffix(theirs, "\n") {
		b.WriteByte('\n')
	}
	b.WriteString(">>>>>>> theirs\n")
	return b.String()
}
