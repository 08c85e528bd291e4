// Package diff implements the C7 line-LCS diff engine: per-line change
// classification, hunk grouping with configurable context, unified-diff
// text rendering, and rename detection by content+filename similarity
// (spec.md §4.7).
package diff

import "github.com/sergi/go-diff/diffmatchpatch"

// Op classifies one line in a diff sequence.
type Op int8

const (
	Context Op = iota
	Add
	Remove
)

// Line is one classified line, carrying both old- and new-file line numbers
// (the side that doesn't apply to this Op is 0).
type Line struct {
	Op      Op
	Text    string
	OldLine int
	NewLine int
}

// Lines runs a line-granularity LCS diff between old and new, following the
// same line-tokenization trick the teacher's utils/diff package applies to
// diffmatchpatch (DiffLinesToChars/DiffMain/DiffCharsToLines): lines are
// temporarily remapped to single runes so the library's classic
// character-level Myers diff operates at line granularity at a fraction of
// the cost of diffing raw text.
func Lines(old, new string) []Line {
	dmp := diffmatchpatch.New()
	a, b, lineArray := dmp.DiffLinesToChars(old, new)
	charDiffs := dmp.DiffMain(a, b, false)
	charDiffs = dmp.DiffCleanupSemantic(charDiffs)
	lineDiffs := dmp.DiffCharsToLines(charDiffs, lineArray)

	var out []Line
	oldLine, newLine := 1, 1
	for _, d := range lineDiffs {
		for _, text := range splitKeepEmpty(d.Text) {
			switch d.Type {
			case diffmatchpatch.DiffEqual:
				out = append(out, Line{Op: Context, Text: text, OldLine: oldLine, NewLine: newLine})
				oldLine++
				newLine++
			case diffmatchpatch.DiffDelete:
				out = append(out, Line{Op: Remove, Text: text, OldLine: oldLine})
				oldLine++
			case diffmatchpatch.DiffInsert:
				out = append(out, Line{Op: Add, Text: text, NewLine: newLine})
				newLine++
			}
		}
	}
	return out
}

// splitKeepEmpty splits s on "\n", dropping only the final empty element a
// trailing newline introduces, matching how git treats a trailing newline
// as not itself a line.
func splitKeepEmpty(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	if start < len(s) {
		out = append(out, s[start:])
	}
	return out
}
