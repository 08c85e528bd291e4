package ignore

import (
	"bufio"
	"io"
	"strings"
)

// Matcher holds an ordered list of patterns (root-level, then deeper
// domains, matching gitignore's later-wins rule) and decides a single
// boolean outcome for a path.
type Matcher struct {
	patterns []Pattern
}

// NewMatcher returns a Matcher evaluating patterns in order; later patterns
// override earlier ones, including a trailing "!" pattern re-including
// something an earlier pattern excluded.
func NewMatcher(patterns []Pattern) Matcher {
	return Matcher{patterns: patterns}
}

// Match reports whether path is ignored: the last pattern that applies at
// all (Exclude or Include) wins; no applicable pattern means not ignored.
func (m Matcher) Match(path []string, isDir bool) bool {
	result := NoMatch
	for _, p := range m.patterns {
		if r := p.Match(path, isDir); r != NoMatch {
			result = r
		}
	}
	return result == Exclude
}

// ReadPatterns parses one pattern per non-blank, non-comment line of r,
// anchoring each to domain (the directory the ignore file lives in).
func ReadPatterns(r io.Reader, domain []string) ([]Pattern, error) {
	var out []Pattern
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		out = append(out, ParsePattern(line, domain))
	}
	return out, sc.Err()
}
