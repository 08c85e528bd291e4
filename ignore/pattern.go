// Package ignore implements gitignore-style pattern matching: glob rules
// anchored to a directory ("domain"), simple any-depth rules, negation, and
// directory-only rules. Used by worktree to combine .gitignore/.witignore
// files with the engine's baked-in ignores.
package ignore

import "path/filepath"

// MatchResult is the three-valued outcome of testing one Pattern against a
// path: a pattern that doesn't apply at all is NoMatch, distinct from an
// applicable pattern that excludes or (via "!") re-includes the path.
type MatchResult int

const (
	NoMatch MatchResult = iota
	Exclude
	Include
)

// Pattern is one parsed line of a gitignore-style file.
type Pattern struct {
	domain    []string
	segments  []string
	inclusion bool
	dirOnly   bool
	anchored  bool
}

// ParsePattern parses a single gitignore line. domain is the sequence of
// path segments (relative to the repository root) that the owning ignore
// file lives under; nil or empty means the repository root.
func ParsePattern(line string, domain []string) Pattern {
	p := Pattern{domain: domain}

	if len(line) > 0 && line[0] == '!' {
		p.inclusion = true
		line = line[1:]
	}
	if len(line) > 0 && line[len(line)-1] == '/' {
		p.dirOnly = true
		line = line[:len(line)-1]
	}

	for i := 0; i < len(line); i++ {
		if line[i] == '/' && i != len(line)-1 {
			p.anchored = true
			break
		}
	}
	if len(line) > 0 && line[0] == '/' {
		p.anchored = true
		line = line[1:]
	}

	if line == "" {
		p.segments = nil
	} else {
		p.segments = splitSegments(line)
	}
	return p
}

func splitSegments(s string) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '/' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	out = append(out, s[start:])
	return out
}

// Match reports whether path (split into segments, relative to the
// repository root) is matched by this pattern. isDir describes only the
// final segment of path.
func (p Pattern) Match(path []string, isDir bool) MatchResult {
	if len(path) <= len(p.domain) {
		return NoMatch
	}
	for i, d := range p.domain {
		if path[i] != d {
			return NoMatch
		}
	}
	rel := path[len(p.domain):]

	var matched bool
	if p.anchored {
		ok, consumed := matchPrefix(p.segments, rel)
		matched = ok
		if matched && p.dirOnly && consumed == len(rel) && !isDir {
			// A match with no leftover path is only a directory match if
			// the caller says the final segment is a directory; a match
			// that left segments unconsumed already implies one (it has
			// children), so dirOnly needs no further check there.
			matched = false
		}
	} else {
		matched = p.matchAnywhere(rel, isDir)
	}

	if !matched {
		return NoMatch
	}
	if p.inclusion {
		return Include
	}
	return Exclude
}

// matchAnywhere matches a single, slash-free pattern segment against any
// position within rel; dirOnly is only enforced at the final position,
// since a match with trailing segments implies the matched node is a
// directory by construction.
func (p Pattern) matchAnywhere(rel []string, isDir bool) bool {
	if len(p.segments) != 1 {
		return false
	}
	glob := p.segments[0]
	for i, seg := range rel {
		ok, err := filepath.Match(glob, seg)
		if err != nil || !ok {
			continue
		}
		last := i == len(rel)-1
		if p.dirOnly && last && !isDir {
			continue
		}
		return true
	}
	return false
}

// matchPrefix matches an anchored pattern (possibly containing "**", which
// consumes zero or more whole path segments) against a PREFIX of segs —
// trailing segs beyond what the pattern names are not required to match,
// mirroring how a pattern anchored to a directory also covers everything
// below it. It returns whether the pattern matched and how many leading
// segs it consumed doing so.
func matchPrefix(pats, segs []string) (bool, int) {
	if len(pats) == 0 {
		return true, 0
	}
	if pats[0] == "**" {
		for i := 0; i <= len(segs); i++ {
			if ok, n := matchPrefix(pats[1:], segs[i:]); ok {
				return true, i + n
			}
		}
		return false, 0
	}
	if len(segs) == 0 {
		return false, 0
	}
	ok, err := filepath.Match(pats[0], segs[0])
	if err != nil || !ok {
		return false, 0
	}
	okRest, n := matchPrefix(pats[1:], segs[1:])
	if !okRest {
		return false, 0
	}
	return true, 1 + n
}
