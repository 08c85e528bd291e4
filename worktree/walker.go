// Package worktree implements the C6 working-tree walker: it enumerates the
// working directory honoring ignore rules, classifies each path against the
// staging index, and detects binary content (spec.md §4.6).
package worktree

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/wit-vcs/wit/ignore"
	"github.com/wit-vcs/wit/index"
)

// bakedInIgnores are always skipped regardless of .gitignore/.witignore
// content (spec.md §4.6).
var bakedInIgnores = map[string]bool{
	".wit":         true,
	".git":         true,
	"node_modules": true,
}

// ignoreFileNames lists the ignore-rule sources combined at each directory,
// in the order their patterns are appended (later files' patterns can
// override earlier ones at the same domain, matching gitignore's
// last-match-wins rule within a single Matcher).
var ignoreFileNames = []string{".gitignore", ".witignore"}

// Status classifies one path relative to the staging index.
type Status int

const (
	Unchanged Status = iota
	Modified
	Deleted
	Untracked
)

func (s Status) String() string {
	switch s {
	case Unchanged:
		return "unchanged"
	case Modified:
		return "modified"
	case Deleted:
		return "deleted"
	case Untracked:
		return "untracked"
	default:
		return "unknown"
	}
}

// Entry is one classified working-tree or index path.
type Entry struct {
	Path   string
	Status Status
	IsDir  bool
}

// binarySniffLen is the prefix length checked for a NUL byte (spec.md
// §4.6: "presence of a NUL byte within the first 8 KiB").
const binarySniffLen = 8 * 1024

// IsBinary reports whether r's first 8 KiB contains a NUL byte.
func IsBinary(r io.Reader) (bool, error) {
	buf := make([]byte, binarySniffLen)
	n, err := io.ReadFull(r, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return false, err
	}
	return bytes.IndexByte(buf[:n], 0) >= 0, nil
}

// IsBinaryFile is a convenience wrapper over IsBinary for a path on disk.
func IsBinaryFile(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()
	return IsBinary(bufio.NewReader(f))
}

// Walk enumerates repoRoot, honoring combined ignore rules, and classifies
// every path — tracked paths present in ix as unchanged/modified, tracked
// paths missing from disk as deleted, and everything else present on disk
// as untracked. Directories are walked but not themselves classified,
// except to test ignore rules and isDir-only patterns against them.
func Walk(ctx context.Context, repoRoot string, ix *index.Index) ([]Entry, error) {
	matcher, err := buildMatcher(repoRoot)
	if err != nil {
		return nil, err
	}

	seen := map[string]bool{}
	var out []Entry

	err = filepath.WalkDir(repoRoot, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if path == repoRoot {
			return nil
		}
		rel, err := filepath.Rel(repoRoot, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		segs := strings.Split(rel, "/")

		if bakedInIgnores[segs[0]] {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if matcher.Match(segs, d.IsDir()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}

		seen[rel] = true
		modified, err := ix.IsModified(repoRoot, rel)
		if err != nil {
			return err
		}
		if _, tracked := ix.Get(rel); tracked {
			if modified {
				out = append(out, Entry{Path: rel, Status: Modified})
			} else {
				out = append(out, Entry{Path: rel, Status: Unchanged})
			}
		} else {
			out = append(out, Entry{Path: rel, Status: Untracked})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, e := range ix.GetAll() {
		if e.Stage != index.StageNormal {
			continue
		}
		if !seen[e.Path] {
			out = append(out, Entry{Path: e.Path, Status: Deleted})
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

// buildMatcher walks repoRoot collecting every .gitignore/.witignore file
// and returns a single Matcher combining all of their patterns, each
// anchored to the directory it was found in.
func buildMatcher(repoRoot string) (ignore.Matcher, error) {
	var patterns []ignore.Pattern

	err := filepath.WalkDir(repoRoot, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(repoRoot, path)
		if err != nil {
			return err
		}
		if rel != "." && bakedInIgnores[strings.Split(filepath.ToSlash(rel), "/")[0]] {
			return filepath.SkipDir
		}
		var domain []string
		if rel != "." {
			domain = strings.Split(filepath.ToSlash(rel), "/")
		}
		for _, name := range ignoreFileNames {
			f, err := os.Open(filepath.Join(path, name))
			if err != nil {
				if os.IsNotExist(err) {
					continue
				}
				return err
			}
			ps, err := ignore.ReadPatterns(f, domain)
			f.Close()
			if err != nil {
				return err
			}
			patterns = append(patterns, ps...)
		}
		return nil
	})
	if err != nil {
		return ignore.Matcher{}, err
	}
	return ignore.NewMatcher(patterns), nil
}
