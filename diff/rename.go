package diff

import (
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"dario.cat/mergo"

	"github.com/wit-vcs/wit/plumbing"
)

// RenameOptions is the closed-enumeration config for rename detection
// (spec.md §7: "rename options {threshold∈[0,1], enabled}").
type RenameOptions struct {
	Enabled   bool
	Threshold float64 // default 0.5
}

// DefaultRenameOptions matches spec.md §4.7's default threshold.
var DefaultRenameOptions = RenameOptions{Enabled: true, Threshold: 0.5}

// WithDefaults overlays a caller-supplied partial RenameOptions (e.g. just
// a custom Threshold) over DefaultRenameOptions, so a caller never has to
// restate Enabled just to tune the similarity cutoff.
func WithDefaults(opts RenameOptions) (RenameOptions, error) {
	merged := DefaultRenameOptions
	if err := mergo.Merge(&merged, opts, mergo.WithOverride); err != nil {
		return RenameOptions{}, err
	}
	return merged, nil
}

// FileRef is one side of a candidate rename: a deleted or added path, its
// blob hash (for the exact-match fast path), and its content (for the
// similarity fallback).
type FileRef struct {
	Path    string
	Hash    plumbing.Hash
	Content []byte
}

// RenamePair is one resolved rename.
type RenamePair struct {
	Old        string
	New        string
	Similarity float64
}

// DetectRenames pairs deletes against adds (spec.md §4.7, testable
// property 9): identical-content pairs match first at similarity 1.0, then
// remaining pairs are scored by combined content+filename similarity and
// resolved greedily by descending score, each side used at most once.
func DetectRenames(deletes, adds []FileRef, opts RenameOptions) []RenamePair {
	if !opts.Enabled {
		return nil
	}

	usedDel := make(map[int]bool, len(deletes))
	usedAdd := make(map[int]bool, len(adds))
	var pairs []RenamePair

	// Pass 1: exact hash match, similarity 1.0.
	for di, d := range deletes {
		if usedDel[di] {
			continue
		}
		for ai, a := range adds {
			if usedAdd[ai] || d.Hash.IsZero() || !d.Hash.Equal(a.Hash) {
				continue
			}
			pairs = append(pairs, RenamePair{Old: d.Path, New: a.Path, Similarity: 1.0})
			usedDel[di] = true
			usedAdd[ai] = true
			break
		}
	}

	// Pass 2: scored candidates above threshold, resolved greedily.
	type candidate struct {
		di, ai int
		score  float64
	}
	var candidates []candidate
	for di, d := range deletes {
		if usedDel[di] {
			continue
		}
		for ai, a := range adds {
			if usedAdd[ai] {
				continue
			}
			score := combinedSimilarity(d, a)
			if score >= opts.Threshold {
				candidates = append(candidates, candidate{di, ai, score})
			}
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].score > candidates[j].score })
	for _, c := range candidates {
		if usedDel[c.di] || usedAdd[c.ai] {
			continue
		}
		pairs = append(pairs, RenamePair{Old: deletes[c.di].Path, New: adds[c.ai].Path, Similarity: c.score})
		usedDel[c.di] = true
		usedAdd[c.ai] = true
	}

	return pairs
}

// combinedSimilarity blends content similarity (shared-line Jaccard index)
// with filename similarity (basename token overlap): content dominates
// since it is the stronger rename signal, filename breaks ties between
// near-identical content (spec.md §4.7 leaves the exact weighting to the
// implementer, "e.g. shared token ratio").
func combinedSimilarity(d, a FileRef) float64 {
	return 0.75*contentSimilarity(d.Content, a.Content) + 0.25*filenameSimilarity(d.Path, a.Path)
}

func contentSimilarity(a, b []byte) float64 {
	ta := tokenizeLines(a)
	tb := tokenizeLines(b)
	return jaccard(ta, tb)
}

func tokenizeLines(content []byte) map[string]bool {
	set := map[string]bool{}
	for _, line := range strings.Split(string(content), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			set[line] = true
		}
	}
	return set
}

var filenameTokenRe = regexp.MustCompile(`[A-Za-z0-9]+`)

func filenameSimilarity(a, b string) float64 {
	ta := tokenizeName(filepath.Base(a))
	tb := tokenizeName(filepath.Base(b))
	return jaccard(ta, tb)
}

func tokenizeName(name string) map[string]bool {
	set := map[string]bool{}
	for _, tok := range filenameTokenRe.FindAllString(strings.ToLower(name), -1) {
		set[tok] = true
	}
	return set
}

func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}
	inter := 0
	for k := range a {
		if b[k] {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}
