// Package index implements the C5 staging area: an ordered mapping from
// repository-relative path to (mode, blob hash, stage, stat cache), and the
// bottom-up tree construction that turns that mapping into a root tree hash
// at commit time (spec.md §3 Index, §4.5).
package index

import (
	"time"

	"github.com/wit-vcs/wit/plumbing"
)

// Stage distinguishes the normal entry (0) from the three sides of an
// unresolved merge conflict recorded at the same path (spec.md §3 Index).
type Stage int8

const (
	StageNormal Stage = 0
	StageBase   Stage = 1
	StageOurs   Stage = 2
	StageTheirs Stage = 3
)

// Entry is one staged path. Stat fields cache filesystem metadata purely to
// accelerate IsModified; they are never authoritative (spec.md §3).
//
// Mtime granularity: this implementation caches filesystem mtimes at
// whole-second resolution (time.Time truncated to Unix seconds), documenting
// the Open Question in spec.md §9 about OS-dependent mtime precision — an
// mtime-only comparison would miss edits within the same second, so
// IsModified additionally consults Size to narrow that window.
type Entry struct {
	Path     string
	Mode     plumbing.FileMode
	Hash     plumbing.Hash
	Stage    Stage
	Ctime    time.Time
	Mtime    time.Time
	Dev      uint32
	Ino      uint64
	UID      uint32
	GID      uint32
	Size     int64
}

func (e Entry) key() string {
	if e.Stage == StageNormal {
		return e.Path
	}
	// Conflict stages coexist at one path; suffix keeps them distinct in
	// the ordered map while GetAll still groups them by path via sort.
	return e.Path + "\x00" + string(rune('0'+e.Stage))
}
