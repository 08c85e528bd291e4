package index

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/emirpasic/gods/maps/treemap"
	"github.com/emirpasic/gods/utils"

	"github.com/wit-vcs/wit/chunk"
	"github.com/wit-vcs/wit/plumbing"
	"github.com/wit-vcs/wit/plumbing/object"
	"github.com/wit-vcs/wit/storage"
)

// formatVersion is recorded in the serialized index file's header so future
// format changes can be detected instead of silently misparsed.
const formatVersion = 1

// Index is the staging area. Entries are kept in an always-sorted map
// (github.com/emirpasic/gods treemap) keyed by Entry.key(), the same
// ordered-container approach the pack leans on instead of hand-rolled
// balanced trees; GetAll still sorts its result by (path, stage), since
// the suffixed conflict-stage keys do not order that way.
type Index struct {
	path    string
	store   storage.ObjectStorer
	chunker *chunk.Chunker
	entries *treemap.Map // key: Entry.key() -> Entry
}

// New returns an Index backed by the given object store and serialized at
// indexPath. Call Load to populate it from disk.
func New(indexPath string, store storage.ObjectStorer) *Index {
	return &Index{
		path:    indexPath,
		store:   store,
		chunker: chunk.NewChunker(),
		entries: treemap.NewWith(utils.StringComparator),
	}
}

// Add hashes the file at repoRoot/path (routing large content through the
// chunker), records its stat cache, and inserts or replaces its stage-0
// entry (spec.md §4.5).
func (ix *Index) Add(ctx context.Context, repoRoot, path string) error {
	full := filepath.Join(repoRoot, filepath.FromSlash(path))
	info, err := os.Lstat(full)
	if err != nil {
		return fmt.Errorf("index add %q: %w", path, err)
	}

	mode := plumbing.ModeRegular
	var content []byte
	if info.Mode()&os.ModeSymlink != 0 {
		mode = plumbing.ModeSymlink
		target, err := os.Readlink(full)
		if err != nil {
			return fmt.Errorf("index add %q: %w", path, err)
		}
		content = []byte(target)
	} else {
		if info.Mode()&0o111 != 0 {
			mode = plumbing.ModeExecutable
		}
		content, err = os.ReadFile(full)
		if err != nil {
			return fmt.Errorf("index add %q: %w", path, err)
		}
	}

	var hash plumbing.Hash
	if ix.chunker.ShouldChunk(int64(len(content))) {
		m, err := ix.chunker.Store(ctx, ix.store, content)
		if err != nil {
			return fmt.Errorf("index add %q: %w", path, err)
		}
		hash = m.Hash
	} else {
		h, err := ix.store.Put(ctx, object.NewBlob(ix.store.HashAlgo(), content))
		if err != nil {
			return fmt.Errorf("index add %q: %w", path, err)
		}
		hash = h
	}

	e := Entry{
		Path: path, Mode: mode, Hash: hash, Stage: StageNormal,
		Mtime: info.ModTime(), Ctime: info.ModTime(), Size: int64(len(content)),
	}
	ix.entries.Put(e.key(), e)
	return nil
}

// AddConflict stages a single side (base/ours/theirs) of an unresolved
// merge conflict at path, bypassing the normal stage-0 slot.
func (ix *Index) AddConflict(path string, stage Stage, mode plumbing.FileMode, hash plumbing.Hash) {
	e := Entry{Path: path, Mode: mode, Hash: hash, Stage: stage}
	ix.entries.Put(e.key(), e)
}

// Remove deletes path's stage-0 entry (and any conflict stages at the same
// path).
func (ix *Index) Remove(path string) {
	for _, stage := range []Stage{StageNormal, StageBase, StageOurs, StageTheirs} {
		e := Entry{Path: path, Stage: stage}
		ix.entries.Remove(e.key())
	}
}

// Get returns the stage-0 entry at path, if present.
func (ix *Index) Get(path string) (Entry, bool) {
	v, ok := ix.entries.Get((Entry{Path: path, Stage: StageNormal}).key())
	if !ok {
		return Entry{}, false
	}
	return v.(Entry), true
}

// GetAll returns every entry ordered by path, then stage.
func (ix *Index) GetAll() []Entry {
	out := make([]Entry, 0, ix.entries.Size())
	it := ix.entries.Iterator()
	for it.Next() {
		out = append(out, it.Value().(Entry))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Path != out[j].Path {
			return out[i].Path < out[j].Path
		}
		return out[i].Stage < out[j].Stage
	})
	return out
}

// HasConflicts reports whether any entry is staged above StageNormal.
func (ix *Index) HasConflicts() bool {
	for _, e := range ix.GetAll() {
		if e.Stage != StageNormal {
			return true
		}
	}
	return false
}

// IsModified compares the working-tree file's size and mtime against the
// cached stat fields, without re-hashing content. A mismatch means "maybe
// modified"; callers that need certainty re-hash (spec.md §4.5, §9 Open
// Question on mtime precision).
func (ix *Index) IsModified(repoRoot, path string) (bool, error) {
	e, ok := ix.Get(path)
	if !ok {
		return true, nil
	}
	full := filepath.Join(repoRoot, filepath.FromSlash(path))
	info, err := os.Lstat(full)
	if err != nil {
		if os.IsNotExist(err) {
			return true, nil
		}
		return false, err
	}
	if info.Size() != e.Size {
		return true, nil
	}
	return !info.ModTime().Truncate(time.Second).Equal(e.Mtime.Truncate(time.Second)), nil
}

// Clear removes all entries.
func (ix *Index) Clear() { ix.entries.Clear() }

// Save serializes the index to its path in a stable, versioned, line-based
// container: "wit-index <version>\n" followed by one TSV line per entry.
func (ix *Index) Save() error {
	if err := os.MkdirAll(filepath.Dir(ix.path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(ix.path), "tmp_index_")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	w := bufio.NewWriter(tmp)
	fmt.Fprintf(w, "wit-index %d\n", formatVersion)
	for _, e := range ix.GetAll() {
		fmt.Fprintf(w, "%o\t%s\t%d\t%d\t%d\t%d\t%d\t%d\t%d\t%d\t%s\n",
			e.Mode, e.Hash.String(), e.Stage,
			e.Ctime.Unix(), e.Mtime.Unix(), e.Dev, e.Ino, e.UID, e.GID, e.Size, e.Path)
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, ix.path)
}

// Load replaces the in-memory entries with the content of the on-disk
// index file. A missing file loads as an empty index.
func (ix *Index) Load() error {
	f, err := os.Open(ix.path)
	if err != nil {
		if os.IsNotExist(err) {
			ix.entries.Clear()
			return nil
		}
		return err
	}
	defer f.Close()

	ix.entries.Clear()
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4<<20)
	first := true
	for sc.Scan() {
		line := sc.Text()
		if first {
			first = false
			if !strings.HasPrefix(line, "wit-index ") {
				return fmt.Errorf("%w: missing index header", plumbing.ErrObjectCorrupt)
			}
			continue
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		e, err := parseIndexLine(line)
		if err != nil {
			return err
		}
		ix.entries.Put(e.key(), e)
	}
	return sc.Err()
}

func parseIndexLine(line string) (Entry, error) {
	fields := strings.SplitN(line, "\t", 11)
	if len(fields) != 11 {
		return Entry{}, fmt.Errorf("%w: malformed index line", plumbing.ErrObjectCorrupt)
	}
	modeInt, err := strconv.ParseUint(fields[0], 8, 32)
	if err != nil {
		return Entry{}, fmt.Errorf("%w: bad mode: %v", plumbing.ErrObjectCorrupt, err)
	}
	hash, err := plumbing.NewHash(fields[1])
	if err != nil {
		return Entry{}, fmt.Errorf("%w: bad hash: %v", plumbing.ErrObjectCorrupt, err)
	}
	stageInt, _ := strconv.Atoi(fields[2])
	ctimeSec, _ := strconv.ParseInt(fields[3], 10, 64)
	mtimeSec, _ := strconv.ParseInt(fields[4], 10, 64)
	dev, _ := strconv.ParseUint(fields[5], 10, 32)
	ino, _ := strconv.ParseUint(fields[6], 10, 64)
	uid, _ := strconv.ParseUint(fields[7], 10, 32)
	gid, _ := strconv.ParseUint(fields[8], 10, 32)
	size, _ := strconv.ParseInt(fields[9], 10, 64)

	return Entry{
		Mode: plumbing.FileMode(modeInt), Hash: hash, Stage: Stage(stageInt),
		Ctime: timeFromUnix(ctimeSec), Mtime: timeFromUnix(mtimeSec),
		Dev: uint32(dev), Ino: ino, UID: uint32(uid), GID: uint32(gid),
		Size: size, Path: fields[10],
	}, nil
}

func timeFromUnix(sec int64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}
