package refs

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/wit-vcs/wit/plumbing"
)

// ReflogEntry is one line of a ref's append-only movement log (spec.md §3).
type ReflogEntry struct {
	Old         plumbing.Hash
	New         plumbing.Hash
	AuthorName  string
	AuthorEmail string
	When        time.Time
	TZOffset    int
	Message     string
}

// Encode renders one reflog line: "old new name <email> unix tz\tmessage".
func (e ReflogEntry) Encode() string {
	return fmt.Sprintf("%s %s %s <%s> %d %s\t%s\n",
		e.Old.String(), e.New.String(), e.AuthorName, e.AuthorEmail,
		e.When.Unix(), formatTZ(e.TZOffset), e.Message)
}

func formatTZ(minutes int) string {
	sign := "+"
	if minutes < 0 {
		sign = "-"
		minutes = -minutes
	}
	return fmt.Sprintf("%s%02d%02d", sign, minutes/60, minutes%60)
}

func parseTZ(s string) int {
	if len(s) != 5 {
		return 0
	}
	sign := 1
	if s[0] == '-' {
		sign = -1
	}
	hh, e1 := strconv.Atoi(s[1:3])
	mm, e2 := strconv.Atoi(s[3:5])
	if e1 != nil || e2 != nil {
		return 0
	}
	return sign * (hh*60 + mm)
}

// decodeReflogLine parses a single reflog line written by Encode.
func decodeReflogLine(algo plumbing.HashAlgo, line string) (ReflogEntry, error) {
	var e ReflogEntry
	parts := strings.SplitN(line, "\t", 2)
	if len(parts) != 2 {
		return e, fmt.Errorf("%w: malformed reflog line", plumbing.ErrObjectCorrupt)
	}
	head := parts[0]
	e.Message = parts[1]

	fields := strings.Fields(head)
	if len(fields) < 4 {
		return e, fmt.Errorf("%w: malformed reflog header", plumbing.ErrObjectCorrupt)
	}
	oldHash, err := plumbing.NewHash(fields[0])
	if err != nil {
		return e, fmt.Errorf("%w: %v", plumbing.ErrObjectCorrupt, err)
	}
	newHash, err := plumbing.NewHash(fields[1])
	if err != nil {
		return e, fmt.Errorf("%w: %v", plumbing.ErrObjectCorrupt, err)
	}
	e.Old, e.New = oldHash, newHash

	// fields[2:] is "Name <email> unix tz", rejoin and re-split on '<'/'>'.
	rest := strings.Join(fields[2:], " ")
	nameEmail := strings.SplitN(rest, "<", 2)
	if len(nameEmail) != 2 {
		return e, fmt.Errorf("%w: missing author email", plumbing.ErrObjectCorrupt)
	}
	e.AuthorName = strings.TrimSpace(nameEmail[0])
	emailRestParts := strings.SplitN(nameEmail[1], ">", 2)
	if len(emailRestParts) != 2 {
		return e, fmt.Errorf("%w: missing closing '>'", plumbing.ErrObjectCorrupt)
	}
	e.AuthorEmail = emailRestParts[0]
	tailFields := strings.Fields(emailRestParts[1])
	if len(tailFields) != 2 {
		return e, fmt.Errorf("%w: missing timestamp/tz", plumbing.ErrObjectCorrupt)
	}
	sec, err := strconv.ParseInt(tailFields[0], 10, 64)
	if err != nil {
		return e, fmt.Errorf("%w: bad timestamp: %v", plumbing.ErrObjectCorrupt, err)
	}
	e.When = time.Unix(sec, 0).UTC()
	e.TZOffset = parseTZ(tailFields[1])
	return e, nil
}

// Reflog is the append-only log for a single ref.
type Reflog struct {
	path string
	algo plumbing.HashAlgo
}

func newReflog(dir string, name Name, algo plumbing.HashAlgo) *Reflog {
	return &Reflog{path: filepath.Join(dir, filepath.FromSlash(string(name))), algo: algo}
}

// Append writes a new entry to the end of the log, creating the file (and
// its parent directories) if needed.
func (rl *Reflog) Append(e ReflogEntry) error {
	if err := os.MkdirAll(filepath.Dir(rl.path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(rl.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.WriteString(e.Encode())
	return err
}

// Entries returns all log entries, oldest first.
func (rl *Reflog) Entries() ([]ReflogEntry, error) {
	f, err := os.Open(rl.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var out []ReflogEntry
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		line := sc.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		e, err := decodeReflogLine(rl.algo, line)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// AtIndex resolves "ref@{N}": the N-th previous value, zero-based, newest
// first. N=0 is the current value (the New field of the most recent entry).
func (rl *Reflog) AtIndex(n int) (plumbing.Hash, error) {
	entries, err := rl.Entries()
	if err != nil {
		return plumbing.Hash{}, err
	}
	if len(entries) == 0 {
		return plumbing.Hash{}, fmt.Errorf("%w: empty reflog", plumbing.ErrRefNotFound)
	}
	// newest first: reverse index.
	idx := len(entries) - 1 - n
	if idx < 0 {
		return plumbing.Hash{}, fmt.Errorf("%w: reflog has no entry %d", plumbing.ErrRefNotFound, n)
	}
	return entries[idx].New, nil
}

// AtTime resolves "ref@{<time>}": the newest entry whose timestamp is at or
// before target; failing that, the oldest entry (spec.md §4.4 rule).
func (rl *Reflog) AtTime(target time.Time) (plumbing.Hash, error) {
	entries, err := rl.Entries()
	if err != nil {
		return plumbing.Hash{}, err
	}
	if len(entries) == 0 {
		return plumbing.Hash{}, fmt.Errorf("%w: empty reflog", plumbing.ErrRefNotFound)
	}
	var best *ReflogEntry
	for i := range entries {
		e := &entries[i]
		if !e.When.After(target) {
			if best == nil || e.When.After(best.When) {
				best = e
			}
		}
	}
	if best == nil {
		return entries[0].New, nil
	}
	return best.New, nil
}
