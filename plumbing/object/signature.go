package object

import (
	"fmt"
	"strconv"
	"time"
)

// Signature is the author/committer/tagger tuple: a name, an email, and a
// timestamp with its original timezone offset (spec.md §3 Commit). The
// offset is kept separately from time.Time's own location because the
// textual encoding records it as a raw "+hhmm"/"-hhmm" field, not a IANA
// zone name.
type Signature struct {
	Name  string
	Email string
	When  time.Time
	// TZOffset is minutes east of UTC, matching the sign and magnitude of
	// the encoded "+hhmm" field.
	TZOffset int
}

// Decode parses a single header line's value, e.g.
// "Jane Doe <jane@example.com> 1699999999 +0200".
func (s *Signature) Decode(b []byte) {
	*s = Signature{}
	if len(b) == 0 {
		return
	}

	from := 0
	state := 'n' // n: name, e: email, t: timestamp, z: timezone
	for i := 0; ; i++ {
		var c byte
		var end bool
		if i < len(b) {
			c = b[i]
		} else {
			end = true
		}

		switch state {
		case 'n':
			if c == '<' || end {
				if i > 0 {
					s.Name = string(b[from : i-1])
				}
				state = 'e'
				from = i + 1
			}
		case 'e':
			if c == '>' || end {
				s.Email = string(b[from:i])
				i++
				state = 't'
				from = i + 1
			}
		case 't':
			if c == ' ' || end {
				if sec, err := strconv.ParseInt(string(b[from:i]), 10, 64); err == nil {
					s.When = time.Unix(sec, 0).UTC()
				}
				state = 'z'
				from = i + 1
			}
		case 'z':
			if end {
				if len(b) > from {
					s.TZOffset = parseTZOffset(string(b[from:]))
				}
			}
		}

		if end {
			break
		}
	}
}

// Encode renders the signature back to its textual form.
func (s Signature) Encode() string {
	return fmt.Sprintf("%s <%s> %d %s", s.Name, s.Email, s.When.Unix(), formatTZOffset(s.TZOffset))
}

func parseTZOffset(s string) int {
	if len(s) != 5 {
		return 0
	}
	sign := 1
	if s[0] == '-' {
		sign = -1
	}
	hh, err1 := strconv.Atoi(s[1:3])
	mm, err2 := strconv.Atoi(s[3:5])
	if err1 != nil || err2 != nil {
		return 0
	}
	return sign * (hh*60 + mm)
}

func formatTZOffset(minutes int) string {
	sign := "+"
	if minutes < 0 {
		sign = "-"
		minutes = -minutes
	}
	return fmt.Sprintf("%s%02d%02d", sign, minutes/60, minutes%60)
}

func (s Signature) String() string {
	return fmt.Sprintf("%s <%s> @ %s", s.Name, s.Email, s.When)
}
