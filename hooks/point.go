// Package hooks implements the C13 hook dispatcher: a typed enumeration of
// hook points, each running registered in-process handlers and then an
// installed external script, with abort semantics for pre-*/commit-msg and
// advisory semantics for post-* (spec.md §4.13).
package hooks

// Point is a hook point in the operation lifecycle.
type Point int

const (
	PreCommit Point = iota
	CommitMsg
	PostCommit
	PrePush
	PostCheckout
	PostMerge
	PreRebase
)

var pointNames = map[Point]string{
	PreCommit:    "pre-commit",
	CommitMsg:    "commit-msg",
	PostCommit:   "post-commit",
	PrePush:      "pre-push",
	PostCheckout: "post-checkout",
	PostMerge:    "post-merge",
	PreRebase:    "pre-rebase",
}

// String returns the hook's script filename under hooks/.
func (p Point) String() string {
	if name, ok := pointNames[p]; ok {
		return name
	}
	return "unknown"
}

// AbortCapable reports whether a failure at this point should abort the
// enclosing operation. pre-* and commit-msg are abort-capable; post-* are
// informational only (spec.md §4.13).
func (p Point) AbortCapable() bool {
	switch p {
	case PreCommit, CommitMsg, PrePush, PreRebase:
		return true
	default:
		return false
	}
}
