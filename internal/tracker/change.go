package tracker

import "time"

// ChangeKind classifies the net effect of filesystem events on a path.
type ChangeKind string

const (
	KindAdded   ChangeKind = "added"
	KindChanged ChangeKind = "changed"
	KindDeleted ChangeKind = "deleted"
)

// Change is the per-path net effect since the last commit.
type Change struct {
	Path      string     `json:"path"`
	Kind      ChangeKind `json:"kind"`
	Timestamp time.Time  `json:"timestamp"`
	LineCount int        `json:"line_count"`
	CharCount int        `json:"char_count"`
}

// mergeKinds folds an incoming event kind into the recorded kind for a
// path, modelling net-effect-since-last-commit. A deletion always wins
// over what preceded it; a later addition resurrects the path as added;
// create followed by edits stays added.
func mergeKinds(prev, next ChangeKind) ChangeKind {
	switch {
	case next == KindDeleted:
		return KindDeleted
	case prev == KindAdded || next == KindAdded:
		return KindAdded
	default:
		// Covers changed→changed and the stale deleted→changed case,
		// which is recorded as changed; metrics collection verifies the
		// file on read rather than trusting the label.
		return KindChanged
	}
}
