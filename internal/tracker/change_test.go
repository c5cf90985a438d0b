package tracker

import (
	"testing"

	"pgregory.net/rapid"
)

// foldKinds applies the merge policy over a whole event sequence,
// starting from the first event's kind.
func foldKinds(seq []ChangeKind) ChangeKind {
	result := seq[0]
	for _, k := range seq[1:] {
		result = mergeKinds(result, k)
	}
	return result
}

// TestMergePolicyTable pins the net-effect results for the documented
// sequences.
func TestMergePolicyTable(t *testing.T) {
	cases := []struct {
		name string
		seq  []ChangeKind
		want ChangeKind
	}{
		{"create then edits stays added", []ChangeKind{KindAdded, KindChanged, KindChanged}, KindAdded},
		{"create then delete", []ChangeKind{KindAdded, KindDeleted}, KindDeleted},
		{"edit then delete then recreate", []ChangeKind{KindChanged, KindDeleted, KindAdded}, KindAdded},
		{"delete then recreate", []ChangeKind{KindDeleted, KindAdded}, KindAdded},
		{"stale change after delete", []ChangeKind{KindDeleted, KindChanged}, KindChanged},
		{"plain edits", []ChangeKind{KindChanged, KindChanged}, KindChanged},
		{"edit then delete", []ChangeKind{KindChanged, KindDeleted}, KindDeleted},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := foldKinds(tc.seq); got != tc.want {
				t.Errorf("foldKinds(%v) = %v, want %v", tc.seq, got, tc.want)
			}
		})
	}
}

// Feature: change buffer, Property 1: any event sequence ending in a
// deletion nets out to deleted, and any sequence ending in an addition
// nets out to added, regardless of what preceded them.
func TestMergePolicyLastEventDominates(t *testing.T) {
	kinds := []ChangeKind{KindAdded, KindChanged, KindDeleted}

	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 8).Draw(t, "n")
		seq := make([]ChangeKind, 0, n+1)
		for i := 0; i < n; i++ {
			seq = append(seq, kinds[rapid.IntRange(0, 2).Draw(t, "kind")])
		}

		if got := foldKinds(append(seq, KindDeleted)); got != KindDeleted {
			t.Fatalf("sequence %v ending in deleted folded to %v", seq, got)
		}
		if got := foldKinds(append(seq, KindAdded)); got != KindAdded {
			t.Fatalf("sequence %v ending in added folded to %v", seq, got)
		}
	})
}

// Feature: change buffer, Property 2: once a path is recorded as added,
// any run of subsequent edits keeps it added.
func TestMergePolicyAddedSurvivesEdits(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 10).Draw(t, "edits")
		seq := []ChangeKind{KindAdded}
		for i := 0; i < n; i++ {
			seq = append(seq, KindChanged)
		}
		if got := foldKinds(seq); got != KindAdded {
			t.Fatalf("added followed by %d edits folded to %v", n, got)
		}
	})
}
