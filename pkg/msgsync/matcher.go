package msgsync

import (
	"slices"
	"sort"
	"time"
)

// Candidate is the matcher's view of a queued event.
type Candidate struct {
	Stamp time.Time
	Seq   uint64
}

// Match is a tuple selected by FindApproximate.
type Match struct {
	// Picks[i] indexes the chosen candidate in queue i of the snapshot.
	Picks []int

	// Spread is the distance between the earliest and latest chosen stamp.
	Spread time.Duration

	// Pivot is the stream whose candidate anchored the search.
	Pivot int

	// PivotStamp and PivotSeq identify the anchoring candidate.
	PivotStamp time.Time
	PivotSeq   uint64
}

// better reports whether m beats o under the selection order:
// smaller spread, then earlier pivot stamp, then lower pivot stream,
// then earlier pivot arrival.
func (m Match) better(o Match) bool {
	if m.Spread != o.Spread {
		return m.Spread < o.Spread
	}
	if !m.PivotStamp.Equal(o.PivotStamp) {
		return m.PivotStamp.Before(o.PivotStamp)
	}
	if m.Pivot != o.Pivot {
		return m.Pivot < o.Pivot
	}
	return m.PivotSeq < o.PivotSeq
}

// FindApproximate searches a snapshot of per-stream queues for a tuple whose
// stamps all lie within slop of each other. It never mutates the snapshot.
//
// Every candidate of every queue is tried as a pivot. For each other queue the
// candidate closest in time to the pivot is chosen; equally close candidates
// resolve to the earlier stamp, then the earlier arrival. A pivot succeeds when
// the chosen stamps span at most slop. Among successful pivots the tightest
// tuple wins; ties go to the earliest pivot stamp, then the lowest pivot
// stream index, then the earliest pivot arrival.
//
// The search returns false when any queue is empty or no pivot succeeds.
func FindApproximate(snapshot [][]Candidate, slop time.Duration) (Match, bool) {
	if len(snapshot) == 0 {
		return Match{}, false
	}
	for _, q := range snapshot {
		if len(q) == 0 {
			return Match{}, false
		}
	}

	views := make([]sortedView, len(snapshot))
	for i, q := range snapshot {
		views[i] = newSortedView(q)
	}

	var (
		best  Match
		found bool
		picks = make([]int, len(snapshot))
	)
	for p, q := range snapshot {
		for ci, c := range q {
			lo, hi := c.Stamp, c.Stamp
			picks[p] = ci
			for s := range snapshot {
				if s == p {
					continue
				}
				j := views[s].closest(c.Stamp)
				picks[s] = j
				st := snapshot[s][j].Stamp
				if st.Before(lo) {
					lo = st
				}
				if st.After(hi) {
					hi = st
				}
			}

			spread := hi.Sub(lo)
			if spread > slop {
				continue
			}
			cand := Match{
				Spread:     spread,
				Pivot:      p,
				PivotStamp: c.Stamp,
				PivotSeq:   c.Seq,
			}
			if !found || cand.better(best) {
				cand.Picks = slices.Clone(picks)
				best = cand
				found = true
			}
		}
	}
	return best, found
}

// sortedView orders one queue's candidates by (stamp, seq) without
// reordering the queue itself.
type sortedView struct {
	cands []Candidate
	order []int
}

func newSortedView(cands []Candidate) sortedView {
	order := make([]int, len(cands))
	for i := range order {
		order[i] = i
	}
	slices.SortFunc(order, func(a, b int) int {
		if c := cands[a].Stamp.Compare(cands[b].Stamp); c != 0 {
			return c
		}
		switch {
		case cands[a].Seq < cands[b].Seq:
			return -1
		case cands[a].Seq > cands[b].Seq:
			return 1
		}
		return 0
	})
	return sortedView{cands: cands, order: order}
}

func (v sortedView) stampAt(i int) time.Time {
	return v.cands[v.order[i]].Stamp
}

// firstAtOrAfter returns the first sorted position whose stamp is >= t.
func (v sortedView) firstAtOrAfter(t time.Time) int {
	return sort.Search(len(v.order), func(i int) bool {
		return !v.stampAt(i).Before(t)
	})
}

// closest returns the queue index of the candidate nearest to t.
func (v sortedView) closest(t time.Time) int {
	right := v.firstAtOrAfter(t)
	if right == 0 {
		return v.order[0]
	}
	left := right - 1
	if right < len(v.order) {
		dl := t.Sub(v.stampAt(left))
		dr := v.stampAt(right).Sub(t)
		if dr < dl {
			return v.order[right]
		}
	}
	// Walk back to the earliest arrival sharing the left stamp.
	left = v.firstAtOrAfter(v.stampAt(left))
	return v.order[left]
}
