package msgsync

import (
	"fmt"
	"strings"
	"time"
)

// Policy selects the matching rule.
type Policy int

const (
	// PolicyApproximate pairs events whose stamps lie within the slop.
	PolicyApproximate Policy = iota
	// PolicyExact pairs only events with identical stamps.
	PolicyExact
)

// String returns the policy name.
func (p Policy) String() string {
	switch p {
	case PolicyApproximate:
		return "approximate"
	case PolicyExact:
		return "exact"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// ParsePolicy maps a name ("approximate", "exact") to a Policy.
// The empty string means PolicyApproximate.
func ParsePolicy(name string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "approximate", "approx":
		return PolicyApproximate, nil
	case "exact":
		return PolicyExact, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownPolicy, name)
	}
}

// Prune controls what else leaves the queues when a tuple is matched
// under PolicyApproximate. PolicyExact always prunes older stamps.
type Prune int

const (
	// PruneMatched removes only the matched events.
	PruneMatched Prune = iota
	// PruneArrival also removes every event that arrived before the matched
	// one in the same queue.
	PruneArrival
	// PruneStamp also removes every event stamped earlier than the matched
	// one in the same queue.
	PruneStamp
)

// String returns the prune mode name.
func (p Prune) String() string {
	switch p {
	case PruneMatched:
		return "matched"
	case PruneArrival:
		return "arrival"
	case PruneStamp:
		return "stamp"
	default:
		return fmt.Sprintf("prune(%d)", int(p))
	}
}

// ParsePrune maps a name ("matched", "arrival", "stamp") to a Prune mode.
// The empty string means PruneMatched.
func ParsePrune(name string) (Prune, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "matched", "none":
		return PruneMatched, nil
	case "arrival":
		return PruneArrival, nil
	case "stamp":
		return PruneStamp, nil
	default:
		return 0, fmt.Errorf("unknown prune mode %q", name)
	}
}

// outcome is one observable effect of an insertion: either a matched tuple
// or a dropped event. Outcomes are reported in the order they happened.
type outcome[T any] struct {
	tuple  []Event[T]
	drop   Event[T]
	reason DropReason
}

func (o outcome[T]) isDrop() bool {
	return o.tuple == nil
}

// matchPolicy owns the pending events and decides when they form tuples.
type matchPolicy[T any] interface {
	insert(ev Event[T]) []outcome[T]
	queueLen(stream int) int
}

// approximatePolicy keeps one bounded queue per stream and runs
// FindApproximate over a snapshot after every insertion.
type approximatePolicy[T any] struct {
	queues []*streamQueue[T]
	slop   time.Duration
	prune  Prune
}

func newApproximatePolicy[T any](streams, queueSize int, slop time.Duration, prune Prune) *approximatePolicy[T] {
	queues := make([]*streamQueue[T], streams)
	for i := range queues {
		queues[i] = newStreamQueue[T](queueSize)
	}
	return &approximatePolicy[T]{queues: queues, slop: slop, prune: prune}
}

func (p *approximatePolicy[T]) queueLen(stream int) int {
	return p.queues[stream].len()
}

func (p *approximatePolicy[T]) insert(ev Event[T]) []outcome[T] {
	var out []outcome[T]
	for _, dropped := range p.queues[ev.Stream].push(ev) {
		out = append(out, outcome[T]{drop: dropped, reason: DropCapacity})
	}

	for {
		snap := make([][]Event[T], len(p.queues))
		cands := make([][]Candidate, len(p.queues))
		for i, q := range p.queues {
			snap[i] = q.snapshot()
			cands[i] = make([]Candidate, len(snap[i]))
			for j, e := range snap[i] {
				cands[i][j] = Candidate{Stamp: e.Stamp, Seq: e.Seq}
			}
		}

		m, ok := FindApproximate(cands, p.slop)
		if !ok {
			return out
		}

		tuple := make([]Event[T], len(p.queues))
		for i, pick := range m.Picks {
			tuple[i] = snap[i][pick]
		}
		for i, matched := range tuple {
			for _, dropped := range p.consume(p.queues[i], matched) {
				out = append(out, outcome[T]{drop: dropped, reason: DropPruned})
			}
		}
		out = append(out, outcome[T]{tuple: tuple})
	}
}

// consume removes a matched event according to the prune mode and returns
// the unmatched events that went with it.
func (p *approximatePolicy[T]) consume(q *streamQueue[T], matched Event[T]) []Event[T] {
	switch p.prune {
	case PruneArrival:
		removed := q.evictThrough(matched.Seq)
		if len(removed) == 0 {
			return nil
		}
		return removed[:len(removed)-1]
	case PruneStamp:
		q.remove(matched.Seq)
		return q.evictOlderThan(matched.Stamp)
	default:
		q.remove(matched.Seq)
		return nil
	}
}
