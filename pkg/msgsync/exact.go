package msgsync

import (
	"sort"
	"time"
)

// exactSet collects the events sharing one stamp.
type exactSet[T any] struct {
	stamp  time.Time
	events []*Event[T] // indexed by stream; nil until that stream delivers
	filled int
}

// exactPolicy matches only identical stamps. It keeps at most capacity
// partial sets, ordered by stamp. Completing a set discards every older set.
type exactPolicy[T any] struct {
	streams  int
	capacity int
	sets     []*exactSet[T] // sorted by stamp, oldest first
}

func newExactPolicy[T any](streams, capacity int) *exactPolicy[T] {
	return &exactPolicy[T]{
		streams:  streams,
		capacity: capacity,
		sets:     make([]*exactSet[T], 0, capacity+1),
	}
}

func (p *exactPolicy[T]) queueLen(stream int) int {
	n := 0
	for _, s := range p.sets {
		if s.events[stream] != nil {
			n++
		}
	}
	return n
}

// find returns the position of the set stamped t and whether it exists.
func (p *exactPolicy[T]) find(t time.Time) (int, bool) {
	i := sort.Search(len(p.sets), func(i int) bool {
		return !p.sets[i].stamp.Before(t)
	})
	return i, i < len(p.sets) && p.sets[i].stamp.Equal(t)
}

func (p *exactPolicy[T]) insert(ev Event[T]) []outcome[T] {
	var out []outcome[T]

	i, ok := p.find(ev.Stamp)
	if !ok {
		set := &exactSet[T]{stamp: ev.Stamp, events: make([]*Event[T], p.streams)}
		p.sets = append(p.sets, nil)
		copy(p.sets[i+1:], p.sets[i:])
		p.sets[i] = set
	}
	set := p.sets[i]
	if prev := set.events[ev.Stream]; prev != nil {
		out = append(out, outcome[T]{drop: *prev, reason: DropSuperseded})
	} else {
		set.filled++
	}
	stored := ev
	set.events[ev.Stream] = &stored

	if set.filled == p.streams {
		for _, older := range p.sets[:i] {
			out = append(out, older.drops(DropPruned)...)
		}
		p.sets = append(p.sets[:0], p.sets[i+1:]...)

		tuple := make([]Event[T], p.streams)
		for s, e := range set.events {
			tuple[s] = *e
		}
		return append(out, outcome[T]{tuple: tuple})
	}

	for len(p.sets) > p.capacity {
		out = append(out, p.sets[0].drops(DropCapacity)...)
		p.sets = append(p.sets[:0], p.sets[1:]...)
	}
	return out
}

// drops reports every event held by the set, in stream order.
func (s *exactSet[T]) drops(reason DropReason) []outcome[T] {
	var out []outcome[T]
	for _, e := range s.events {
		if e != nil {
			out = append(out, outcome[T]{drop: *e, reason: reason})
		}
	}
	return out
}
