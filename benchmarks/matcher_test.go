package benchmarks

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/randalmurphal/msgsync/pkg/msgsync"
)

var epoch = time.Unix(1_700_000_000, 0)

// snapshot builds streams x depth candidates with jittered stamps.
func snapshot(streams, depth int) [][]msgsync.Candidate {
	rng := rand.New(rand.NewPCG(1, 2))
	out := make([][]msgsync.Candidate, streams)
	seq := uint64(0)
	for s := range out {
		out[s] = make([]msgsync.Candidate, depth)
		for i := range out[s] {
			seq++
			jitter := time.Duration(rng.IntN(20)) * time.Millisecond
			out[s][i] = msgsync.Candidate{
				Stamp: epoch.Add(time.Duration(i)*100*time.Millisecond + jitter),
				Seq:   seq,
			}
		}
	}
	return out
}

func benchmarkFind(b *testing.B, streams, depth int) {
	snap := snapshot(streams, depth)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = msgsync.FindApproximate(snap, 30*time.Millisecond)
	}
}

// BenchmarkFindApproximate_2x10 searches two full default-size queues.
func BenchmarkFindApproximate_2x10(b *testing.B) { benchmarkFind(b, 2, 10) }

// BenchmarkFindApproximate_4x10 searches four full default-size queues.
func BenchmarkFindApproximate_4x10(b *testing.B) { benchmarkFind(b, 4, 10) }

// BenchmarkFindApproximate_9x10 searches the largest common fan-in.
func BenchmarkFindApproximate_9x10(b *testing.B) { benchmarkFind(b, 9, 10) }

// BenchmarkFindApproximate_4x100 searches deep queues.
func BenchmarkFindApproximate_4x100(b *testing.B) { benchmarkFind(b, 4, 100) }

// BenchmarkFindApproximate_NoMatch measures a search that fails.
func BenchmarkFindApproximate_NoMatch(b *testing.B) {
	snap := snapshot(3, 10)
	for i := range snap[2] {
		snap[2][i].Stamp = snap[2][i].Stamp.Add(time.Hour)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = msgsync.FindApproximate(snap, 30*time.Millisecond)
	}
}
