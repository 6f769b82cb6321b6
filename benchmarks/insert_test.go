package benchmarks

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/randalmurphal/msgsync/pkg/msgsync"
	"github.com/randalmurphal/msgsync/pkg/msgsync/record"
)

func newBenchSync(b *testing.B, streams int, opts ...msgsync.Option) *msgsync.Synchronizer[int] {
	b.Helper()
	s, err := msgsync.New[int](streams, append([]msgsync.Option{
		msgsync.WithName("bench"),
		msgsync.WithSlop(10 * time.Millisecond),
	}, opts...)...)
	if err != nil {
		b.Fatal(err)
	}
	s.Register(func(context.Context, msgsync.Tuple[int]) error { return nil })
	return s
}

func benchmarkAdd(b *testing.B, streams int, opts ...msgsync.Option) {
	s := newBenchSync(b, streams, opts...)
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		stamp := epoch.Add(time.Duration(i/streams) * time.Millisecond * 50)
		_ = s.Add(ctx, i%streams, stamp, i)
	}
}

// BenchmarkAdd_2Streams measures insert plus match for a pair.
func BenchmarkAdd_2Streams(b *testing.B) { benchmarkAdd(b, 2) }

// BenchmarkAdd_4Streams measures insert plus match for four streams.
func BenchmarkAdd_4Streams(b *testing.B) { benchmarkAdd(b, 4) }

// BenchmarkAdd_Exact_4Streams measures the exact-time policy.
func BenchmarkAdd_Exact_4Streams(b *testing.B) {
	benchmarkAdd(b, 4, msgsync.WithPolicy(msgsync.PolicyExact))
}

// BenchmarkAdd_Unmatched measures inserts that only cause capacity drops.
func BenchmarkAdd_Unmatched(b *testing.B) {
	s := newBenchSync(b, 2)
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = s.Add(ctx, 0, epoch.Add(time.Duration(i)*time.Second), i)
	}
}

// BenchmarkAdd_Recorded_Memory measures inserts with a memory recorder attached.
func BenchmarkAdd_Recorded_Memory(b *testing.B) {
	s := newBenchSync(b, 2)
	record.NewRecorder[int](record.NewMemoryStore(), s.Name(), nil).Attach(s)
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = s.Add(ctx, i%2, epoch.Add(time.Duration(i/2)*50*time.Millisecond), i)
	}
}

// BenchmarkAdd_Recorded_SQLite measures inserts with a SQLite recorder attached.
func BenchmarkAdd_Recorded_SQLite(b *testing.B) {
	store, err := record.NewSQLiteStore(filepath.Join(b.TempDir(), "bench.db"))
	if err != nil {
		b.Fatal(err)
	}
	defer store.Close()

	s := newBenchSync(b, 2)
	record.NewRecorder[int](store, s.Name(), nil).Attach(s)
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = s.Add(ctx, i%2, epoch.Add(time.Duration(i/2)*50*time.Millisecond), i)
	}
}
