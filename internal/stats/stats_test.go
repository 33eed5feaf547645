package stats

import (
	"math"
	"testing"
	"time"
)

func TestLatencySnapshotPercentiles(t *testing.T) {
	l := NewLatency(time.Hour)
	for _, ms := range []int64{300, 100, 500, 200, 400} {
		l.Record(ms)
	}

	snap := l.Snapshot()
	if snap.Count != 5 {
		t.Fatalf("expected count=5, got %d", snap.Count)
	}
	if snap.MinMs != 100 || snap.MaxMs != 500 {
		t.Fatalf("expected min=100 max=500, got min=%d max=%d", snap.MinMs, snap.MaxMs)
	}
	if snap.AvgMs != 300 {
		t.Fatalf("expected avg=300, got %f", snap.AvgMs)
	}
	if snap.P50Ms != 300 {
		t.Fatalf("expected p50=300, got %f", snap.P50Ms)
	}
	if math.Abs(snap.P95Ms-480) > 1e-9 {
		t.Fatalf("expected p95=480, got %f", snap.P95Ms)
	}
	if math.Abs(snap.P99Ms-496) > 1e-9 {
		t.Fatalf("expected p99=496, got %f", snap.P99Ms)
	}
}

func TestLatencyPrunesExpiredSamples(t *testing.T) {
	l := NewLatency(10 * time.Millisecond)
	l.Record(100)
	time.Sleep(25 * time.Millisecond)

	if snap := l.Snapshot(); snap.Count != 0 {
		t.Fatalf("expected count=0 after prune, got %d", snap.Count)
	}

	l.Record(200)
	snap := l.Snapshot()
	if snap.Count != 1 || snap.MinMs != 200 || snap.MaxMs != 200 {
		t.Fatalf("expected one sample of 200, got %+v", snap)
	}
}

func TestLatencyClampsNegativeDuration(t *testing.T) {
	l := NewLatency(time.Hour)
	l.Record(-10)
	snap := l.Snapshot()
	if snap.Count != 1 || snap.MaxMs != 0 {
		t.Fatalf("expected one clamped sample, got %+v", snap)
	}
}

func TestLatencySince(t *testing.T) {
	l := NewLatency(0)
	l.Since(time.Now().Add(-20 * time.Millisecond))
	snap := l.Snapshot()
	if snap.Count != 1 || snap.MinMs < 20 {
		t.Fatalf("expected one sample of at least 20ms, got %+v", snap)
	}
}

func TestStatsSummary(t *testing.T) {
	s := New(time.Hour)
	s.Parse.Record(5)
	s.Build.Record(50)
	s.Build.Record(70)

	sum := s.Summary()
	if sum.Parse.Count != 1 || sum.Mutation.Count != 0 || sum.Build.Count != 2 {
		t.Fatalf("unexpected counts: %+v", sum)
	}
	if sum.Build.AvgMs != 60 {
		t.Fatalf("expected build avg=60, got %f", sum.Build.AvgMs)
	}
}
