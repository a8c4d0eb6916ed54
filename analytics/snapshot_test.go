package analytics_test

import (
	"testing"
	"time"

	"github.com/alfreddev/alfred-gateway/analytics"
)

func TestSnapshotAggregation(t *testing.T) {
	buf := analytics.NewBuffer()
	eng := analytics.NewEngine(buf, func() int64 { return 0 })

	now := time.Now()
	for i := 0; i < 3; i++ {
		eng.Add(analytics.LogRecord{Timestamp: now, Path: "/a", StatusCode: 200, ResponseTime: 100 * time.Millisecond, IP: "1.1.1.1"})
	}
	eng.Add(analytics.LogRecord{Timestamp: now, Path: "/b", StatusCode: 500, ResponseTime: 200 * time.Millisecond, IP: "1.1.1.1"})

	snap := eng.Snapshot()
	if snap.TotalRequests != 4 {
		t.Fatalf("expected totalRequests=4, got %d", snap.TotalRequests)
	}
	if snap.ErrorRate != 25.00 {
		t.Fatalf("expected errorRate=25.00, got %v", snap.ErrorRate)
	}
	if snap.AvgResponseTime != 125.00 {
		t.Fatalf("expected avgResponseTime=125.00, got %v", snap.AvgResponseTime)
	}
	if len(snap.TopEndpoints) != 2 || snap.TopEndpoints[0].Path != "/a" || snap.TopEndpoints[0].Count != 3 {
		t.Fatalf("unexpected topEndpoints: %+v", snap.TopEndpoints)
	}
	if snap.TopEndpoints[1].Path != "/b" || snap.TopEndpoints[1].Count != 1 {
		t.Fatalf("unexpected topEndpoints[1]: %+v", snap.TopEndpoints[1])
	}
}

func TestSnapshotEmptyBuffer(t *testing.T) {
	buf := analytics.NewBuffer()
	eng := analytics.NewEngine(buf, func() int64 { return 0 })

	snap := eng.Snapshot()
	if snap.TotalRequests != 0 || snap.ErrorRate != 0 || snap.AvgResponseTime != 0 {
		t.Fatalf("expected zeroed snapshot for an empty buffer, got %+v", snap)
	}
}

func TestSnapshotRateLimitHitsPassthrough(t *testing.T) {
	buf := analytics.NewBuffer()
	eng := analytics.NewEngine(buf, func() int64 { return 42 })
	eng.Add(analytics.LogRecord{Timestamp: time.Now(), Path: "/x", StatusCode: 200})

	if got := eng.Snapshot().RateLimitHits; got != 42 {
		t.Fatalf("expected rateLimitHits=42, got %d", got)
	}
}

func TestBufferWrapsAtCapacity(t *testing.T) {
	buf := analytics.NewBuffer()
	for i := 0; i < analytics.BufferCapacity+10; i++ {
		buf.Add(analytics.LogRecord{Path: "/p", Timestamp: time.Now()})
	}
	if buf.Len() != analytics.BufferCapacity {
		t.Fatalf("expected count clamped at capacity %d, got %d", analytics.BufferCapacity, buf.Len())
	}
}

func TestOrderedNewestFirst(t *testing.T) {
	buf := analytics.NewBuffer()
	base := time.Now()
	buf.Add(analytics.LogRecord{Path: "/1", Timestamp: base})
	buf.Add(analytics.LogRecord{Path: "/2", Timestamp: base.Add(time.Second)})
	buf.Add(analytics.LogRecord{Path: "/3", Timestamp: base.Add(2 * time.Second)})

	ordered := buf.OrderedNewestFirst()
	if len(ordered) != 3 || ordered[0].Path != "/3" || ordered[2].Path != "/1" {
		t.Fatalf("expected newest-first order, got %+v", ordered)
	}
}
