package analytics

import (
	"math"
	"sort"
	"time"
)

// EndpointCount is one entry of the topEndpoints ranking.
type EndpointCount struct {
	Path  string `json:"path"`
	Count int    `json:"count"`
}

// Snapshot is the derived analytics view computed over a single
// consistent read of the buffer, per spec.md §4.3.
type Snapshot struct {
	TotalRequests     int             `json:"totalRequests"`
	RequestsPerMinute int             `json:"requestsPerMinute"`
	TopEndpoints      []EndpointCount `json:"topEndpoints"`
	ErrorRate         float64         `json:"errorRate"`
	AvgResponseTime   float64         `json:"avgResponseTime"`
	ActiveClients     int             `json:"activeClients"`
	ActiveKeyUses     int             `json:"activeKeyUses"`
	RateLimitHits     int64           `json:"rateLimitHits"`
}

// Engine pairs a Buffer with a live rateLimitHits source to produce
// snapshots and to drive the SSE pusher.
type Engine struct {
	buffer *Buffer
	hits   func() int64
}

// NewEngine wires a buffer to a live hits counter (typically
// ratelimit.Engine.Hits).
func NewEngine(buffer *Buffer, hits func() int64) *Engine {
	return &Engine{buffer: buffer, hits: hits}
}

// Add records a completed request.
func (e *Engine) Add(rec LogRecord) {
	e.buffer.Add(rec)
}

// Buffer exposes the underlying circular buffer, e.g. for the paginated
// logs endpoint.
func (e *Engine) Buffer() *Buffer {
	return e.buffer
}

// Snapshot computes the current derived view over a single consistent
// copy of the buffer — per spec.md, errorRate and avgResponseTime are
// computed over the entire buffer (historical), not the last minute.
func (e *Engine) Snapshot() Snapshot {
	records := e.buffer.Snapshot()
	now := time.Now()

	var hits int64
	if e.hits != nil {
		hits = e.hits()
	}

	count := len(records)
	if count == 0 {
		return Snapshot{RateLimitHits: hits}
	}

	oneMinuteAgo := now.Add(-60 * time.Second)
	fiveMinutesAgo := now.Add(-300 * time.Second)

	requestsPerMinute := 0
	errorCount := 0
	var totalResponseTimeNs int64
	pathCounts := make(map[string]int)
	activeClients := make(map[string]struct{})
	activeKeyUses := make(map[string]struct{})

	for _, rec := range records {
		if rec.Timestamp.After(oneMinuteAgo) {
			requestsPerMinute++
		}
		if rec.StatusCode >= 400 {
			errorCount++
		}
		totalResponseTimeNs += rec.ResponseTime.Nanoseconds()
		pathCounts[rec.Path]++

		if rec.Timestamp.After(fiveMinutesAgo) {
			activeClients[rec.IP] = struct{}{}
			if rec.APIKey != "" {
				activeKeyUses[rec.IP+"|"+rec.APIKey] = struct{}{}
			}
		}
	}

	return Snapshot{
		TotalRequests:     count,
		RequestsPerMinute: requestsPerMinute,
		TopEndpoints:      topN(pathCounts, 5),
		ErrorRate:         round2(100 * float64(errorCount) / float64(count)),
		AvgResponseTime:   round2(float64(totalResponseTimeNs) / float64(time.Millisecond) / float64(count)),
		ActiveClients:     len(activeClients),
		ActiveKeyUses:     len(activeKeyUses),
		RateLimitHits:     hits,
	}
}

func topN(counts map[string]int, n int) []EndpointCount {
	entries := make([]EndpointCount, 0, len(counts))
	for path, c := range counts {
		entries = append(entries, EndpointCount{Path: path, Count: c})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Count != entries[j].Count {
			return entries[i].Count > entries[j].Count
		}
		return entries[i].Path < entries[j].Path
	})
	if len(entries) > n {
		entries = entries[:n]
	}
	return entries
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
