package dispatcher

import (
	"sync/atomic"
	"time"
)

type Stats struct {
	delivered   atomic.Int64
	failed      atomic.Int64
	durationNs  atomic.Int64
	startedAtNs atomic.Int64
}

type StatsSnapshot struct {
	Delivered     int64   `json:"delivered"`
	Failed        int64   `json:"failed"`
	RatePerSecond float64 `json:"rate_per_second"`
	AvgDurationMs int64   `json:"avg_duration_ms"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

func NewStats() *Stats {
	s := &Stats{}
	s.startedAtNs.Store(time.Now().UnixNano())
	return s
}

func (s *Stats) RecordSuccess(d time.Duration) {
	s.delivered.Add(1)
	s.durationNs.Add(int64(d))
}

func (s *Stats) RecordFailure() {
	s.failed.Add(1)
}

func (s *Stats) Snapshot() StatsSnapshot {
	delivered := s.delivered.Load()
	elapsed := time.Since(time.Unix(0, s.startedAtNs.Load())).Seconds()

	snap := StatsSnapshot{
		Delivered:     delivered,
		Failed:        s.failed.Load(),
		UptimeSeconds: elapsed,
	}
	if elapsed > 0 {
		snap.RatePerSecond = float64(delivered) / elapsed
	}
	if delivered > 0 {
		snap.AvgDurationMs = time.Duration(s.durationNs.Load() / delivered).Milliseconds()
	}
	return snap
}
