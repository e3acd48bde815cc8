package loopback

import (
	"sync"
	"time"

	"github.com/danmuck/pdcpmux/internal/pdcp"
)

// Meter accumulates bits per direction and reports throughput over the
// window since the previous snapshot.
type Meter struct {
	mu     sync.Mutex
	ulBits int
	dlBits int
	since  time.Time
	now    func() time.Time
}

func NewMeter() *Meter {
	return newMeterAt(time.Now)
}

func newMeterAt(now func() time.Time) *Meter {
	return &Meter{since: now(), now: now}
}

func (m *Meter) AddUplink(n int) {
	m.mu.Lock()
	m.ulBits += n * 8
	m.mu.Unlock()
}

func (m *Meter) AddDownlink(n int) {
	m.mu.Lock()
	m.dlBits += n * 8
	m.mu.Unlock()
}

// Snapshot returns the current window and starts a new one.
func (m *Meter) Snapshot() pdcp.AggregationMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	out := pdcp.AggregationMetrics{
		DLThroughputBits: m.dlBits,
		ULThroughputBits: m.ulBits,
	}
	if secs := now.Sub(m.since).Seconds(); secs > 0 {
		out.DLThroughputBitrate = float64(m.dlBits) / secs
		out.ULThroughputBitrate = float64(m.ulBits) / secs
	}
	m.ulBits, m.dlBits = 0, 0
	m.since = now
	return out
}
