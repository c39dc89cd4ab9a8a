// Package meter implements the per-connection throughput tracking of spec
// §4.L: byte/sec rate calculation used to enforce slow-client timeouts.
package meter

import (
	"math"
	"sync/atomic"
	"time"
)

// Meter tracks bytes read and written on one connection and derives a
// bytes-per-second rate once a warmup window has elapsed.
type Meter struct {
	firstRead atomic.Int64 // unix nanos, 0 until first read
	lastRead  atomic.Int64
	bytesRead atomic.Int64

	firstWrite atomic.Int64
	lastWrite  atomic.Int64
	bytesWritten atomic.Int64

	readWarmup  time.Duration
	writeWarmup time.Duration

	now func() time.Time
}

// New creates a Meter with the given read and write warmup periods: before
// the relevant warmup has elapsed since the first byte, ReadThroughput/
// WriteThroughput report an unbounded rate (math.MaxFloat64) so
// slow-client enforcement does not fire prematurely on a connection that
// just started.
func New(readWarmup, writeWarmup time.Duration) *Meter {
	return &Meter{readWarmup: readWarmup, writeWarmup: writeWarmup, now: time.Now}
}

// RecordRead registers n bytes read at the current time.
func (m *Meter) RecordRead(n int) {
	now := m.clock()
	if m.firstRead.Load() == 0 {
		m.firstRead.Store(now)
	}
	m.lastRead.Store(now)
	m.bytesRead.Add(int64(n))
}

// RecordWrite registers n bytes written at the current time.
func (m *Meter) RecordWrite(n int) {
	now := m.clock()
	if m.firstWrite.Load() == 0 {
		m.firstWrite.Store(now)
	}
	m.lastWrite.Store(now)
	m.bytesWritten.Add(int64(n))
}

func (m *Meter) clock() int64 {
	if m.now != nil {
		return m.now().UnixNano()
	}
	return time.Now().UnixNano()
}

// ReadThroughput returns the observed read rate in bytes/sec over the
// window from the first to the last recorded read, or MaxFloat64 if the
// warmup period has not yet elapsed since the first read.
func (m *Meter) ReadThroughput() float64 {
	return throughput(m.firstRead.Load(), m.lastRead.Load(), m.bytesRead.Load(), m.readWarmup, m.clock())
}

// WriteThroughput is the write-side symmetric twin of ReadThroughput,
// gated by the write warmup period instead of the read one.
func (m *Meter) WriteThroughput() float64 {
	return throughput(m.firstWrite.Load(), m.lastWrite.Load(), m.bytesWritten.Load(), m.writeWarmup, m.clock())
}

func throughput(first, last, bytes int64, warmup time.Duration, now int64) float64 {
	if first == 0 {
		return math.MaxFloat64
	}
	if time.Duration(now-first) < warmup {
		return math.MaxFloat64
	}
	elapsed := time.Duration(last - first)
	if elapsed <= 0 {
		return math.MaxFloat64
	}
	return float64(bytes) / elapsed.Seconds()
}

// BytesRead returns total bytes read so far.
func (m *Meter) BytesRead() int64 { return m.bytesRead.Load() }

// BytesWritten returns total bytes written so far.
func (m *Meter) BytesWritten() int64 { return m.bytesWritten.Load() }
