package meter

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func fakeClock(start time.Time) (*Meter, func(time.Duration)) {
	m := New(10*time.Millisecond, 10*time.Millisecond)
	cur := start
	m.now = func() time.Time { return cur }
	advance := func(d time.Duration) { cur = cur.Add(d) }
	return m, advance
}

func TestReadThroughputUnboundedBeforeWarmup(t *testing.T) {
	m, advance := fakeClock(time.Unix(0, 0))
	m.RecordRead(100)
	advance(time.Millisecond)
	m.RecordRead(100)
	require.Equal(t, math.MaxFloat64, m.ReadThroughput())
}

func TestReadThroughputAfterWarmup(t *testing.T) {
	m, advance := fakeClock(time.Unix(1, 0))
	m.RecordRead(100)
	advance(100 * time.Millisecond)
	m.RecordRead(100)
	advance(50 * time.Millisecond)

	got := m.ReadThroughput()
	require.Less(t, got, math.MaxFloat64)
	require.InDelta(t, 2000.0, got, 0.001)
}

func TestWriteThroughputIndependentOfRead(t *testing.T) {
	m, advance := fakeClock(time.Unix(0, 0))
	m.RecordRead(500)
	advance(time.Second)
	m.RecordWrite(10)
	advance(100 * time.Millisecond)
	m.RecordWrite(10)
	advance(50 * time.Millisecond)

	require.InDelta(t, 200.0, m.WriteThroughput(), 0.001)
	require.Equal(t, int64(500), m.BytesRead())
	require.Equal(t, int64(20), m.BytesWritten())
}

func TestThroughputUnboundedWithNoActivity(t *testing.T) {
	m := New(time.Millisecond, time.Millisecond)
	require.Equal(t, math.MaxFloat64, m.ReadThroughput())
	require.Equal(t, math.MaxFloat64, m.WriteThroughput())
}
