package worker

import (
	"net"

	"github.com/yourusername/embedhttp/internal/meter"
)

// meteredConn wraps a net.Conn so every Read/Write is recorded in m,
// letting the worker enforce min-read/write-throughput (spec §4.L)
// without threading the meter through every layer individually.
type meteredConn struct {
	net.Conn
	m *meter.Meter
}

func (c *meteredConn) Read(p []byte) (int, error) {
	n, err := c.Conn.Read(p)
	if n > 0 {
		c.m.RecordRead(n)
	}
	return n, err
}

func (c *meteredConn) Write(p []byte) (int, error) {
	n, err := c.Conn.Write(p)
	if n > 0 {
		c.m.RecordWrite(n)
	}
	return n, err
}
