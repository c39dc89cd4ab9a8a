package tlsio

import (
	"context"
	"crypto/tls"
	"net"
)

// Conn is the byte-stream adapter handed to the per-connection worker in
// place of a plaintext net.Conn. It forwards Read/Write/Close to the
// underlying *tls.Conn and drives the handshake synchronously up front,
// matching the plaintext socket's blocking-I/O contract exactly.
type Conn struct {
	*tls.Conn
}

// Server wraps a just-accepted net.Conn for server-side TLS using cfg.
func Server(raw net.Conn, cfg *tls.Config) *Conn {
	return &Conn{Conn: tls.Server(raw, cfg)}
}

// Handshake drives the TLS handshake to completion (or failure) before
// any application bytes are exchanged, surfacing failures as TLSError so
// callers can distinguish them from ordinary I/O errors.
func (c *Conn) Handshake(ctx context.Context) error {
	if err := c.Conn.HandshakeContext(ctx); err != nil {
		return &TLSError{Op: "handshake", Err: err}
	}
	return nil
}

// NegotiatedProtocol returns the ALPN protocol chosen during the
// handshake, or "" if none was negotiated.
func (c *Conn) NegotiatedProtocol() string {
	return c.Conn.ConnectionState().NegotiatedProtocol
}

// ServerName returns the SNI hostname the client requested.
func (c *Conn) ServerName() string {
	return c.Conn.ConnectionState().ServerName
}

// Close sends close_notify (via the underlying tls.Conn.Close) and
// releases the socket.
func (c *Conn) Close() error {
	return c.Conn.Close()
}
