// Package nettune applies socket-level tuning to listening and accepted
// TCP connections, adapted from the teacher's socket package.
package nettune

import (
	"net"
	"syscall"
)

// Config are socket options applied to a connection or listener. The zero
// value disables every option; use DefaultConfig for sane HTTP defaults.
type Config struct {
	NoDelay    bool
	RecvBuffer int
	SendBuffer int
	KeepAlive  bool
}

// DefaultConfig matches the tuning an embedded HTTP/1.1 engine wants on
// every accepted connection: Nagle disabled, generous buffers, keepalive on.
func DefaultConfig() *Config {
	return &Config{
		NoDelay:    true,
		RecvBuffer: 256 * 1024,
		SendBuffer: 256 * 1024,
		KeepAlive:  true,
	}
}

// Apply tunes an accepted connection. Non-TCP connections (net.Pipe in
// tests, TLS-wrapped conns whose underlying type isn't *net.TCPConn) are
// left untouched rather than erroring.
func Apply(conn net.Conn, cfg *Config) error {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	tcpConn, ok := underlyingTCPConn(conn)
	if !ok {
		return nil
	}

	rawConn, err := tcpConn.SyscallConn()
	if err != nil {
		return err
	}

	var lastErr error
	err = rawConn.Control(func(fd uintptr) {
		if cfg.NoDelay {
			if err := syscall.SetsockoptInt(int(fd), syscall.IPPROTO_TCP, syscall.TCP_NODELAY, 1); err != nil {
				lastErr = err
				return
			}
		}
		if cfg.RecvBuffer > 0 {
			_ = syscall.SetsockoptInt(int(fd), syscall.SOL_SOCKET, syscall.SO_RCVBUF, cfg.RecvBuffer)
		}
		if cfg.SendBuffer > 0 {
			_ = syscall.SetsockoptInt(int(fd), syscall.SOL_SOCKET, syscall.SO_SNDBUF, cfg.SendBuffer)
		}
		if cfg.KeepAlive {
			_ = syscall.SetsockoptInt(int(fd), syscall.SOL_SOCKET, syscall.SO_KEEPALIVE, 1)
		}
	})
	if err != nil {
		return err
	}
	return lastErr
}

// underlyingTCPConn unwraps net.Conn implementations that embed a
// *net.TCPConn (e.g. *tlsio.Conn embeds *tls.Conn, which itself wraps one).
func underlyingTCPConn(conn net.Conn) (*net.TCPConn, bool) {
	type netConnUnwrapper interface {
		NetConn() net.Conn
	}
	if tc, ok := conn.(*net.TCPConn); ok {
		return tc, true
	}
	if u, ok := conn.(netConnUnwrapper); ok {
		return underlyingTCPConn(u.NetConn())
	}
	return nil, false
}

// ApplyListener tunes a listening socket before Accept is ever called.
func ApplyListener(listener net.Listener, cfg *Config) error {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	tcpListener, ok := listener.(*net.TCPListener)
	if !ok {
		return nil
	}
	file, err := tcpListener.File()
	if err != nil {
		return err
	}
	defer file.Close()

	fd := int(file.Fd())
	if cfg.RecvBuffer > 0 {
		_ = syscall.SetsockoptInt(fd, syscall.SOL_SOCKET, syscall.SO_RCVBUF, cfg.RecvBuffer)
	}
	return nil
}
