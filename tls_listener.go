package embedhttp

import (
	"crypto/tls"
	"net"

	"github.com/yourusername/embedhttp/internal/tlsio"
)

// tlsListener wraps a plain net.Listener so every accepted socket comes
// back already wrapped by internal/tlsio's adapter over crypto/tls.Conn.
// The handshake itself is deferred to the worker pool goroutine that owns
// the connection (see Server.serveTracked), keeping the accept loop free
// to keep draining the socket backlog.
type tlsListener struct {
	net.Listener
	config *tls.Config
}

func newTLSListener(ln net.Listener, config *tls.Config) net.Listener {
	return &tlsListener{Listener: ln, config: config}
}

func (l *tlsListener) Accept() (net.Conn, error) {
	raw, err := l.Listener.Accept()
	if err != nil {
		return nil, err
	}
	return tlsio.Server(raw, l.config), nil
}
