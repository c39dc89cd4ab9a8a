package embedhttp

import (
	"bufio"
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testConfig(addr string, handler Handler) Config {
	cfg := DefaultConfig()
	cfg.Listeners = []ListenerConfig{{Addr: addr}}
	cfg.Handler = handler
	cfg.NumWorkerThreads = 4
	cfg.QueueBound = 16
	cfg.InitialReadTimeout = 2 * time.Second
	cfg.KeepAliveTimeout = 2 * time.Second
	cfg.ShutdownDuration = time.Second
	return cfg
}

func TestServerServesSimpleRequest(t *testing.T) {
	handler := func(req *Request, resp *ResponseWriter) error {
		require.Equal(t, "/ping", req.Path)
		_, err := resp.Write([]byte("pong"))
		return err
	}

	srv, err := New(testConfig("127.0.0.1:0", handler))
	require.NoError(t, err)
	require.NoError(t, srv.Start())
	defer srv.Close()

	addr := srv.listeners[0].Addr().String()
	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("GET /ping HTTP/1.1\r\nHost: h\r\nConnection: close\r\n\r\n"))
	require.NoError(t, err)

	reader := bufio.NewReader(conn)
	status, err := reader.ReadString('\n')
	require.NoError(t, err)
	require.Contains(t, status, "200")
}

func TestServerShutdownIsIdempotent(t *testing.T) {
	handler := func(req *Request, resp *ResponseWriter) error {
		_, err := resp.Write([]byte("ok"))
		return err
	}

	srv, err := New(testConfig("127.0.0.1:0", handler))
	require.NoError(t, err)
	require.NoError(t, srv.Start())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))
	require.NoError(t, srv.Shutdown(ctx))
}

func TestServerRejectsMissingHandler(t *testing.T) {
	cfg := testConfig("127.0.0.1:0", nil)
	_, err := New(cfg)
	require.Error(t, err)
}
