package nettune

import (
	"net"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.True(t, cfg.NoDelay)
	require.True(t, cfg.KeepAlive)
	require.Equal(t, 256*1024, cfg.RecvBuffer)
	require.Equal(t, 256*1024, cfg.SendBuffer)
}

func TestApplyOnNonTCPConnIsNoop(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	err := Apply(client, DefaultConfig())
	require.NoError(t, err)
}

func TestApplyOnRealTCPConn(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			accepted <- conn
		}
	}()

	client, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	defer client.Close()

	server := <-accepted
	defer server.Close()

	require.NoError(t, Apply(server, DefaultConfig()))
	require.NoError(t, Apply(client, nil))
}

type fakeUnwrapper struct {
	net.Conn
	inner net.Conn
}

func (f *fakeUnwrapper) NetConn() net.Conn { return f.inner }

func TestUnderlyingTCPConnUnwraps(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			accepted <- conn
		}
	}()

	client, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	defer client.Close()

	server := <-accepted
	defer server.Close()

	wrapped := &fakeUnwrapper{inner: server}
	tcp, ok := underlyingTCPConn(wrapped)
	require.True(t, ok)
	require.NotNil(t, tcp)
}

func TestUnderlyingTCPConnFalseForUnrelatedConn(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	_, ok := underlyingTCPConn(client)
	require.False(t, ok)
}

func TestApplyListenerOnNonTCPListenerIsNoop(t *testing.T) {
	sockPath := t.TempDir() + "/nettune-test.sock"
	ln, err := net.Listen("unix", sockPath)
	if err != nil {
		t.Skip("unix sockets unavailable")
	}
	defer ln.Close()
	require.NoError(t, ApplyListener(ln, DefaultConfig()))
}

func TestApplyListenerOnRealTCPListener(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	require.NoError(t, ApplyListener(ln, DefaultConfig()))
}
