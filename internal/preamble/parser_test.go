package preamble

import (
	"io"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/yourusername/embedhttp/internal/pushback"
)

func parse(t *testing.T, raw string) *Request {
	t.Helper()
	p := NewParser(256, 0)
	pb := pushback.New(newStringReader(raw))
	req, err := p.Parse(pb)
	require.NoError(t, err)
	return req
}

func newStringReader(s string) *stringReader {
	return &stringReader{s: s}
}

type stringReader struct{ s string }

func (r *stringReader) Read(p []byte) (int, error) {
	if len(r.s) == 0 {
		return 0, io.EOF
	}
	n := copy(p, r.s)
	r.s = r.s[n:]
	return n, nil
}

func TestParseSimpleGET(t *testing.T) {
	req := parse(t, "GET /hello?x=1 HTTP/1.1\r\nHost: example.com\r\n\r\n")
	require.Equal(t, "GET", req.Method)
	require.Equal(t, "/hello", req.Path)
	require.Equal(t, "x=1", req.Query)
	require.Equal(t, "HTTP/1.1", req.Version)
	require.Equal(t, "example.com", req.Headers.Get("Host"))
	require.Equal(t, []string{"1"}, req.Params["x"])
}

func TestParsePreservesHeaderOrderAndCase(t *testing.T) {
	req := parse(t, "GET / HTTP/1.1\r\nX-B: 1\r\nX-A: 2\r\n\r\n")
	require.Equal(t, []string{"X-B", "X-A"}, req.Headers.Names())
}

func TestParseRejectsBadMethodChar(t *testing.T) {
	p := NewParser(256, 0)
	pb := pushback.New(newStringReader("GE T / HTTP/1.1\r\n\r\n"))
	_, err := p.Parse(pb)
	require.Error(t, err)
}

func TestParseMaxPreambleBytes(t *testing.T) {
	p := NewParser(256, 10)
	pb := pushback.New(newStringReader("GET /this-is-a-long-path HTTP/1.1\r\n\r\n"))
	_, err := p.Parse(pb)
	require.Error(t, err)
	var tooLarge *RequestTooLarge
	require.ErrorAs(t, err, &tooLarge)
}

func TestParsePushesBackPipelinedBytes(t *testing.T) {
	p := NewParser(256, 0)
	pb := pushback.New(newStringReader("GET /a HTTP/1.1\r\n\r\nGET /b HTTP/1.1\r\n\r\n"))
	req, err := p.Parse(pb)
	require.NoError(t, err)
	require.Equal(t, "/a", req.Path)
	require.True(t, pb.HasPending())

	req2, err := p.Parse(pb)
	require.NoError(t, err)
	require.Equal(t, "/b", req2.Path)
}
