package respstream

import (
	"bytes"
	"compress/gzip"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/yourusername/embedhttp/internal/chunked"
	"github.com/yourusername/embedhttp/internal/httpheader"
)

func TestWriteSetsContentLengthZeroOnEmptyClose(t *testing.T) {
	var out bytes.Buffer
	h := httpheader.NewMap()
	w := New(&out, h, 4096)
	require.NoError(t, w.Close())
	require.Contains(t, out.String(), "Content-Length: 0")
}

func TestWriteUsesChunkedWhenNoContentLength(t *testing.T) {
	var out bytes.Buffer
	h := httpheader.NewMap()
	w := New(&out, h, 4096)
	_, err := w.Write([]byte("hello"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	require.Contains(t, out.String(), "Transfer-Encoding: chunked")
	preambleEnd := strings.Index(out.String(), "\r\n\r\n") + 4
	body := out.String()[preambleEnd:]
	r := chunked.NewReader(strings.NewReader(body))
	decoded, err := io.ReadAll(r)
	require.NoError(t, err)
	require.Equal(t, "hello", string(decoded))
}

func TestWriteRespectsExplicitContentLength(t *testing.T) {
	var out bytes.Buffer
	h := httpheader.NewMap()
	h.Set("Content-Length", "5")
	w := New(&out, h, 4096)
	_, err := w.Write([]byte("hello"))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NotContains(t, out.String(), "Transfer-Encoding")
}

func TestExplicitContentLengthSkipsCompression(t *testing.T) {
	var out bytes.Buffer
	h := httpheader.NewMap()
	h.Set("Content-Length", "5")
	w := New(&out, h, 4096)
	require.NoError(t, w.EnableCompression("gzip"))
	_, err := w.Write([]byte("hello"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	s := out.String()
	require.NotContains(t, s, "Content-Encoding")
	preambleEnd := strings.Index(s, "\r\n\r\n") + 4
	require.Equal(t, "hello", s[preambleEnd:])
}

func TestCompressionTransparency(t *testing.T) {
	var out bytes.Buffer
	h := httpheader.NewMap()
	w := New(&out, h, 4096)
	require.NoError(t, w.EnableCompression("gzip, deflate"))
	_, err := w.Write([]byte("payload bytes"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	s := out.String()
	require.Contains(t, s, "Content-Encoding: gzip")
	require.Contains(t, s, "Vary: Accept-Encoding")

	preambleEnd := strings.Index(s, "\r\n\r\n") + 4
	body := s[preambleEnd:]
	chunkedReader := chunked.NewReader(strings.NewReader(body))
	gz, err := gzip.NewReader(chunkedReader)
	require.NoError(t, err)
	decoded, err := io.ReadAll(gz)
	require.NoError(t, err)
	require.Equal(t, "payload bytes", string(decoded))
}

func TestMutationAfterCommitFails(t *testing.T) {
	var out bytes.Buffer
	h := httpheader.NewMap()
	w := New(&out, h, 4096)
	_, err := w.Write([]byte("x"))
	require.NoError(t, err)
	require.ErrorIs(t, w.SetStatus(500, ""), ErrIllegalState)
	require.ErrorIs(t, w.EnableCompression("gzip"), ErrIllegalState)
}
