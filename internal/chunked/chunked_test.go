package chunked

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReaderSimple(t *testing.T) {
	input := "4\r\nWiki\r\n5\r\npedia\r\n0\r\n\r\n"
	r := NewReader(strings.NewReader(input))
	out, err := io.ReadAll(r)
	require.NoError(t, err)
	require.Equal(t, "Wikipedia", string(out))
}

func TestReaderWithExtensionsAndEmbeddedCRLF(t *testing.T) {
	input := "4;foo=bar\r\nWiki\r\n5\r\npedia\r\nE\r\n in\r\n\r\nchunks.\r\n0\r\n\r\n"
	r := NewReader(strings.NewReader(input))
	out, err := io.ReadAll(r)
	require.NoError(t, err)
	require.Equal(t, "Wikipedia in\r\n\r\nchunks.", string(out))
}

func TestReaderWithTrailer(t *testing.T) {
	input := "4\r\nWiki\r\n0\r\nX-Trailer: ignored\r\n\r\n"
	r := NewReader(strings.NewReader(input))
	out, err := io.ReadAll(r)
	require.NoError(t, err)
	require.Equal(t, "Wiki", string(out))
}

func TestReaderRejectsBadSize(t *testing.T) {
	r := NewReader(strings.NewReader("zz\r\nfoo\r\n0\r\n\r\n"))
	_, err := io.ReadAll(r)
	require.Error(t, err)
	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	require.Equal(t, ChunkSize, pe.Phase)
}

func TestReaderRejectsOversizedChunk(t *testing.T) {
	r := NewReader(strings.NewReader("ffffffff\r\n"))
	_, err := io.ReadAll(r)
	require.Error(t, err)
}

func TestReaderBoundedReadDoesNotBlockOnNextChunk(t *testing.T) {
	pr, pw := io.Pipe()
	go func() {
		_, _ = pw.Write([]byte("3\r\nabc\r\n"))
		_ = pw.Close()
	}()
	r := NewReader(pr)
	buf := make([]byte, 16)
	n, err := r.Read(buf)
	require.NoError(t, err)
	require.Equal(t, "abc", string(buf[:n]))
}

func TestWriterRoundTrip(t *testing.T) {
	var out bytes.Buffer
	w := NewWriter(&out, 4)
	_, err := w.Write([]byte("Wikipedia"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	r := NewReader(bytes.NewReader(out.Bytes()))
	decoded, err := io.ReadAll(r)
	require.NoError(t, err)
	require.Equal(t, "Wikipedia", string(decoded))
}

func TestWriterCloseIsIdempotent(t *testing.T) {
	var out bytes.Buffer
	w := NewWriter(&out, 1024)
	require.NoError(t, w.Close())
	first := out.String()
	require.NoError(t, w.Close())
	require.Equal(t, first, out.String())
}

func TestRoundTripProperty(t *testing.T) {
	payloads := [][]byte{
		[]byte(""),
		[]byte("a"),
		bytes.Repeat([]byte("chunked round trip property "), 500),
	}
	for _, p := range payloads {
		for _, maxChunk := range []int{1, 7, 64, 4096} {
			var out bytes.Buffer
			w := NewWriter(&out, maxChunk)
			_, err := w.Write(p)
			require.NoError(t, err)
			require.NoError(t, w.Close())

			r := NewReader(bytes.NewReader(out.Bytes()))
			decoded, err := io.ReadAll(r)
			require.NoError(t, err)
			require.Equal(t, p, decoded)
		}
	}
}
