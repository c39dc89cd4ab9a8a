// Package respstream implements the response output pipeline of spec §4.E:
// commit-on-first-write preamble emission, optional chunked framing, and
// optional gzip/deflate compression.
package respstream

import (
	"errors"
	"io"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/yourusername/embedhttp/internal/chunked"
	"github.com/yourusername/embedhttp/internal/httpheader"
	"github.com/yourusername/embedhttp/internal/preamble"
)

// ErrIllegalState is returned by SetStatus, EnableCompression and
// SetCookies once the response has committed. The header map passed to
// New is not guarded: changes made to it after commit are not reported.
var ErrIllegalState = errors.New("respstream: response already committed")

// Encoding names a negotiated content encoding.
type Encoding int

const (
	EncodingNone Encoding = iota
	EncodingGzip
	EncodingDeflate
)

// Writer is the OutputStream-style writer handed to the application
// handler. It commits on first Write (or on Close if nothing was
// written), inserting chunked and/or compression wrappers as needed.
type Writer struct {
	sink    io.Writer
	headers *httpheader.Map
	cookies []*httpheader.Cookie

	statusCode int
	reason     string

	compressEnabled  bool
	acceptEncodings  string // the request's Accept-Encoding value
	chunkBufferSize  int

	committed bool
	closed    bool

	body io.Writer // the final, possibly wrapped, writer used after commit
	chunkedEnc  *chunked.Writer
	compressEnc io.WriteCloser
}

// New creates a Writer around the underlying connection byte stream.
func New(sink io.Writer, headers *httpheader.Map, chunkBufferSize int) *Writer {
	return &Writer{
		sink:            sink,
		headers:         headers,
		statusCode:      200,
		chunkBufferSize: chunkBufferSize,
	}
}

// SetStatus sets the response status code and optional reason phrase.
// Fails with ErrIllegalState once committed.
func (w *Writer) SetStatus(code int, reason string) error {
	if w.committed {
		return ErrIllegalState
	}
	w.statusCode = code
	w.reason = reason
	return nil
}

// EnableCompression turns on compression negotiation against acceptEncoding
// (the request's Accept-Encoding header value). Fails once committed.
func (w *Writer) EnableCompression(acceptEncoding string) error {
	if w.committed {
		return ErrIllegalState
	}
	w.compressEnabled = true
	w.acceptEncodings = acceptEncoding
	return nil
}

// SetCookies assigns the cookies to emit as Set-Cookie lines.
func (w *Writer) SetCookies(cookies []*httpheader.Cookie) error {
	if w.committed {
		return ErrIllegalState
	}
	w.cookies = cookies
	return nil
}

// Committed reports whether the preamble has been flushed to the wire.
func (w *Writer) Committed() bool {
	return w.committed
}

// UsedChunked reports whether the response was framed with
// Transfer-Encoding: chunked (true whenever no Content-Length was set
// before commit).
func (w *Writer) UsedChunked() bool {
	return w.chunkedEnc != nil
}

// Write commits the response (if not already committed) and writes p
// through the negotiated pipeline.
func (w *Writer) Write(p []byte) (int, error) {
	if !w.committed {
		if err := w.commit(false); err != nil {
			return 0, err
		}
	}
	return w.body.Write(p)
}

// Close flushes any chunked/compression trailers and commits an empty
// (Content-Length: 0) response if nothing was ever written.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	if !w.committed {
		if err := w.commit(true); err != nil {
			return err
		}
	}

	if w.compressEnc != nil {
		if err := w.compressEnc.Close(); err != nil {
			return err
		}
	}
	if w.chunkedEnc != nil {
		if err := w.chunkedEnc.Close(); err != nil {
			return err
		}
	}
	return nil
}

func negotiateEncoding(acceptEncoding string) Encoding {
	// First match wins, gzip before deflate, per spec §4.E step 2.
	hasToken := func(token string) bool {
		for _, part := range splitCommaList(acceptEncoding) {
			if part == token {
				return true
			}
		}
		return false
	}
	if hasToken("gzip") {
		return EncodingGzip
	}
	if hasToken("deflate") {
		return EncodingDeflate
	}
	return EncodingNone
}

func splitCommaList(s string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			token := trimSpaceLower(s[start:i])
			if idx := indexByte(token, ';'); idx >= 0 {
				token = token[:idx]
			}
			if token != "" {
				out = append(out, token)
			}
			start = i + 1
		}
	}
	return out
}

func trimSpaceLower(s string) string {
	start, end := 0, len(s)
	for start < end && isSpace(s[start]) {
		start++
	}
	for end > start && isSpace(s[end-1]) {
		end--
	}
	s = s[start:end]
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

func isSpace(b byte) bool { return b == ' ' || b == '\t' }

func indexByte(s string, b byte) int {
	for i := 0; i < len(s); i++ {
		if s[i] == b {
			return i
		}
	}
	return -1
}

// commit inserts the framing/compression wrappers and flushes the
// preamble. closing indicates Close() triggered commit with nothing
// written, in which case Content-Length: 0 is set explicitly.
func (w *Writer) commit(closing bool) error {
	w.committed = true

	if closing && !w.headers.Has("Content-Length") {
		w.headers.Set("Content-Length", "0")
	}

	var out io.Writer = w.sink

	useChunked := !w.headers.Has("Content-Length")
	if useChunked {
		w.headers.Set("Transfer-Encoding", "chunked")
		w.chunkedEnc = chunked.NewWriter(w.sink, w.chunkBufferSize)
		out = w.chunkedEnc
	}

	// A handler-set Content-Length fixes the exact byte count that will be
	// written; compressing on top of that would make the emitted bytes no
	// longer match it. Only compress when the response is already framed
	// with chunked encoding, whose length is not pre-declared.
	if w.compressEnabled && useChunked {
		enc := negotiateEncoding(w.acceptEncodings)
		switch enc {
		case EncodingGzip:
			w.headers.Set("Content-Encoding", "gzip")
			w.headers.Add("Vary", "Accept-Encoding")
			gz := gzip.NewWriter(out)
			w.compressEnc = gz
			out = gz
		case EncodingDeflate:
			w.headers.Set("Content-Encoding", "deflate")
			w.headers.Add("Vary", "Accept-Encoding")
			fl, _ := flate.NewWriter(out, flate.DefaultCompression)
			w.compressEnc = fl
			out = fl
		}
	}

	w.body = out

	return preamble.WriteResponse(w.sink, &preamble.Response{
		StatusCode: w.statusCode,
		Reason:     w.reason,
		Headers:    w.headers,
		Cookies:    w.cookies,
	})
}
