// Package bodystream builds the request-body input pipeline described in
// spec §4.D: a primary fixed-length-or-chunked wrapper, optional
// Content-Encoding inflaters applied in reverse order, and an outer
// maximum-content-length enforcer.
package bodystream

import (
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/yourusername/embedhttp/internal/chunked"
)

// ContentTooLarge is returned once delivered bytes exceed the configured
// limit, or the declared Content-Length exceeds it up front.
type ContentTooLarge struct {
	Limit int64
}

func (e *ContentTooLarge) Error() string {
	return fmt.Sprintf("bodystream: content exceeds limit of %d bytes", e.Limit)
}

// TooManyBytesToDrain is returned by Drain when more than MaxBytes had to
// be discarded.
type TooManyBytesToDrain struct {
	Drained int64
	Limit   int64
}

func (e *TooManyBytesToDrain) Error() string {
	return fmt.Sprintf("bodystream: drained %d bytes, exceeding limit of %d", e.Drained, e.Limit)
}

// UnsupportedEncoding is returned for a Transfer-Encoding token other than
// "chunked" (spec §6: only chunked is recognized, anything else is 501).
type UnsupportedEncoding struct {
	Name string
}

func (e *UnsupportedEncoding) Error() string {
	return fmt.Sprintf("bodystream: unsupported transfer-encoding %q", e.Name)
}

// SizeLimiter resolves a byte-count limit for a request by content-type,
// using the longest-match scheme from spec §4.D: exact "type/subtype"
// wins, then the "type/*" family wildcard, then the global "*" default.
type SizeLimiter struct {
	byExact  map[string]int64
	byFamily map[string]int64
	global   int64
}

// NewSizeLimiter builds a limiter from a content-type-pattern map plus a
// global fallback (0 means unlimited).
func NewSizeLimiter(limits map[string]int64, global int64) *SizeLimiter {
	sl := &SizeLimiter{
		byExact:  make(map[string]int64),
		byFamily: make(map[string]int64),
		global:   global,
	}
	for pattern, limit := range limits {
		switch {
		case pattern == "*":
			sl.global = limit
		case strings.HasSuffix(pattern, "/*"):
			sl.byFamily[strings.TrimSuffix(pattern, "/*")] = limit
		default:
			sl.byExact[pattern] = limit
		}
	}
	return sl
}

// Limit returns the byte limit that applies to contentType, or 0 for
// unlimited.
func (sl *SizeLimiter) Limit(contentType string) int64 {
	if sl == nil {
		return 0
	}
	mediaType := contentType
	if i := strings.IndexByte(mediaType, ';'); i >= 0 {
		mediaType = mediaType[:i]
	}
	mediaType = strings.TrimSpace(strings.ToLower(mediaType))

	if limit, ok := sl.byExact[mediaType]; ok {
		return limit
	}
	if i := strings.IndexByte(mediaType, '/'); i >= 0 {
		if limit, ok := sl.byFamily[mediaType[:i]]; ok {
			return limit
		}
	}
	return sl.global
}

// DrainCloser is the body handle returned by Build: a normal ReadCloser
// plus the explicit Drain operation the worker uses between requests on
// a keep-alive connection.
type DrainCloser interface {
	io.ReadCloser
	Drain(maxBytes int64) error
}

// Options configures Build.
type Options struct {
	ContentLength int64 // -1 if absent
	Chunked       bool
	// TransferEncoding is the raw Transfer-Encoding header value, if any.
	// Build rejects any token set other than exactly "chunked" (spec §6).
	TransferEncoding string
	ContentEncodings []string // applied in reverse order
	ContentType      string
	Limiter          *SizeLimiter
	MaxChunkSize     uint64
}

// Build composes the input pipeline for one request body per the decision
// table in spec §4.D.
func Build(r io.Reader, opt Options) (DrainCloser, error) {
	if name, ok := unsupportedTransferCoding(opt.TransferEncoding); ok {
		return nil, &UnsupportedEncoding{Name: name}
	}

	var primary io.Reader
	switch {
	case opt.Chunked:
		primary = chunked.NewReader(r)
	case opt.ContentLength > 0:
		primary = io.LimitReader(r, opt.ContentLength)
	default:
		primary = io.LimitReader(r, 0)
	}

	for i := len(opt.ContentEncodings) - 1; i >= 0; i-- {
		wrapped, err := wrapEncoding(primary, opt.ContentEncodings[i])
		if err != nil {
			return nil, err
		}
		primary = wrapped
	}

	limit := opt.Limiter.Limit(opt.ContentType)
	if limit > 0 && opt.ContentLength > limit {
		return nil, &ContentTooLarge{Limit: limit}
	}

	return &limitedBody{r: primary, limit: limit}, nil
}

// unsupportedTransferCoding reports the first token in a Transfer-Encoding
// header value that is not "chunked" (spec §6: only chunked is recognized;
// any other value, including an additional token alongside chunked, is
// rejected with 501).
func unsupportedTransferCoding(value string) (name string, ok bool) {
	for _, tok := range strings.Split(value, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		if !strings.EqualFold(tok, "chunked") {
			return tok, true
		}
	}
	return "", false
}

func wrapEncoding(r io.Reader, encoding string) (io.Reader, error) {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "gzip", "x-gzip":
		gr, err := gzip.NewReader(r)
		if err != nil {
			return nil, err
		}
		return gr, nil
	case "deflate":
		return flate.NewReader(r), nil
	case "identity", "":
		return r, nil
	default:
		// Unknown encodings pass through unchanged, per spec §4.D: the
		// caller sees the raw encoded bytes.
		return r, nil
	}
}

// limitedBody tracks bytes delivered to the caller and fails once the
// running total exceeds limit (0 = unlimited). It also implements Drain,
// consuming and discarding remaining bytes up to a caller-supplied cap.
type limitedBody struct {
	r         io.Reader
	limit     int64
	delivered int64
	drained   bool
}

func (b *limitedBody) Read(p []byte) (int, error) {
	n, err := b.r.Read(p)
	if n > 0 {
		b.delivered += int64(n)
		if b.limit > 0 && b.delivered > b.limit {
			return n, &ContentTooLarge{Limit: b.limit}
		}
	}
	return n, err
}

// Drain consumes and discards the remainder of the body, up to maxBytes.
// Calling Drain a second time is a no-op (idempotent), per spec §8's
// "drain idempotence" property.
func (b *limitedBody) Drain(maxBytes int64) error {
	if b.drained {
		return nil
	}
	b.drained = true

	var total int64
	buf := make([]byte, 32*1024)
	for {
		n, err := b.r.Read(buf)
		total += int64(n)
		if maxBytes > 0 && total > maxBytes {
			return &TooManyBytesToDrain{Drained: total, Limit: maxBytes}
		}
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
	}
}

// Close drains implicitly, per spec §4.D.
func (b *limitedBody) Close() error {
	return b.Drain(0)
}
