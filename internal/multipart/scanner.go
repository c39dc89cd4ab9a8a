package multipart

import (
	"bufio"
	"io"
	"strings"

	"github.com/yourusername/embedhttp/internal/httpheader"
)

// Part is one section of a multipart/form-data body: its headers and a
// reader bounded to its content, up to (but not including) the next
// boundary. Any bytes of Part.Body left unread are discarded by the next
// call to Next.
type Part struct {
	Headers *httpheader.Map
	Body    io.Reader

	// FieldName and Filename are extracted from the Content-Disposition
	// header, if present. Filename == "" for a form-parameter part.
	FieldName string
	Filename  string
}

// Scanner performs a pull-based Knuth-Morris-Pratt boundary scan over a
// multipart/form-data body, yielding one Part per Next call.
type Scanner struct {
	src *bufio.Reader

	first bool // true until the first boundary has been consumed
	auto  *automaton

	firstPattern  []byte // "--" + boundary
	normalPattern []byte // CRLF + "--" + boundary

	out         []byte // bytes released by the automaton, not yet handed to the caller
	boundaryHit bool    // true once the current part's terminating boundary has matched

	current *partBody
	done    bool
}

// NewScanner creates a Scanner over body for the given boundary token
// (without the leading "--").
func NewScanner(body io.Reader, boundary string) *Scanner {
	firstPattern := []byte("--" + boundary)
	normalPattern := []byte("\r\n--" + boundary)
	return &Scanner{
		src:           bufio.NewReaderSize(body, 32*1024),
		first:         true,
		auto:          newAutomaton(firstPattern),
		firstPattern:  firstPattern,
		normalPattern: normalPattern,
	}
}

// Next advances to the next part. It returns io.EOF once the terminating
// boundary ("--boundary--") has been consumed.
func (s *Scanner) Next() (*Part, error) {
	if s.done {
		return nil, io.EOF
	}
	if s.current != nil {
		if err := s.current.discard(); err != nil {
			return nil, err
		}
		s.current = nil
	}

	if s.first {
		// Only the very first boundary needs an explicit scan: every
		// later one is found while streaming the previous part's body.
		if err := s.scanToBoundary(); err != nil {
			return nil, err
		}
	}

	// After every boundary, two bytes decide: CRLF (another part) or
	// "--" (terminator). Any other pair fails the parse.
	b0, err := s.src.ReadByte()
	if err != nil {
		return nil, &ParseError{Reason: "ran out of data"}
	}
	b1, err := s.src.ReadByte()
	if err != nil {
		return nil, &ParseError{Reason: "ran out of data"}
	}

	switch {
	case b0 == '\r' && b1 == '\n':
		// another part follows
	case b0 == '-' && b1 == '-':
		s.done = true
		return nil, io.EOF
	default:
		return nil, &ParseError{Reason: "unexpected bytes following boundary"}
	}

	// From here on, subsequent boundaries carry the leading CRLF.
	s.first = false
	s.auto = newAutomaton(s.normalPattern)
	s.out = nil
	s.boundaryHit = false

	headers, err := parsePartHeaders(s.src)
	if err != nil {
		return nil, err
	}

	field, filename := parseContentDisposition(headers.Get("Content-Disposition"))
	body := &partBody{scanner: s}
	s.current = body

	return &Part{
		Headers:   headers,
		Body:      body,
		FieldName: field,
		Filename:  filename,
	}, nil
}

// scanToBoundary advances the underlying reader until a full boundary
// pattern match, without releasing any bytes (used only to reach the
// first boundary, skipping any preamble per RFC 7578).
func (s *Scanner) scanToBoundary() error {
	for {
		b, err := s.src.ReadByte()
		if err != nil {
			return &ParseError{Reason: "ran out of data"}
		}
		_, matched := s.auto.feed(b)
		if matched {
			s.auto.reset()
			return nil
		}
	}
}

// readPartByte returns the next byte of the current part's body, or
// io.EOF once the boundary pattern has matched (the matched bytes
// themselves are consumed, not returned).
func (s *Scanner) readPartByte() (byte, error) {
	for len(s.out) == 0 {
		if s.boundaryHit {
			return 0, io.EOF
		}
		b, err := s.src.ReadByte()
		if err != nil {
			return 0, &ParseError{Reason: "ran out of data"}
		}
		released, matched := s.auto.feed(b)
		if len(released) > 0 {
			s.out = append(s.out, released...)
		}
		if matched {
			s.auto.reset()
			s.boundaryHit = true
		}
	}
	b := s.out[0]
	s.out = s.out[1:]
	return b, nil
}

// partBody streams one part's content, stopping at the next boundary.
type partBody struct {
	scanner *Scanner
	eof     bool
}

func (p *partBody) Read(buf []byte) (int, error) {
	if p.eof {
		return 0, io.EOF
	}
	n := 0
	for n < len(buf) {
		b, err := p.scanner.readPartByte()
		if err == io.EOF {
			p.eof = true
			if n > 0 {
				return n, nil
			}
			return 0, io.EOF
		}
		if err != nil {
			return n, err
		}
		buf[n] = b
		n++
	}
	return n, nil
}

// discard consumes any unread bytes of the part so the scanner can
// proceed to the next boundary.
func (p *partBody) discard() error {
	if p.eof {
		return nil
	}
	_, err := io.Copy(io.Discard, p)
	return err
}

func parsePartHeaders(r *bufio.Reader) (*httpheader.Map, error) {
	headers := httpheader.NewMap()
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return nil, &ParseError{Reason: "ran out of data reading part headers"}
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			return headers, nil
		}
		idx := strings.IndexByte(line, ':')
		if idx < 0 {
			return nil, &ParseError{Reason: "malformed part header line"}
		}
		name := strings.TrimSpace(line[:idx])
		value := strings.TrimSpace(line[idx+1:])
		headers.Add(name, value)
	}
}

// parseContentDisposition extracts the "name" and "filename" parameters
// from a Content-Disposition: form-data header value.
func parseContentDisposition(value string) (field, filename string) {
	parts := strings.Split(value, ";")
	for _, p := range parts[1:] {
		p = strings.TrimSpace(p)
		eq := strings.IndexByte(p, '=')
		if eq < 0 {
			continue
		}
		key := strings.TrimSpace(p[:eq])
		val := strings.TrimSpace(p[eq+1:])
		val = strings.Trim(val, `"`)
		switch strings.ToLower(key) {
		case "name":
			field = val
		case "filename":
			filename = val
		}
	}
	return field, filename
}
