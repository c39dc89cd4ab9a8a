// Package preamble implements the HTTP/1.1 request-line + header state
// machine (spec §4.F) and the matching response preamble writer.
package preamble

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/yourusername/embedhttp/internal/charclass"
	"github.com/yourusername/embedhttp/internal/httpheader"
	"github.com/yourusername/embedhttp/internal/pushback"
)

// State enumerates the request-line/header parser's phases, exactly as
// named in spec §4.F.
type State int

const (
	MethodStart State = iota
	Method
	MethodSP
	RequestTarget
	RequestTargetSP
	Version
	VersionCR
	VersionLF
	HeaderName
	HeaderColon
	HeaderValueStart
	HeaderValue
	HeaderCR
	HeaderLF
	FinalCR
	Complete
)

func (s State) String() string {
	names := [...]string{
		"MethodStart", "Method", "MethodSP", "RequestTarget", "RequestTargetSP",
		"Version", "VersionCR", "VersionLF", "HeaderName", "HeaderColon",
		"HeaderValueStart", "HeaderValue", "HeaderCR", "HeaderLF", "FinalCR", "Complete",
	}
	if int(s) < len(names) {
		return names[s]
	}
	return "Unknown"
}

// ParseError reports the offending byte and the state the parser was in.
// It maps to an HTTP 400 response per spec §7.
type ParseError struct {
	Byte  byte
	State State
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("preamble: unexpected byte %q in state %s", e.Byte, e.State)
}

// RequestTooLarge is returned when the preamble exceeds the configured
// maximum byte budget. It maps to HTTP 431 per spec §7.
type RequestTooLarge struct {
	Limit int
}

func (e *RequestTooLarge) Error() string {
	return fmt.Sprintf("preamble: exceeds max-preamble-bytes limit of %d", e.Limit)
}

// Request is the parsed request-line and header section. It does not
// decode the body; that is the caller's job using Headers and the
// ContentLength/Chunked flags derived here.
type Request struct {
	Method  string
	Path    string
	Query   string
	Version string
	Headers *httpheader.Map

	// Params holds query-string values merged in first, before any
	// application/x-www-form-urlencoded body fields are added later by
	// the caller (spec §4.F).
	Params map[string][]string
}

// Parser parses one HTTP/1.1 request preamble at a time from a
// pushback.Stream, reusing its internal scratch buffer across requests.
type Parser struct {
	maxBytes int
	scratch  []byte
}

// NewParser creates a parser with the given scratch-buffer size and
// maximum preamble byte budget.
func NewParser(bufferSize, maxPreambleBytes int) *Parser {
	if bufferSize <= 0 {
		bufferSize = 8192
	}
	return &Parser{
		maxBytes: maxPreambleBytes,
		scratch:  make([]byte, bufferSize),
	}
}

// Parse reads and decodes one request preamble from pb. Any bytes read
// past the terminating blank line are pushed back onto pb so the body
// reader (or the next pipelined request's parser) can consume them.
func (p *Parser) Parse(pb *pushback.Stream) (*Request, error) {
	st := newParseState()

	for {
		n, err := pb.Read(p.scratch)
		if n == 0 && err != nil {
			return nil, err
		}
		chunk := p.scratch[:n]
		consumed, perr := st.consume(chunk, p.maxBytes)
		if perr != nil {
			return nil, perr
		}
		if st.state == Complete {
			if leftover := chunk[consumed:]; len(leftover) > 0 {
				if pushErr := pb.Push(leftover); pushErr != nil {
					return nil, pushErr
				}
			}
			return st.finish()
		}
		if err != nil {
			return nil, err
		}
	}
}

// parseState accumulates the in-progress request line and header fields.
type parseState struct {
	state State

	methodBuf []byte
	targetBuf []byte
	versionBuf []byte

	curName  []byte
	curValue []byte

	headers *httpheader.Map
	total   int
}

func newParseState() *parseState {
	return &parseState{state: MethodStart, headers: httpheader.NewMap()}
}

// consume processes buf byte by byte, returning the number of bytes
// consumed (which is len(buf) unless the Complete state was reached
// partway through) and any parse/size error.
func (s *parseState) consume(buf []byte, maxBytes int) (int, error) {
	for i, b := range buf {
		s.total++
		if maxBytes > 0 && s.total > maxBytes {
			return i, &RequestTooLarge{Limit: maxBytes}
		}
		if err := s.step(b); err != nil {
			return i, err
		}
		if s.state == Complete {
			return i + 1, nil
		}
	}
	return len(buf), nil
}

func (s *parseState) step(b byte) error {
	switch s.state {
	case MethodStart:
		if !charclass.IsTokenChar(b) {
			return &ParseError{Byte: b, State: s.state}
		}
		s.methodBuf = append(s.methodBuf, b)
		s.state = Method
	case Method:
		switch {
		case b == ' ':
			s.state = MethodSP
		case charclass.IsTokenChar(b):
			s.methodBuf = append(s.methodBuf, b)
		default:
			return &ParseError{Byte: b, State: s.state}
		}
	case MethodSP:
		if b <= 0x20 {
			return &ParseError{Byte: b, State: s.state}
		}
		s.targetBuf = append(s.targetBuf, b)
		s.state = RequestTarget
	case RequestTarget:
		switch {
		case b == ' ':
			s.state = RequestTargetSP
		case b == '\r' || b == '\n':
			return &ParseError{Byte: b, State: s.state}
		default:
			s.targetBuf = append(s.targetBuf, b)
		}
	case RequestTargetSP:
		if b != 'H' {
			return &ParseError{Byte: b, State: s.state}
		}
		s.versionBuf = append(s.versionBuf, b)
		s.state = Version
	case Version:
		switch b {
		case '\r':
			s.state = VersionCR
		case '\n':
			return &ParseError{Byte: b, State: s.state}
		default:
			s.versionBuf = append(s.versionBuf, b)
		}
	case VersionCR:
		if b != '\n' {
			return &ParseError{Byte: b, State: s.state}
		}
		s.state = VersionLF
	case VersionLF:
		return s.startHeaderOrFinish(b)
	case HeaderName:
		switch {
		case b == ':':
			s.state = HeaderColon
		case charclass.IsTokenChar(b):
			s.curName = append(s.curName, b)
		default:
			return &ParseError{Byte: b, State: s.state}
		}
	case HeaderColon:
		if charclass.IsWhitespace(b) {
			s.state = HeaderValueStart
			return nil
		}
		s.curValue = append(s.curValue, b)
		s.state = HeaderValue
	case HeaderValueStart:
		if charclass.IsWhitespace(b) {
			return nil
		}
		if b == '\r' {
			s.commitHeader()
			s.state = HeaderCR
			return nil
		}
		s.curValue = append(s.curValue, b)
		s.state = HeaderValue
	case HeaderValue:
		switch {
		case b == '\r':
			s.commitHeader()
			s.state = HeaderCR
		case charclass.IsValueChar(b):
			s.curValue = append(s.curValue, b)
		default:
			return &ParseError{Byte: b, State: s.state}
		}
	case HeaderCR:
		if b != '\n' {
			return &ParseError{Byte: b, State: s.state}
		}
		s.state = HeaderLF
	case HeaderLF:
		return s.startHeaderOrFinish(b)
	case FinalCR:
		if b != '\n' {
			return &ParseError{Byte: b, State: s.state}
		}
		s.state = Complete
	default:
		return &ParseError{Byte: b, State: s.state}
	}
	return nil
}

// startHeaderOrFinish is entered right after a CRLF: either another header
// field-line begins, or (CRLF immediately) the preamble is complete.
func (s *parseState) startHeaderOrFinish(b byte) error {
	if b == '\r' {
		s.state = FinalCR
		return nil
	}
	if !charclass.IsTokenChar(b) {
		return &ParseError{Byte: b, State: s.state}
	}
	s.curName = []byte{b}
	s.curValue = nil
	s.state = HeaderName
	return nil
}

func (s *parseState) commitHeader() {
	name := strings.TrimRight(string(s.curName), " \t")
	value := strings.TrimSpace(string(s.curValue))
	s.headers.Add(name, value)
	s.curName = nil
	s.curValue = nil
}

func (s *parseState) finish() (*Request, error) {
	target := string(s.targetBuf)
	path, query := splitTarget(target)

	params, err := url.ParseQuery(query)
	_ = err // malformed percent-escapes are skipped, not fatal, per spec §4.F

	merged := make(map[string][]string, len(params))
	for k, v := range params {
		merged[k] = append(merged[k], v...)
	}

	return &Request{
		Method:  string(s.methodBuf),
		Path:    path,
		Query:   query,
		Version: string(s.versionBuf),
		Headers: s.headers,
		Params:  merged,
	}, nil
}

func splitTarget(target string) (path, query string) {
	if i := strings.IndexByte(target, '?'); i >= 0 {
		return target[:i], target[i+1:]
	}
	return target, ""
}
