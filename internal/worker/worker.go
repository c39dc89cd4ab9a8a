// Package worker implements the per-connection state machine of spec
// §4.J: a worker goroutine owns one connection and loops through
// AwaitingRequest, ReadingPreamble, HandlerRunning, WritingResponse,
// DrainingRequest, Idle, and Closing until the connection is no longer
// reusable, grounded on the teacher's Connection.Serve keep-alive loop.
package worker

import (
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"github.com/yourusername/embedhttp/internal/bodystream"
	"github.com/yourusername/embedhttp/internal/httpheader"
	"github.com/yourusername/embedhttp/internal/meter"
	"github.com/yourusername/embedhttp/internal/multipart"
	"github.com/yourusername/embedhttp/internal/preamble"
	"github.com/yourusername/embedhttp/internal/pushback"
	"github.com/yourusername/embedhttp/internal/reqres"
	"github.com/yourusername/embedhttp/internal/respstream"
)

// Handler processes one request. Returning an error maps to a 500 (or a
// *HandlerException's preferred status) if the response has not yet
// committed; if it has, the connection is simply closed.
type Handler func(*reqres.Request, *respstream.Writer) error

// MultipartConfig mirrors the `multipart` block of the configuration
// surface (spec §4.M).
type MultipartConfig struct {
	Enabled bool
	Options multipart.Options
}

// Config collects the per-worker tunables drawn from spec §4.M.
type Config struct {
	RequestBufferSize int
	MaxPreambleBytes  int
	MaxBytesToDrain   int64
	ChunkedBufferSize int

	BodySizeLimiter *bodystream.SizeLimiter
	MaxChunkSize    uint64

	InitialReadTimeout     time.Duration
	KeepAliveTimeout       time.Duration
	ReadThroughputWarmup   time.Duration
	WriteThroughputWarmup  time.Duration
	MinReadThroughput      float64
	MinWriteThroughput     float64

	CompressByDefault bool
	Multipart         MultipartConfig

	MaxRequestsPerConnection int
	DefaultCharset           string

	Instrumenter Instrumenter

	// OnIdleChange, if set, is called with the raw connection and true
	// immediately before the worker blocks waiting for the next request's
	// preamble (the AwaitingRequest state), and with false as soon as
	// that wait ends. It lets an owning server interrupt idle connections
	// immediately during shutdown instead of waiting out the keep-alive
	// timeout.
	OnIdleChange func(conn net.Conn, idle bool)
}

// Worker serves connections handed to it, one at a time, by calling Serve.
type Worker struct {
	cfg     Config
	handler Handler
}

// New creates a Worker bound to handler.
func New(cfg Config, handler Handler) *Worker {
	if cfg.Instrumenter == nil {
		cfg.Instrumenter = NoopInstrumenter{}
	}
	return &Worker{cfg: cfg, handler: handler}
}

// bodyMethodsWithoutBody are the methods that never carry a request body,
// so Expect: 100-continue and the 411-without-framing check do not apply.
var bodyMethodsWithoutBody = map[string]bool{
	"GET": true, "HEAD": true, "DELETE": true, "OPTIONS": true, "TRACE": true,
}

// Serve runs the connection loop until the connection closes or is no
// longer reusable. info carries the transport facts (remote address,
// local port, scheme) that the preamble parser cannot know about.
func (w *Worker) Serve(conn net.Conn, info reqres.ConnInfo) {
	inst := w.cfg.Instrumenter
	defer conn.Close()

	inst.AcceptedConnection(info.RemoteAddr)

	m := meter.New(w.cfg.ReadThroughputWarmup, w.cfg.WriteThroughputWarmup)
	mc := &meteredConn{Conn: conn, m: m}
	pb := pushback.New(mc)
	parser := preamble.NewParser(w.cfg.RequestBufferSize, w.cfg.MaxPreambleBytes)

	requestCount := 0
	for {
		// AwaitingRequest
		timeout := w.cfg.KeepAliveTimeout
		if requestCount == 0 {
			timeout = w.cfg.InitialReadTimeout
		}
		if timeout > 0 {
			_ = mc.SetReadDeadline(time.Now().Add(timeout))
		}

		closeReason, keepAlive := w.serveOne(conn, mc, pb, parser, info, m, requestCount)
		requestCount++
		if !keepAlive {
			inst.ConnectionClosed(closeReason)
			return
		}
	}
}

// serveOne runs ReadingPreamble through DrainingRequest for a single
// request and reports whether the connection remains reusable.
func (w *Worker) serveOne(
	conn net.Conn,
	mc *meteredConn,
	pb *pushback.Stream,
	parser *preamble.Parser,
	info reqres.ConnInfo,
	m *meter.Meter,
	requestNum int,
) (closeReason string, keepAlive bool) {
	inst := w.cfg.Instrumenter

	// AwaitingRequest / ReadingPreamble
	if w.cfg.OnIdleChange != nil {
		w.cfg.OnIdleChange(conn, true)
	}
	pr, err := parser.Parse(pb)
	if w.cfg.OnIdleChange != nil {
		w.cfg.OnIdleChange(conn, false)
	}
	if err != nil {
		if errors.Is(err, io.EOF) {
			return "eof", false
		}
		w.writeParseFailure(mc, err)
		inst.BadRequest(err)
		return "parse-error", false
	}

	inst.StartedRequest(pr.Method, pr.Path)
	req := reqres.Build(pr, info)

	// Transfer-Encoding: only "chunked" alone is recognized; any other
	// token is rejected here rather than silently falling through to the
	// 411 check below (spec §6, §9 Open Question (d)).
	if te := pr.Headers.Get("Transfer-Encoding"); te != "" {
		tokens := splitComma(te)
		if len(tokens) != 1 || tokens[0] != "chunked" {
			w.writeMinimalResponse(mc, 501, "Not Implemented")
			return "unsupported-transfer-encoding", false
		}
	}

	if pr.Headers.Get("Expect") == "100-continue" && !bodyMethodsWithoutBody[req.Method] {
		_, _ = mc.Write([]byte("HTTP/1.1 100 Continue\r\n\r\n"))
	}

	// Validate framing (req.IsChunked already took precedence over
	// Content-Length inside reqres.Build).
	hasContentLength := req.Headers.Has("Content-Length")
	if !req.IsChunked && !hasContentLength && !bodyMethodsWithoutBody[req.Method] {
		w.writeMinimalResponse(mc, 411, "Length Required")
		return "length-required", false
	}

	var contentLength int64 = -1
	if hasContentLength {
		contentLength, _ = strconv.ParseInt(req.Headers.Get("Content-Length"), 10, 64)
	}

	body, err := bodystream.Build(pb, bodystream.Options{
		ContentLength:    contentLength,
		Chunked:          req.IsChunked,
		TransferEncoding: pr.Headers.Get("Transfer-Encoding"),
		ContentEncodings: req.ContentEncodings,
		ContentType:      req.ContentType,
		Limiter:          w.cfg.BodySizeLimiter,
		MaxChunkSize:     w.cfg.MaxChunkSize,
	})
	if err != nil {
		return w.writeBodyBuildFailure(mc, err)
	}
	if req.IsChunked {
		inst.ChunkedRequest()
	}
	req.Body = body

	if req.IsMultipart {
		if !w.cfg.Multipart.Enabled || req.MultipartBoundary == "" {
			w.writeMinimalResponse(mc, 415, "Unsupported Media Type")
			return "unsupported-media", false
		}
		result, err := multipart.Process(body, req.MultipartBoundary, w.cfg.Multipart.Options)
		if err != nil {
			return w.writeMultipartFailure(mc, err)
		}
		req.Files = result.Files
		for k, v := range result.Parameters {
			req.Params[k] = append(req.Params[k], v...)
		}
		if w.cfg.Multipart.Options.DeleteTemporaryFiles {
			defer result.Cleanup()
		}
	}

	respHeaders := httpheader.NewMap()
	resp := respstream.New(mc, respHeaders, w.cfg.ChunkedBufferSize)
	if w.cfg.CompressByDefault {
		_ = resp.EnableCompression(req.Headers.Get("Accept-Encoding"))
	}
	if requestNum+1 >= w.cfg.MaxRequestsPerConnection && w.cfg.MaxRequestsPerConnection > 0 {
		respHeaders.Set("Connection", "close")
	}

	// HandlerRunning
	handlerErr := w.runHandler(req, resp)
	if handlerErr != nil {
		if !resp.Committed() {
			status, msg := 500, handlerErr.Error()
			var he *HandlerException
			if errors.As(handlerErr, &he) {
				if he.Status != 0 {
					status = he.Status
				}
				msg = he.Message
			}
			_ = resp.SetStatus(status, "")
			_, _ = resp.Write([]byte(msg))
		} else {
			_ = resp.Close()
			return "handler-error-after-commit", false
		}
	}

	// WritingResponse
	if err := resp.Close(); err != nil {
		return "write-error", false
	}
	if resp.UsedChunked() {
		inst.ChunkedResponse()
	}

	// DrainingRequest
	if err := body.Drain(w.cfg.MaxBytesToDrain); err != nil {
		return "drain-exceeded", false
	}

	if w.cfg.MinReadThroughput > 0 && m.ReadThroughput() < w.cfg.MinReadThroughput {
		return "slow-client-read", false
	}
	if w.cfg.MinWriteThroughput > 0 && m.WriteThroughput() < w.cfg.MinWriteThroughput {
		return "slow-client-write", false
	}

	return "", w.decideKeepAlive(req, respHeaders, requestNum, handlerErr)
}

func (w *Worker) decideKeepAlive(req *reqres.Request, respHeaders *httpheader.Map, requestNum int, handlerErr error) bool {
	if handlerErr != nil {
		return false
	}
	if req.Close {
		return false
	}
	if respHeaders.Get("Connection") == "close" {
		return false
	}
	if req.Version == "HTTP/1.0" {
		if !hasConnectionToken(req.Headers.Get("Connection"), "keep-alive") {
			return false
		}
	}
	if w.cfg.MaxRequestsPerConnection > 0 && requestNum+1 >= w.cfg.MaxRequestsPerConnection {
		return false
	}
	return true
}

func hasConnectionToken(value, token string) bool {
	for _, part := range splitComma(value) {
		if part == token {
			return true
		}
	}
	return false
}

func splitComma(s string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			tok := trimAndLower(s[start:i])
			if tok != "" {
				out = append(out, tok)
			}
			start = i + 1
		}
	}
	return out
}

func trimAndLower(s string) string {
	start, end := 0, len(s)
	for start < end && (s[start] == ' ' || s[start] == '\t') {
		start++
	}
	for end > start && (s[end-1] == ' ' || s[end-1] == '\t') {
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

// runHandler invokes the user handler, converting a panic into a 500
// HandlerException so the worker can still write a response if nothing
// has committed yet.
func (w *Worker) runHandler(req *reqres.Request, resp *respstream.Writer) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &HandlerException{Status: 500, Message: fmt.Sprintf("panic: %v", r)}
		}
	}()
	return w.handler(req, resp)
}

func (w *Worker) writeParseFailure(conn net.Conn, err error) {
	var tooLarge *preamble.RequestTooLarge
	if errors.As(err, &tooLarge) {
		w.writeMinimalResponse(conn, 431, "Request Header Fields Too Large")
		return
	}
	w.writeMinimalResponse(conn, 400, "Bad Request")
}

func (w *Worker) writeBodyBuildFailure(conn net.Conn, err error) (string, bool) {
	var tooLarge *bodystream.ContentTooLarge
	var unsupported *bodystream.UnsupportedEncoding
	switch {
	case errors.As(err, &tooLarge):
		w.writeMinimalResponse(conn, 413, "Payload Too Large")
		return "content-too-large", false
	case errors.As(err, &unsupported):
		w.writeMinimalResponse(conn, 501, "Not Implemented")
		return "unsupported-transfer-encoding", false
	default:
		w.writeMinimalResponse(conn, 400, "Bad Request")
		return "body-build-error", false
	}
}

func (w *Worker) writeMultipartFailure(conn net.Conn, err error) (string, bool) {
	var tooLarge *multipart.ContentTooLarge
	var parseErr *multipart.ParseError
	switch {
	case errors.As(err, &tooLarge):
		w.writeMinimalResponse(conn, 413, "Payload Too Large")
		return "multipart-too-large", false
	case errors.As(err, &parseErr):
		w.writeMinimalResponse(conn, 400, "Bad Request")
		return "multipart-parse-error", false
	case errors.Is(err, multipart.Rejected):
		w.writeMinimalResponse(conn, 403, "Forbidden")
		return "multipart-rejected", false
	default:
		w.writeMinimalResponse(conn, 400, "Bad Request")
		return "multipart-error", false
	}
}

func (w *Worker) writeMinimalResponse(conn net.Conn, status int, reason string) {
	headers := httpheader.NewMap()
	headers.Set("Content-Length", "0")
	headers.Set("Connection", "close")
	_ = preamble.WriteResponse(conn, &preamble.Response{
		StatusCode: status,
		Reason:     reason,
		Headers:    headers,
	})
}
