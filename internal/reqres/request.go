// Package reqres assembles the public-facing Request value (spec §4.I)
// from a parsed preamble, the negotiated body stream, and connection
// metadata, including X-Forwarded-* honoring and multipart detection.
package reqres

import (
	"io"
	"strconv"
	"strings"

	"github.com/yourusername/embedhttp/internal/httpheader"
	"github.com/yourusername/embedhttp/internal/multipart"
	"github.com/yourusername/embedhttp/internal/preamble"
)

// Request is the value object handed to the application handler.
type Request struct {
	Method  string
	Path    string
	Query   string
	Version string

	Headers *httpheader.Map
	Params  map[string][]string
	Cookies map[string]*httpheader.Cookie

	RemoteAddr        string
	Host              string
	Port              int
	Scheme            string
	CharacterEncoding string

	ContentType       string
	IsMultipart       bool
	MultipartBoundary string
	IsChunked         bool
	ContentEncodings  []string
	AcceptLanguages    []string
	AcceptEncodings    []string

	Files []multipart.FileInfo
	Body  io.ReadCloser

	// Close records whether the client requested Connection: close.
	Close bool
}

// ConnInfo carries the transport-level facts a Request needs but that the
// preamble parser does not know about.
type ConnInfo struct {
	RemoteAddr     string
	LocalPort      int
	Scheme         string
	DefaultCharset string
}

// Build assembles a Request from a parsed preamble and connection info.
// It does not attach a body stream; callers set req.Body once the
// bodystream pipeline has been constructed (the content-type and
// is-chunked flags it needs are already populated here).
func Build(pr *preamble.Request, info ConnInfo) *Request {
	req := &Request{
		Method:            pr.Method,
		Path:              pr.Path,
		Query:             pr.Query,
		Version:           pr.Version,
		Headers:           pr.Headers,
		Params:            pr.Params,
		RemoteAddr:        info.RemoteAddr,
		Host:              pr.Headers.Get("Host"),
		Scheme:            info.Scheme,
		Port:              info.LocalPort,
		CharacterEncoding: info.DefaultCharset,
	}

	req.ContentType = pr.Headers.Get("Content-Type")
	if mediaType, boundary, ok := parseMultipart(req.ContentType); ok {
		req.IsMultipart = true
		req.MultipartBoundary = boundary
		req.ContentType = mediaType
	}

	req.IsChunked = hasToken(pr.Headers.Get("Transfer-Encoding"), "chunked")
	if req.IsChunked {
		// Content-Length and chunked are mutually exclusive; chunked wins.
		req.Headers.Del("Content-Length")
	}

	if enc := pr.Headers.Get("Content-Encoding"); enc != "" {
		req.ContentEncodings = splitTrimmed(enc, ',')
	}
	if al := pr.Headers.Get("Accept-Language"); al != "" {
		req.AcceptLanguages = splitTrimmed(al, ',')
	}
	if ae := pr.Headers.Get("Accept-Encoding"); ae != "" {
		req.AcceptEncodings = splitTrimmed(ae, ',')
	}

	req.Cookies = make(map[string]*httpheader.Cookie)
	for _, c := range httpheader.ParseRequestCookies(pr.Headers.Get("Cookie")) {
		req.Cookies[c.Name] = c // last wins
	}

	req.Close = hasToken(pr.Headers.Get("Connection"), "close")

	applyForwardedHeaders(req)

	return req
}

func applyForwardedHeaders(req *Request) {
	if xff := req.Headers.Get("X-Forwarded-For"); xff != "" {
		if i := strings.IndexByte(xff, ','); i >= 0 {
			req.RemoteAddr = strings.TrimSpace(xff[:i])
		} else {
			req.RemoteAddr = strings.TrimSpace(xff)
		}
	}
	if host := req.Headers.Get("X-Forwarded-Host"); host != "" {
		req.Host = host
	}
	if scheme := req.Headers.Get("X-Forwarded-Proto"); scheme != "" {
		req.Scheme = scheme
	}
	if port := req.Headers.Get("X-Forwarded-Port"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			req.Port = p
		}
	}
}

func parseMultipart(contentType string) (mediaType, boundary string, ok bool) {
	lower := strings.ToLower(contentType)
	if !strings.HasPrefix(lower, "multipart/") {
		return "", "", false
	}
	parts := strings.Split(contentType, ";")
	mediaType = strings.TrimSpace(parts[0])
	for _, p := range parts[1:] {
		p = strings.TrimSpace(p)
		if v, found := strings.CutPrefix(p, "boundary="); found {
			boundary = strings.Trim(v, `"`)
			return mediaType, boundary, boundary != ""
		}
	}
	return mediaType, "", false
}

func hasToken(headerValue, token string) bool {
	for _, t := range splitTrimmed(headerValue, ',') {
		if strings.EqualFold(t, token) {
			return true
		}
	}
	return false
}

func splitTrimmed(s string, sep byte) []string {
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == sep {
			tok := strings.TrimSpace(s[start:i])
			if tok != "" {
				out = append(out, tok)
			}
			start = i + 1
		}
	}
	return out
}
