package reqres

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/yourusername/embedhttp/internal/httpheader"
	"github.com/yourusername/embedhttp/internal/preamble"
)

func newPreambleRequest(headers map[string]string) *preamble.Request {
	h := httpheader.NewMap()
	for k, v := range headers {
		h.Set(k, v)
	}
	return &preamble.Request{
		Method:  "GET",
		Path:    "/widgets",
		Version: "HTTP/1.1",
		Headers: h,
		Params:  map[string][]string{},
	}
}

func TestBuildDropsContentLengthWhenChunked(t *testing.T) {
	pr := newPreambleRequest(map[string]string{
		"Transfer-Encoding": "chunked",
		"Content-Length":    "100",
	})
	req := Build(pr, ConnInfo{RemoteAddr: "10.0.0.1:1234", Scheme: "http"})
	require.True(t, req.IsChunked)
	require.False(t, req.Headers.Has("Content-Length"))
}

func TestBuildUsesHostHeaderNotRemoteAddr(t *testing.T) {
	pr := newPreambleRequest(map[string]string{
		"Host": "example.com:8443",
	})
	req := Build(pr, ConnInfo{RemoteAddr: "10.0.0.1:1234", Scheme: "http"})
	require.Equal(t, "example.com:8443", req.Host)
	require.Equal(t, "10.0.0.1:1234", req.RemoteAddr)
}

func TestBuildDetectsMultipartBoundary(t *testing.T) {
	pr := newPreambleRequest(map[string]string{
		"Content-Type": `multipart/form-data; boundary="XBoundary"`,
	})
	req := Build(pr, ConnInfo{RemoteAddr: "10.0.0.1:1234"})
	require.True(t, req.IsMultipart)
	require.Equal(t, "XBoundary", req.MultipartBoundary)
	require.Equal(t, "multipart/form-data", req.ContentType)
}

func TestBuildHonoursForwardedHeaders(t *testing.T) {
	pr := newPreambleRequest(map[string]string{
		"X-Forwarded-For":   "203.0.113.5, 70.41.3.18",
		"X-Forwarded-Host":  "public.example.com",
		"X-Forwarded-Proto": "https",
		"X-Forwarded-Port":  "443",
	})
	req := Build(pr, ConnInfo{RemoteAddr: "10.0.0.1:1234", Scheme: "http", LocalPort: 8080})
	require.Equal(t, "203.0.113.5", req.RemoteAddr)
	require.Equal(t, "public.example.com", req.Host)
	require.Equal(t, "https", req.Scheme)
	require.Equal(t, 443, req.Port)
}

func TestBuildParsesCookiesLastWins(t *testing.T) {
	pr := newPreambleRequest(map[string]string{
		"Cookie": "a=1; b=2; a=3",
	})
	req := Build(pr, ConnInfo{})
	require.Equal(t, "3", req.Cookies["a"].Value)
	require.Equal(t, "2", req.Cookies["b"].Value)
}

func TestBuildDetectsConnectionClose(t *testing.T) {
	pr := newPreambleRequest(map[string]string{"Connection": "close"})
	req := Build(pr, ConnInfo{})
	require.True(t, req.Close)
}
