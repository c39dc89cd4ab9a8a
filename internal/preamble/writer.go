package preamble

import (
	"io"
	"net/http"
	"strconv"

	"github.com/valyala/bytebufferpool"
	"github.com/yourusername/embedhttp/internal/httpheader"
)

// Response is everything the writer needs to serialize a response
// preamble: status line, headers, and cookies.
type Response struct {
	StatusCode int
	Reason     string // looked up from the standard table when empty
	Headers    *httpheader.Map
	Cookies    []*httpheader.Cookie
}

// WriteResponse serializes status-line + headers + one Set-Cookie line per
// cookie + a blank line to w, in a single Write call (spec §4.F, §4.E
// step 3). Header values are emitted verbatim; escaping invalid
// characters is the caller's responsibility.
func WriteResponse(w io.Writer, r *Response) error {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	reason := r.Reason
	if reason == "" {
		reason = http.StatusText(r.StatusCode)
	}

	buf.WriteString("HTTP/1.1 ")
	buf.WriteString(strconv.Itoa(r.StatusCode))
	buf.WriteByte(' ')
	buf.WriteString(reason)
	buf.WriteString("\r\n")

	if r.Headers != nil {
		r.Headers.Range(func(name, value string) {
			buf.WriteString(name)
			buf.WriteString(": ")
			buf.WriteString(value)
			buf.WriteString("\r\n")
		})
	}

	for _, c := range r.Cookies {
		buf.WriteString("Set-Cookie: ")
		buf.WriteString(c.String())
		buf.WriteString("\r\n")
	}

	buf.WriteString("\r\n")

	_, err := w.Write(buf.Bytes())
	return err
}
