package httpheader

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SameSite enumerates the three legal values of the cookie SameSite
// attribute (RFC 6265bis / spec §6).
type SameSite int

const (
	SameSiteDefault SameSite = iota
	SameSiteLax
	SameSiteNone
	SameSiteStrict
)

func (s SameSite) String() string {
	switch s {
	case SameSiteLax:
		return "Lax"
	case SameSiteNone:
		return "None"
	case SameSiteStrict:
		return "Strict"
	default:
		return ""
	}
}

// Cookie models both a parsed request cookie and a response cookie to be
// serialized as Set-Cookie (spec §3 Cookie).
type Cookie struct {
	Name     string
	Value    string
	Domain   string
	Path     string
	SameSite SameSite
	Expires  time.Time
	MaxAge   int // seconds; 0 means unset
	Secure   bool
	HTTPOnly bool

	// Attributes holds any unrecognized Set-Cookie attribute encountered
	// while parsing, keyed by its original (non-canonicalized) name; the
	// value is "" for a bare flag attribute.
	Attributes map[string]string
}

// ParseRequestCookies splits a Cookie request-header value into individual
// cookies. Per spec §4.I, request cookie pairs are separated by ';' or ','
// with surrounding whitespace tolerated; the last occurrence of a given
// name wins.
func ParseRequestCookies(header string) map[string]*Cookie {
	out := make(map[string]*Cookie)
	for _, part := range splitCookiePairs(header) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, value, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		name = strings.TrimSpace(name)
		value = unquote(strings.TrimSpace(value))
		if name == "" {
			continue
		}
		out[name] = &Cookie{Name: name, Value: value}
	}
	return out
}

func splitCookiePairs(header string) []string {
	return strings.FieldsFunc(header, func(r rune) bool {
		return r == ';' || r == ','
	})
}

func unquote(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}

// ParseSetCookie parses one Set-Cookie response-header value into a
// Cookie, per RFC 6265 §5.2.
func ParseSetCookie(header string) (*Cookie, error) {
	parts := strings.Split(header, ";")
	if len(parts) == 0 {
		return nil, fmt.Errorf("httpheader: empty Set-Cookie value")
	}
	name, value, ok := strings.Cut(strings.TrimSpace(parts[0]), "=")
	if !ok {
		return nil, fmt.Errorf("httpheader: Set-Cookie missing name=value")
	}
	c := &Cookie{
		Name:  strings.TrimSpace(name),
		Value: unquote(strings.TrimSpace(value)),
	}

	for _, raw := range parts[1:] {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		attrName, attrValue, hasValue := strings.Cut(raw, "=")
		attrName = strings.TrimSpace(attrName)
		attrValue = unquote(strings.TrimSpace(attrValue))
		addAttribute(c, attrName, attrValue, hasValue)
	}
	return c, nil
}

// addAttribute routes one Set-Cookie attribute to its typed field, or to
// the free-form Attributes map when unrecognized. Spec §9 Open Question
// (a) flags that the original's Secure handling may have been a
// missing-break bug that also stored "secure" as a free-form attribute;
// this implementation gives Secure its own unambiguous boolean field and
// does not duplicate it into Attributes, since nothing in the spec calls
// for preserving that behavior and guessing an unspecified bug would be
// worse than implementing the clearly intended contract.
func addAttribute(c *Cookie, name, value string, hasValue bool) {
	switch strings.ToLower(name) {
	case "domain":
		c.Domain = value
	case "path":
		c.Path = value
	case "secure":
		c.Secure = true
	case "httponly":
		c.HTTPOnly = true
	case "samesite":
		switch strings.ToLower(value) {
		case "lax":
			c.SameSite = SameSiteLax
		case "none":
			c.SameSite = SameSiteNone
		case "strict":
			c.SameSite = SameSiteStrict
		}
	case "max-age":
		if n, err := strconv.Atoi(value); err == nil {
			c.MaxAge = n
		}
	case "expires":
		if t, ok := parseCookieDate(value); ok {
			c.Expires = t
		}
	default:
		if c.Attributes == nil {
			c.Attributes = make(map[string]string)
		}
		if hasValue {
			c.Attributes[name] = value
		} else {
			c.Attributes[name] = ""
		}
	}
}

func parseCookieDate(value string) (time.Time, bool) {
	layouts := []string{
		time.RFC1123,
		"Mon, 02-Jan-2006 15:04:05 MST",
		"Monday, 02-Jan-06 15:04:05 MST",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// String formats c as a Set-Cookie header value. Per spec §3's Cookie
// invariant, known attributes are emitted in a fixed, stable order:
// Domain, Expires, HttpOnly, Max-Age, Path, SameSite, Secure.
func (c *Cookie) String() string {
	var b strings.Builder
	b.WriteString(c.Name)
	b.WriteByte('=')
	b.WriteString(c.Value)

	if c.Domain != "" {
		b.WriteString("; Domain=")
		b.WriteString(c.Domain)
	}
	if !c.Expires.IsZero() {
		b.WriteString("; Expires=")
		b.WriteString(c.Expires.UTC().Format(http1123))
	}
	if c.HTTPOnly {
		b.WriteString("; HttpOnly")
	}
	if c.MaxAge != 0 {
		b.WriteString("; Max-Age=")
		b.WriteString(strconv.Itoa(c.MaxAge))
	}
	if c.Path != "" {
		b.WriteString("; Path=")
		b.WriteString(c.Path)
	} else {
		b.WriteString("; Path=/")
	}
	if s := c.SameSite.String(); s != "" {
		b.WriteString("; SameSite=")
		b.WriteString(s)
	}
	if c.Secure {
		b.WriteString("; Secure")
	}
	return b.String()
}

const http1123 = "Mon, 02 Jan 2006 15:04:05 GMT"
