// Package charclass provides the byte-level character classification and
// date formatting primitives shared by the preamble, chunked, and multipart
// state machines. The byte predicates do not allocate.
package charclass

// IsTokenChar reports whether b is a valid RFC 7230 §3.2.6 "tchar":
//
//	tchar = "!" / "#" / "$" / "%" / "&" / "'" / "*" / "+" / "-" / "."
//	      / "^" / "_" / "`" / "|" / "~" / DIGIT / ALPHA
func IsTokenChar(b byte) bool {
	switch {
	case b >= 'a' && b <= 'z', b >= 'A' && b <= 'Z', b >= '0' && b <= '9':
		return true
	case b == '!', b == '#', b == '$', b == '%', b == '&', b == '\'',
		b == '*', b == '+', b == '-', b == '.', b == '^', b == '_',
		b == '`', b == '|', b == '~':
		return true
	default:
		return false
	}
}

// IsValueChar reports whether b may appear in a header field-value: VCHAR,
// obs-text (0x80-0xFF), or HTAB/SP.
func IsValueChar(b byte) bool {
	if b == '\t' || b == ' ' {
		return true
	}
	if b >= 0x21 && b <= 0x7E {
		return true
	}
	return b >= 0x80
}

// IsHexDigit reports whether b is an ASCII hex digit.
func IsHexDigit(b byte) bool {
	return (b >= '0' && b <= '9') || (b >= 'a' && b <= 'f') || (b >= 'A' && b <= 'F')
}

// IsDigit reports whether b is an ASCII decimal digit.
func IsDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

// IsWhitespace reports whether b is a space or horizontal tab.
func IsWhitespace(b byte) bool {
	return b == ' ' || b == '\t'
}

// HexValue returns the numeric value of a hex digit byte, or -1 if b is not
// a hex digit.
func HexValue(b byte) int {
	switch {
	case b >= '0' && b <= '9':
		return int(b - '0')
	case b >= 'a' && b <= 'f':
		return int(b-'a') + 10
	case b >= 'A' && b <= 'F':
		return int(b-'A') + 10
	default:
		return -1
	}
}

// MaxChunkSize is the largest chunk-size value accepted: 2^31 - 2, per
// spec's rejection of anything at or beyond 2^31 - 1.
const MaxChunkSize = (1 << 31) - 2
