package charclass

import "time"

// httpDateLayout is the RFC 1123 layout mandated for generated date headers.
const httpDateLayout = "Mon, 02 Jan 2006 15:04:05 GMT"

// legacyDateLayouts are the two obsolete formats RFC 7231 §7.1.1.1 requires
// servers to still be able to parse on input (RFC 850 and ANSI C asctime).
var legacyDateLayouts = []string{
	"Monday, 02-Jan-06 15:04:05 GMT",
	"Mon Jan _2 15:04:05 2006",
}

// FormatHTTPDate renders t in the canonical RFC 1123 form used by the Date
// header and by cookie Expires attributes.
func FormatHTTPDate(t time.Time) string {
	return t.UTC().Format(httpDateLayout)
}

// ParseHTTPDate parses a Date-like header value, tolerating the two legacy
// alternates alongside the canonical RFC 1123 format.
func ParseHTTPDate(value string) (time.Time, bool) {
	if t, err := time.Parse(httpDateLayout, value); err == nil {
		return t, true
	}
	for _, layout := range legacyDateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
