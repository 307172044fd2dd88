package form

import (
	"strings"
	"time"

	"github.com/a3tai/mcp-pdf-waiver/internal/waiver/schema"
)

// Canonical layouts mirror the en-US locale strings the waiver was designed around
const (
	DateLayout     = "1/2/2006"
	DateTimeLayout = "1/2/2006, 3:04:05 PM"
)

var (
	dateInputLayouts     = []string{"2006-01-02", DateLayout}
	dateTimeInputLayouts = []string{"2006-01-02T15:04:05", "2006-01-02T15:04", "2006-01-02 15:04:05", DateTimeLayout}
)

// Format canonicalises raw user input for the given input kind. It is idempotent:
// Format(k, Format(k, x)) == Format(k, x) for every kind and input.
func Format(kind schema.InputKind, raw string) string {
	switch kind {
	case schema.InputPhone:
		return FormatPhoneNumber(raw)
	case schema.InputDate:
		return FormatDate(raw)
	case schema.InputDateTime:
		return FormatDateTime(raw)
	default:
		return raw
	}
}

// FormatPhoneNumber renders 10 digits as (XXX) XXX-XXXX and 11 digits with a leading 1 as
// +1 (XXX) XXX-XXXX. Anything else is returned unchanged.
func FormatPhoneNumber(raw string) string {
	var digits strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	d := digits.String()

	switch {
	case len(d) == 10:
		return "(" + d[0:3] + ") " + d[3:6] + "-" + d[6:]
	case len(d) == 11 && d[0] == '1':
		return "+1 (" + d[1:4] + ") " + d[4:7] + "-" + d[7:]
	default:
		return raw
	}
}

// FormatDate renders an ISO date as M/D/YYYY; unparseable input is returned unchanged
func FormatDate(raw string) string {
	s := strings.TrimSpace(raw)
	for _, layout := range dateInputLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(DateLayout)
		}
	}
	return raw
}

// FormatDateTime renders an ISO local date-time as M/D/YYYY, H:MM:SS AM; unparseable
// input is returned unchanged
func FormatDateTime(raw string) string {
	s := strings.TrimSpace(raw)
	for _, layout := range dateTimeInputLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(DateTimeLayout)
		}
	}
	return raw
}
