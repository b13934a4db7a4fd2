package feed

import (
	"fmt"
	"strings"
	"time"
)

var dateLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	time.RFC822Z,
	time.RFC822,
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
	"2 Jan 2006 15:04:05 -0700",
	"January 2, 2006",
	"Jan 2, 2006",
}

// ParseDate parses the date formats that appear in RSS and Atom
// documents: RFC 822/1123 variants for RSS, RFC 3339 for Atom, plus a
// few loose forms found in real feeds.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date format: %q", s)
}

// FormatRSSDate renders a time the way RSS 2.0 expects (RFC 822 with
// numeric zone).
func FormatRSSDate(t time.Time) string {
	return t.Format(time.RFC1123Z)
}

// FormatAtomDate renders a time the way Atom 1.0 expects (RFC 3339).
func FormatAtomDate(t time.Time) string {
	return t.Format(time.RFC3339)
}
