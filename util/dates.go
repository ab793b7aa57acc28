package util

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var dateLayouts = []string{
	"Mon Jan 2 15:04:05 -0700 2006",
	"Mon Jan 02 15:04:05 -0700 2006",
	time.RFC1123Z,
	time.RFC1123,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
	"2006-01-02T15:04:05-0700",
	"2006-01-02T15:04:05.999999999-0700",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

var isoZone = regexp.MustCompile(`([+-]\d{2}):(\d{2})$`)

// ParseDate understands the date formats backends send: the Twitter style
// "Wed Aug 27 13:08:45 +0000 2008", RFC 1123 variants and ISO 8601 with or
// without fractional seconds. Numbers are read as unix seconds. The zero
// time means the value could not be parsed.
func ParseDate(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		if n > 1e12 {
			return time.UnixMilli(n).UTC()
		}
		return time.Unix(n, 0).UTC()
	}
	normalized := s
	if strings.HasSuffix(normalized, "Z") {
		normalized = strings.TrimSuffix(normalized, "Z") + "+0000"
	}
	normalized = isoZone.ReplaceAllString(normalized, "$1$2")
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, normalized); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
