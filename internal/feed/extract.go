// Package feed fetches the writing feed and turns it into the short list of
// articles shown on the site.
package feed

import (
	"regexp"
	"strings"
	"time"
)

// Item is one article surfaced to the page.
type Item struct {
	Title string `json:"title"`
	Link  string `json:"link"`
	Date  string `json:"date"`
}

// DefaultMaxItems bounds how many entries are read from a feed document.
const DefaultMaxItems = 4

// DateLayout is the long form used for display, e.g. "September 1, 2025".
const DateLayout = "January 2, 2006"

var (
	itemRe  = regexp.MustCompile(`(?s)<item(?:\s[^>]*)?>(.*?)</item>`)
	titleRe = regexp.MustCompile(`(?s)<title><!\[CDATA\[(.*?)\]\]></title>|<title>(.*?)</title>`)
	linkRe  = regexp.MustCompile(`(?s)<link>([^<]*)</link>|<link><!\[CDATA\[(.*?)\]\]></link>`)
	dateRe  = regexp.MustCompile(`(?s)<pubDate>(.*?)</pubDate>|<dc:date>(.*?)</dc:date>`)
)

// Feeds in the wild disagree on zero padding and zone style.
var dateLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
	"Mon, 02 Jan 2006 15:04 -0700",
	"Mon, 2 Jan 2006 15:04 MST",
	"02 Jan 2006 15:04:05 -0700",
	"2 Jan 2006 15:04:05 MST",
	time.RFC822Z,
	time.RFC822,
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// time.Parse gives unknown zone abbreviations a zero offset. These are the
// ones RFC 822 defines besides UT and GMT.
var zoneOffsets = map[string]int{
	"EST": -5, "EDT": -4,
	"CST": -6, "CDT": -5,
	"MST": -7, "MDT": -6,
	"PST": -8, "PDT": -7,
}

// Extract scans an RSS document for at most limit <item> blocks and returns
// the ones that carry both a title and a link, in document order. A document
// without item blocks yields an empty, non-nil slice.
func Extract(doc string, limit int) []Item {
	if limit <= 0 {
		limit = DefaultMaxItems
	}

	items := make([]Item, 0, limit)
	for _, block := range itemRe.FindAllStringSubmatch(doc, limit) {
		if item, ok := extractItem(block[1]); ok {
			items = append(items, item)
		}
	}
	return items
}

func extractItem(block string) (Item, bool) {
	titleMatch := titleRe.FindStringSubmatch(block)
	linkMatch := linkRe.FindStringSubmatch(block)
	if titleMatch == nil || linkMatch == nil {
		return Item{}, false
	}

	title := strings.TrimSpace(UnescapeTitle(firstGroup(titleMatch)))
	link := strings.TrimSpace(firstGroup(linkMatch))
	if title == "" || link == "" {
		return Item{}, false
	}

	date := ""
	if m := dateRe.FindStringSubmatch(block); m != nil {
		date = FormatDate(firstGroup(m))
	}

	return Item{Title: title, Link: link, Date: date}, true
}

// firstGroup returns the first non-empty capture of an alternation match.
func firstGroup(m []string) string {
	for _, g := range m[1:] {
		if g != "" {
			return g
		}
	}
	return ""
}

// UnescapeTitle resolves &lt; &gt; &amp; &quot; and &#39; in that order,
// one replacement pass per entity. It is deliberately not recursive and
// does not handle any other entity.
func UnescapeTitle(s string) string {
	s = strings.ReplaceAll(s, "&lt;", "<")
	s = strings.ReplaceAll(s, "&gt;", ">")
	s = strings.ReplaceAll(s, "&amp;", "&")
	s = strings.ReplaceAll(s, "&quot;", `"`)
	s = strings.ReplaceAll(s, "&#39;", "'")
	return s
}

// ParseDate tries the date layouts feeds commonly use.
func ParseDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return fixZone(t), true
		}
	}
	return time.Time{}, false
}

func fixZone(t time.Time) time.Time {
	name, offset := t.Zone()
	hours, ok := zoneOffsets[name]
	if offset != 0 || !ok {
		return t
	}
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(),
		time.FixedZone(name, hours*60*60))
}

// FormatDate renders raw in DateLayout (UTC), or "" when it cannot be parsed.
func FormatDate(raw string) string {
	t, ok := ParseDate(raw)
	if !ok {
		return ""
	}
	return t.UTC().Format(DateLayout)
}
