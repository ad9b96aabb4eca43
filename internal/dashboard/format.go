// Package dashboard holds the text formatting shared by the console and
// the CLI.
package dashboard

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// JustNow stands in for a missing or unparseable timestamp.
const JustNow = "Just now"

// FormatInt formats an integer with comma separators.
func FormatInt(n int64) string {
	if n < 0 {
		return "-" + FormatInt(-n)
	}
	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	start := len(s) % 3
	if start > 0 {
		b.WriteString(s[:start])
	}
	for i := start; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

// FormatCount formats an engagement count, using K and M suffixes for
// large values.
func FormatCount(n int64) string {
	switch {
	case n >= 1_000_000:
		return fmt.Sprintf("%.1fM", float64(n)/1e6)
	case n >= 10_000:
		return fmt.Sprintf("%.1fK", float64(n)/1e3)
	default:
		return FormatInt(n)
	}
}

// FormatClock renders a signal time as 24-hour "15:04" in loc, or JustNow
// when ok is false.
func FormatClock(t time.Time, ok bool, loc *time.Location) string {
	if !ok {
		return JustNow
	}
	return t.In(loc).Format("15:04")
}

// FormatDay renders a tweet time as "Jan 2" in loc, or JustNow when ok is
// false.
func FormatDay(t time.Time, ok bool, loc *time.Location) string {
	if !ok {
		return JustNow
	}
	return t.In(loc).Format("Jan 2")
}

// Truncate shortens s to at most max runes, ending in "..." when cut.
func Truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	if max <= 3 {
		return strings.Repeat(".", max)
	}
	runes := []rune(s)
	return string(runes[:max-3]) + "..."
}

// FirstLine returns s up to its first newline.
func FirstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
