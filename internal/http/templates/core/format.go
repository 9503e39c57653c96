package core

import (
	"strings"
	"time"
)

// DateTimeLayout is how timestamps appear on pages.
const DateTimeLayout = "2 Jan 2006, 15:04"

// FriendlyTime formats a time.Time or *time.Time in the server's zone. Zero
// times and other types render as an empty string.
func FriendlyTime(v any) string {
	var t time.Time
	switch ts := v.(type) {
	case time.Time:
		t = ts
	case *time.Time:
		if ts != nil {
			t = *ts
		}
	}
	if t.IsZero() {
		return ""
	}
	return t.Local().Format(DateTimeLayout)
}

// Truncate shortens text to at most limit runes, ending with an ellipsis when cut.
func Truncate(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	if limit <= 1 {
		return "…"
	}
	return strings.TrimSpace(string(runes[:limit-1])) + "…"
}
