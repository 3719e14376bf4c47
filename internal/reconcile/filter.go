package reconcile

import (
	"fmt"
	"strings"
)

// Filter returns the entries whose title or url contains query, ignoring
// case. A blank query returns entries unchanged. Order is preserved and the
// input is never modified.
func Filter(entries []Entry, query string) []Entry {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return entries
	}

	matched := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if strings.Contains(strings.ToLower(e.Bookmark.Title), q) ||
			strings.Contains(strings.ToLower(e.Bookmark.URL), q) {
			matched = append(matched, e)
		}
	}
	return matched
}

// Summary is the one-line count shown above a bookmark list.
func Summary(total, matched int, query string) string {
	if strings.TrimSpace(query) != "" {
		if matched == 1 {
			return "1 result"
		}
		return fmt.Sprintf("%d results", matched)
	}
	switch total {
	case 0:
		return "Nothing saved yet"
	case 1:
		return "1 saved item"
	default:
		return fmt.Sprintf("%d saved items", total)
	}
}
