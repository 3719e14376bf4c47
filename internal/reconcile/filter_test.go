package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"folios/internal/models"
)

func TestFilter(t *testing.T) {
	goDocs := Entry{Bookmark: models.Bookmark{Title: "Go Documentation", URL: "https://go.dev/doc"}}
	rust := Entry{Bookmark: models.Bookmark{Title: "The Rust Book", URL: "https://doc.rust-lang.org/book"}}
	news := Entry{Bookmark: models.Bookmark{Title: "Hacker News", URL: "https://news.ycombinator.com"}}
	entries := []Entry{goDocs, rust, news}

	tests := []struct {
		name  string
		query string
		want  []Entry
	}{
		{"empty query returns all", "", entries},
		{"blank query returns all", "   ", entries},
		{"matches title ignoring case", "rust", []Entry{rust}},
		{"matches url", "ycombinator", []Entry{news}},
		{"matches both in order", "DOC", []Entry{goDocs, rust}},
		{"trims query", "  news ", []Entry{news}},
		{"no match", "python", []Entry{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Filter(entries, tt.query))
		})
	}
}

func TestFilter_DoesNotModifyInput(t *testing.T) {
	entries := []Entry{
		{Bookmark: models.Bookmark{Title: "A"}},
		{Bookmark: models.Bookmark{Title: "B"}},
	}
	before := append([]Entry(nil), entries...)

	_ = Filter(entries, "b")

	assert.Equal(t, before, entries)
}

func TestSummary(t *testing.T) {
	assert.Equal(t, "Nothing saved yet", Summary(0, 0, ""))
	assert.Equal(t, "1 saved item", Summary(1, 1, ""))
	assert.Equal(t, "7 saved items", Summary(7, 7, " "))
	assert.Equal(t, "1 result", Summary(7, 1, "go"))
	assert.Equal(t, "0 results", Summary(7, 0, "go"))
}
