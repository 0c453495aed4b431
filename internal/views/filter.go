package views

import (
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"gameshelf/backend"
)

// AllCategories is the category selector value that disables category filtering.
const AllCategories = "All"

// MatchMode selects how search text is matched against titles
type MatchMode string

const (
	// MatchSubstring includes titles containing the search text, ignoring case
	MatchSubstring MatchMode = "substring"
	// MatchFuzzy includes titles containing the search runes in order, ignoring case
	MatchFuzzy MatchMode = "fuzzy"
)

// Filter is the user-controlled filter state for a game list
type Filter struct {
	Search   string
	Category string
	Mode     MatchMode
}

// DefaultFilter returns the initial filter: no search text, all categories.
func DefaultFilter() Filter {
	return Filter{Category: AllCategories, Mode: MatchSubstring}
}

// CategoryOptions returns the selector values offered to the user, the
// "All" sentinel first followed by the genres.
func CategoryOptions() []string {
	return append([]string{AllCategories}, backend.Genres...)
}

// Recompute returns the games from cache whose title contains searchText
// (case-insensitive) and whose genre equals category, unless category is
// AllCategories. Cache order is preserved and cache is never modified.
func Recompute(cache []backend.Game, searchText, category string) []backend.Game {
	return RecomputeWith(cache, Filter{Search: searchText, Category: category, Mode: MatchSubstring})
}

// RecomputeWith is Recompute with an explicit match mode.
func RecomputeWith(cache []backend.Game, f Filter) []backend.Game {
	result := make([]backend.Game, 0, len(cache))
	match := titleMatcher(f.Search, f.Mode)
	for _, g := range cache {
		if !match(g.Title) {
			continue
		}
		if f.Category != AllCategories && g.Genre != f.Category {
			continue
		}
		result = append(result, g)
	}
	return result
}

// RecomputeTodos filters todos by title and, unless showCompleted is set,
// hides completed ones. Order is preserved.
func RecomputeTodos(cache []backend.Todo, searchText string, showCompleted bool) []backend.Todo {
	result := make([]backend.Todo, 0, len(cache))
	match := titleMatcher(searchText, MatchSubstring)
	for _, t := range cache {
		if !showCompleted && t.Completed {
			continue
		}
		if match(t.Title) {
			result = append(result, t)
		}
	}
	return result
}

// titleMatcher builds the search predicate once per recompute
func titleMatcher(search string, mode MatchMode) func(string) bool {
	if search == "" {
		return func(string) bool { return true }
	}
	if mode == MatchFuzzy {
		return func(title string) bool {
			return fuzzy.MatchFold(search, title)
		}
	}
	needle := strings.ToLower(search)
	return func(title string) bool {
		return strings.Contains(strings.ToLower(title), needle)
	}
}

// ParseMatchMode maps a config value onto a MatchMode, defaulting to substring.
func ParseMatchMode(s string) MatchMode {
	if MatchMode(strings.ToLower(s)) == MatchFuzzy {
		return MatchFuzzy
	}
	return MatchSubstring
}
