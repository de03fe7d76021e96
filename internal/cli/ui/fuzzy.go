package ui

import (
	"fmt"
	"sort"
	"strings"
)

const maxSuggestDistance = 3

// UnknownNameError reports a name that matched none of the known ones
type UnknownNameError struct {
	Kind        string
	Name        string
	Suggestions []string
}

func (e *UnknownNameError) Error() string {
	return fmt.Sprintf("unknown %s %q", e.Kind, e.Name)
}

// Unknown builds an UnknownNameError suggesting the closest known names
func Unknown(kind, name string, known []string) *UnknownNameError {
	return &UnknownNameError{Kind: kind, Name: name, Suggestions: Similar(name, known, 3)}
}

// Similar returns up to limit candidates within a small edit distance of
// target, closest first. Comparison ignores case.
func Similar(target string, candidates []string, limit int) []string {
	type match struct {
		value    string
		distance int
	}
	var matches []match
	t := strings.ToLower(target)
	for _, c := range candidates {
		if d := distance(t, strings.ToLower(c)); d <= maxSuggestDistance {
			matches = append(matches, match{c, d})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].distance < matches[j].distance })

	out := make([]string, 0, limit)
	for i := 0; i < len(matches) && i < limit; i++ {
		out = append(out, matches[i].value)
	}
	return out
}

// distance is the Levenshtein distance over runes, kept in two rows
func distance(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	prev := make([]int, len(rb)+1)
	cur := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		cur[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(rb)]
}
