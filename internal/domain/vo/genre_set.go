package vo

import (
	"sort"
	"strings"
)

// GenreSet is an unordered, case-insensitive set of genre names.
// The zero value is an empty set.
type GenreSet struct {
	keys map[string]struct{}
}

// NormalizeGenre returns the matching key for a genre name:
// trimmed, lowercased and with inner whitespace collapsed.
func NormalizeGenre(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}

// NewGenreSet builds a set from genre names. Blank names are ignored.
func NewGenreSet(genres ...string) GenreSet {
	s := GenreSet{keys: make(map[string]struct{}, len(genres))}
	for _, g := range genres {
		if k := NormalizeGenre(g); k != "" {
			s.keys[k] = struct{}{}
		}
	}
	return s
}

// Len returns the number of distinct genres.
func (s GenreSet) Len() int {
	return len(s.keys)
}

// IsEmpty returns true if the set has no genres.
func (s GenreSet) IsEmpty() bool {
	return len(s.keys) == 0
}

// Contains reports whether the set has the genre.
func (s GenreSet) Contains(genre string) bool {
	_, ok := s.keys[NormalizeGenre(genre)]
	return ok
}

// Overlap returns the number of genres present in both sets.
func (s GenreSet) Overlap(other GenreSet) int {
	small, large := s, other
	if small.Len() > large.Len() {
		small, large = large, small
	}
	n := 0
	for k := range small.keys {
		if _, ok := large.keys[k]; ok {
			n++
		}
	}
	return n
}

// Keys returns the normalized genre keys in sorted order.
func (s GenreSet) Keys() []string {
	keys := make([]string, 0, len(s.keys))
	for k := range s.keys {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
