package grocery

import (
	"sort"
	"strings"
	"unicode"
)

// BaseCategories are always offered regardless of what is stored.
var BaseCategories = []string{"meat", "dairy", "vegetables", "fruit", "utility", "other"}

// NormalizeCategory lowercases, trims and collapses whitespace. The singular
// "vegetable" becomes "vegetables" and empty input becomes "other".
func NormalizeCategory(v string) string {
	s := strings.Join(strings.Fields(strings.ToLower(v)), " ")
	switch s {
	case "":
		return "other"
	case "vegetable":
		return "vegetables"
	}
	return s
}

// MergeCategories returns the sorted, de-duplicated union of the base
// categories and every normalized input.
func MergeCategories(sets ...[]string) []string {
	seen := make(map[string]struct{}, len(BaseCategories))
	for _, c := range BaseCategories {
		seen[c] = struct{}{}
	}
	for _, set := range sets {
		for _, c := range set {
			seen[NormalizeCategory(c)] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// LetterGroup is a run of names sharing a leading letter.
type LetterGroup[T any] struct {
	Letter string `json:"letter"`
	Items  []T    `json:"items"`
}

// GroupByLetter buckets items by the uppercased first ASCII letter of their
// name. Names starting with anything else go to "#", which sorts last. Items
// within a bucket are ordered case-insensitively by name.
func GroupByLetter[T any](items []T, name func(T) string) []LetterGroup[T] {
	buckets := make(map[string][]T)
	for _, it := range items {
		key := letterKey(name(it))
		buckets[key] = append(buckets[key], it)
	}

	keys := make([]string, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i] == "#" {
			return false
		}
		if keys[j] == "#" {
			return true
		}
		return keys[i] < keys[j]
	})

	groups := make([]LetterGroup[T], 0, len(keys))
	for _, k := range keys {
		group := buckets[k]
		sort.SliceStable(group, func(i, j int) bool {
			return strings.ToLower(name(group[i])) < strings.ToLower(name(group[j]))
		})
		groups = append(groups, LetterGroup[T]{Letter: k, Items: group})
	}
	return groups
}

func letterKey(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "#"
	}
	r := rune(name[0])
	if r < unicode.MaxASCII && unicode.IsLetter(r) {
		return string(unicode.ToUpper(r))
	}
	return "#"
}
