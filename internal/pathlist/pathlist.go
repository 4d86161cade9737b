// Package pathlist manipulates ordered search-path lists such as the INCLUDE
// and LIB environment variables and the compiler's include directories.
package pathlist

import (
	"os"
	"path/filepath"
	"strings"
)

// Separator joins entries of an environment path list.
const Separator = string(os.PathListSeparator)

// Split breaks an environment path list into its entries, dropping empty ones.
func Split(list string) []string {
	var out []string
	for _, p := range filepath.SplitList(list) {
		if strings.TrimSpace(p) == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}

// Join is the inverse of Split.
func Join(paths []string) string {
	return strings.Join(paths, Separator)
}

// Dedup removes repeated entries. The first occurrence of each path is kept
// and the relative order of the survivors is unchanged.
func Dedup(paths []string) []string {
	seen := make(map[string]bool, len(paths))
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}

// Filter drops every path containing any of the blocked substrings.
func Filter(paths []string, blocked []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if Blocked(p, blocked) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// Blocked reports whether path contains one of the blocked substrings.
// Empty blocklist entries never match.
func Blocked(path string, blocked []string) bool {
	for _, b := range blocked {
		if b != "" && strings.Contains(path, b) {
			return true
		}
	}
	return false
}

// Merge combines two environment path lists. Entries of prev come first,
// then the entries of next that prev does not already contain. Nothing from
// prev is ever dropped.
func Merge(prev, next string) string {
	if strings.TrimSpace(prev) == "" {
		return next
	}
	if strings.TrimSpace(next) == "" {
		return prev
	}
	merged := append(Split(prev), Split(next)...)
	return Join(Dedup(merged))
}

// AppendUnique appends s to slice unless it is already present.
func AppendUnique(slice []string, s string) []string {
	for _, v := range slice {
		if v == s {
			return slice
		}
	}
	return append(slice, s)
}
