// Package codeowners parses CODEOWNERS content and matches owners
// against changed file paths using prefix rules.
package codeowners

import "strings"

// Parse extracts rule lines from raw CODEOWNERS content, dropping blank
// lines and comments.
func Parse(content string) []string {
	var lines []string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}

// Match returns the owners whose patterns prefix-match any of the
// changed files, de-duplicated in first-seen order. Patterns are matched
// as directory prefixes; glob semantics are out of scope.
func Match(lines, files []string) []string {
	var owners []string
	for _, file := range files {
		for _, line := range lines {
			parts := strings.Fields(line)
			if len(parts) < 2 {
				continue
			}
			pattern := parts[0]
			if matchesPrefix(pattern, file) {
				owners = append(owners, parts[1:]...)
			}
		}
	}
	return dedupe(owners)
}

// matchesPrefix reports whether file falls under pattern. Both
// trailing-slash directory patterns and rooted patterns are matched
// after stripping the leading slash.
func matchesPrefix(pattern, file string) bool {
	switch {
	case strings.HasSuffix(pattern, "/"):
		return strings.HasPrefix(file, strings.TrimPrefix(pattern, "/"))
	case strings.HasPrefix(pattern, "/"):
		return strings.HasPrefix(file, strings.TrimPrefix(pattern, "/"))
	default:
		return false
	}
}

// dedupe removes duplicates while preserving first-seen order.
func dedupe(owners []string) []string {
	seen := make(map[string]bool, len(owners))
	var out []string
	for _, o := range owners {
		if seen[o] {
			continue
		}
		seen[o] = true
		out = append(out, o)
	}
	return out
}
