package scraper

import (
	"regexp"
	"strings"
)

var (
	multiSpaceRegex     = regexp.MustCompile(`\s+`)
	digitRunRegex       = regexp.MustCompile(`\d+`)
	unsafeFilenameRegex = regexp.MustCompile(`[\\/:*?"<>|\s]+`)
	mbpsRegex           = regexp.MustCompile(`(?i)mbps`)
)

// norm collapses whitespace runs to single spaces and trims the ends.
func norm(s string) string {
	return strings.TrimSpace(multiSpaceRegex.ReplaceAllString(s, " "))
}

// money extracts a numeric amount from price text like "월 19,800원".
// Returns 0 when the text carries no digits.
func money(s string) int {
	if s == "" {
		return 0
	}
	runs := digitRunRegex.FindAllString(strings.ReplaceAll(s, ",", ""), -1)
	if len(runs) == 0 {
		return 0
	}
	joined := strings.Join(runs, "")
	n := 0
	for _, c := range joined {
		if n > 1<<40 {
			break
		}
		n = n*10 + int(c-'0')
	}
	return n
}

// safeFilename turns a plan title into a filesystem-safe artifact name.
func safeFilename(name string) string {
	const maxLen = 90
	s := unsafeFilenameRegex.ReplaceAllString(name, "_")
	s = strings.Trim(s, "_")
	if r := []rune(s); len(r) > maxLen {
		s = string(r[:maxLen])
	}
	if s == "" {
		return "item"
	}
	return s
}

// uniqJoin joins values with " | ", dropping duplicates but keeping order.
func uniqJoin(values []string) string {
	seen := make(map[string]struct{}, len(values))
	var out []string
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return strings.Join(out, " | ")
}
