package slug

import (
	"regexp"
	"strings"
)

const maxLen = 48

var nonAlphaNum = regexp.MustCompile(`[^a-z0-9]+`)

// Make turns a free-text label into a lowercase dash-separated token.
func Make(input string) string {
	s := strings.ToLower(strings.TrimSpace(input))
	s = nonAlphaNum.ReplaceAllString(s, "-")
	if len(s) > maxLen {
		s = s[:maxLen]
	}
	s = strings.Trim(s, "-")
	if s == "" {
		return "untitled"
	}
	return s
}

// Tag builds a nested Obsidian-style tag such as "project/api-server".
func Tag(prefix, label string) string {
	return prefix + "/" + Make(label)
}
