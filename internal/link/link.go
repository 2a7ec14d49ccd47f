// Package link classifies inbound chat text as a resolvable TikTok link.
package link

import (
	"regexp"
	"strings"
)

// shortVideoPattern matches the short-link subdomains (vm, vt, t) under
// tiktok.com with optional scheme and www prefix, or the bare domain
// followed by a path. The search is unanchored and case-sensitive.
var shortVideoPattern = regexp.MustCompile(`(https?://)?(www\.)?(vm|vt|t)\.tiktok\.com|tiktok\.com/`)

// IsResolvable reports whether text contains a short-video URL.
func IsResolvable(text string) bool {
	return shortVideoPattern.MatchString(text)
}

// Extract returns the first whitespace-separated token of text that
// contains a short-video URL, with surrounding punctuation trimmed.
// The boolean is false when text has no such token.
func Extract(text string) (string, bool) {
	for _, field := range strings.Fields(text) {
		if !shortVideoPattern.MatchString(field) {
			continue
		}
		field = strings.TrimLeft(field, `("'<`)
		field = strings.TrimRight(field, `)"'>,.;!?`)
		return field, true
	}
	return "", false
}
