package services

import (
	"html"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/text/unicode/norm"
)

var (
	spaceRe      = regexp.MustCompile(`\s+`)
	strictPolicy = bluemonday.StrictPolicy()
)

// cleanCaption normalizes user text to NFC, strips markup and collapses
// whitespace. It does not enforce length.
func cleanCaption(s string) string {
	s = norm.NFC.String(s)
	s = strictPolicy.Sanitize(s)
	// StrictPolicy escapes entities; captions are stored as plain text.
	s = html.UnescapeString(s)
	s = spaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// validateCaption cleans s and enforces the rune limit (0 disables it).
func validateCaption(s string, maxRunes int) (string, error) {
	s = cleanCaption(s)
	if s == "" {
		return "", ErrEmptyCaption
	}
	if maxRunes > 0 && utf8.RuneCountInString(s) > maxRunes {
		return "", ErrTooLong
	}
	return s, nil
}

// clipRunes shortens s to at most n runes.
func clipRunes(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
