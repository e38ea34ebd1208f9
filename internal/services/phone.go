package services

import (
	"regexp"
	"strings"
)

var (
	reLetters = regexp.MustCompile(`[A-Za-z]`)
	// Only allow digits, spaces, +, -, ., (, )
	reAllowed  = regexp.MustCompile(`^[0-9+\-\.\s\(\)]+$`)
	reNational = regexp.MustCompile(`^[1-9][0-9]{9}$`)
)

// NormPhone normalizes a parent phone to the 10-digit national form
// (e.g. 5551234567) used as the uniqueness key.
// Rules: strip spaces/dashes/dots/parens; +90 / 0090 / 90 prefix -> drop;
// leading trunk 0 -> drop. Returns "" when the result is not 10 digits.
func NormPhone(p string) string {
	s := strings.TrimSpace(p)

	if s == "" {
		return ""
	}
	if reLetters.MatchString(s) {
		return ""
	}
	if !reAllowed.MatchString(s) {
		return ""
	}

	// strip separators
	repl := strings.NewReplacer(" ", "", "-", "", ".", "", "(", "", ")", "", "\n", "", "\r", "", "\t", "")
	s = repl.Replace(s)

	// 00.. -> +..
	if strings.HasPrefix(s, "00") {
		s = "+" + s[2:]
	}
	s = strings.TrimPrefix(s, "+")
	// country code only when it leaves a full national number behind
	if strings.HasPrefix(s, "90") && len(s) == 12 {
		s = s[2:]
	}
	// trunk prefix
	if strings.HasPrefix(s, "0") && len(s) == 11 {
		s = s[1:]
	}
	if !reNational.MatchString(s) {
		return ""
	}
	return s
}
