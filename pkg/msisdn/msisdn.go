// Package msisdn validates and normalizes Nigerian mobile numbers.
package msisdn

import (
	"regexp"
	"strings"
	"unicode"
)

// pattern accepts 0-prefixed local numbers, 234/+234-prefixed international
// numbers and bare 10-digit subscriber numbers starting 7, 8 or 9.
var pattern = regexp.MustCompile(`^(0|\+?234)?([789]\d{9})$`)

// Normalize strips whitespace and returns the canonical local form
// 0XXXXXXXXXX. ok is false for anything that is not a valid mobile number.
func Normalize(input string) (string, bool) {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || r == '-' {
			return -1
		}
		return r
	}, input)

	m := pattern.FindStringSubmatch(cleaned)
	if m == nil {
		return "", false
	}
	return "0" + m[2], true
}

// International converts a valid number to 234XXXXXXXXXX, the form WhatsApp
// uses for wa_id and recipients. Invalid input is returned unchanged.
func International(input string) string {
	local, ok := Normalize(input)
	if !ok {
		return input
	}
	return "234" + local[1:]
}

func Valid(input string) bool {
	_, ok := Normalize(input)
	return ok
}
