// Package validation checks what the user typed before it is sent to the
// weather provider as the q parameter.
package validation

import (
	"errors"
	"strings"
	"unicode"
)

var (
	ErrCityEmpty        = errors.New("city is required")
	ErrCityTooShort     = errors.New("city too short")
	ErrCityTooLong      = errors.New("city too long")
	ErrCityInvalidChars = errors.New("city contains invalid characters")
	// ErrCityNoLetter rejects input made only of digits and punctuation, which
	// the provider can never resolve to a city.
	ErrCityNoLetter = errors.New("city must contain a letter")
)

// ValidateCity normalizes a typed city name and checks it. Runs of whitespace
// collapse to one space, so "New   York" and "New York" are the same history
// entry. Bounds count runes; zero disables a bound. Casing is kept.
func ValidateCity(input string, minLen, maxLen int) (string, error) {
	city := strings.Join(strings.Fields(input), " ")
	n := len([]rune(city))
	switch {
	case n == 0:
		return "", ErrCityEmpty
	case minLen > 0 && n < minLen:
		return "", ErrCityTooShort
	case maxLen > 0 && n > maxLen:
		return "", ErrCityTooLong
	}

	letter := false
	for _, r := range city {
		switch {
		case unicode.IsLetter(r):
			letter = true
		case unicode.IsNumber(r), unicode.Is(unicode.Mn, r):
		case strings.ContainsRune(" ,-.'", r):
		default:
			return "", ErrCityInvalidChars
		}
	}
	if !letter {
		return "", ErrCityNoLetter
	}
	return city, nil
}
