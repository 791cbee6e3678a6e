package validation

import (
	"errors"
	"html"
	"net/mail"
	"strings"
	"sync"
	"unicode"

	"github.com/microcosm-cc/bluemonday"
)

// ErrNameEmpty is returned when a display name is empty or whitespace-only after trim.
var ErrNameEmpty = errors.New("name is required")

// ErrNameTooLong is returned when a display name exceeds MaxNameLength runes.
var ErrNameTooLong = errors.New("name too long")

// ErrNameInvalidChars is returned when a display name contains disallowed characters.
var ErrNameInvalidChars = errors.New("name contains invalid characters")

// ErrEmailInvalid is returned when an email address does not parse as a bare address.
var ErrEmailInvalid = errors.New("email is invalid")

// ErrSearchTooLong is returned when a search term exceeds MaxSearchLength runes.
var ErrSearchTooLong = errors.New("search term too long")

const (
	MaxNameLength   = 80
	MaxSearchLength = 100
)

var (
	strictOnce   sync.Once
	strictPolicy *bluemonday.Policy
)

func strict() *bluemonday.Policy {
	strictOnce.Do(func() {
		strictPolicy = bluemonday.StrictPolicy()
	})
	return strictPolicy
}

// Sanitize strips all markup from free-form user input and trims it.
// Entities produced by the policy are decoded; output escaping is left to templates.
func Sanitize(s string) string {
	return strings.TrimSpace(html.UnescapeString(strict().Sanitize(strings.TrimSpace(s))))
}

// ValidateName trims and sanitizes a display name, enforces the length bound,
// and restricts it to letters (Unicode), digits, space, period, apostrophe and hyphen.
func ValidateName(input string) (string, error) {
	s := strings.TrimSpace(input)
	r := []rune(s)
	if len(r) == 0 {
		return "", ErrNameEmpty
	}
	if len(r) > MaxNameLength {
		return "", ErrNameTooLong
	}
	for _, c := range r {
		if !isAllowedNameRune(c) {
			return "", ErrNameInvalidChars
		}
	}
	return s, nil
}

// ValidateEmail trims the input and requires a bare address (no display name).
// The result is lower-cased.
func ValidateEmail(input string) (string, error) {
	s := strings.TrimSpace(input)
	if s == "" {
		return "", ErrEmailInvalid
	}
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s || addr.Name != "" {
		return "", ErrEmailInvalid
	}
	return strings.ToLower(s), nil
}

// ValidateSearch sanitizes a catalog search term. An empty term is valid.
func ValidateSearch(input string) (string, error) {
	s := Sanitize(input)
	if len([]rune(s)) > MaxSearchLength {
		return "", ErrSearchTooLong
	}
	return s, nil
}

func isAllowedNameRune(r rune) bool {
	if unicode.IsLetter(r) || unicode.IsNumber(r) || unicode.IsMark(r) {
		return true
	}
	switch r {
	case ' ', '.', '\'', '-':
		return true
	}
	return false
}
