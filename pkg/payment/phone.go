package payment

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrInvalidPhoneNumber is returned for numbers that cannot be normalized.
var ErrInvalidPhoneNumber = errors.New("invalid phone number")

// PhoneNormalizer rewrites local mobile numbers into international format.
type PhoneNormalizer struct {
	countryCode string // e.g. "+256"
	pattern     *regexp.Regexp
}

// NewPhoneNormalizer builds a normalizer for countryCode ("+256") whose
// valid numbers start with one of the digits in mobilePrefixes ("37")
// followed by exactly eight digits.
func NewPhoneNormalizer(countryCode, mobilePrefixes string) (*PhoneNormalizer, error) {
	if !strings.HasPrefix(countryCode, "+") || len(countryCode) < 2 || !isDigits(countryCode[1:]) {
		return nil, fmt.Errorf("invalid country calling code %q", countryCode)
	}
	if mobilePrefixes == "" || !isDigits(mobilePrefixes) {
		return nil, fmt.Errorf("invalid mobile prefixes %q", mobilePrefixes)
	}
	pattern, err := regexp.Compile(`^` + regexp.QuoteMeta(countryCode) + `[` + mobilePrefixes + `]\d{8}$`)
	if err != nil {
		return nil, fmt.Errorf("failed to compile phone pattern: %w", err)
	}
	return &PhoneNormalizer{countryCode: countryCode, pattern: pattern}, nil
}

// Normalize accepts "0771234567", "771234567", "256771234567" and
// "+256771234567" and returns "+256771234567".
func (n *PhoneNormalizer) Normalize(raw string) (string, error) {
	phone := strings.TrimSpace(raw)
	digits := n.countryCode[1:]

	switch {
	case strings.HasPrefix(phone, "0"):
		phone = n.countryCode + phone[1:]
	case strings.HasPrefix(phone, "+"):
	case strings.HasPrefix(phone, digits) && len(phone) == len(digits)+9:
		phone = "+" + phone
	default:
		phone = n.countryCode + phone
	}

	if !n.pattern.MatchString(phone) {
		return "", ErrInvalidPhoneNumber
	}
	return phone, nil
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
