package service

import (
	"fmt"
	"strings"
)

// NormalizePhone converts a Kenyan mobile number to its canonical local
// form, 07XXXXXXXX or 01XXXXXXXX. Accepted inputs are 2547/2541 followed
// by 8 digits, 07/01 followed by 8 digits, or 7/1 followed by 8 digits,
// with any punctuation or a leading '+' ignored.
func NormalizePhone(raw string) (string, error) {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()

	var subscriber string
	switch {
	case len(digits) == 12 && strings.HasPrefix(digits, "254"):
		subscriber = digits[3:]
	case len(digits) == 10 && digits[0] == '0':
		subscriber = digits[1:]
	case len(digits) == 9:
		subscriber = digits
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidPhoneNumber, raw)
	}

	if subscriber[0] != '7' && subscriber[0] != '1' {
		return "", fmt.Errorf("%w: %q", ErrInvalidPhoneNumber, raw)
	}

	return "0" + subscriber, nil
}

// InternationalPhone renders a canonical number as 254XXXXXXXXX.
func InternationalPhone(canonical string) string {
	return "254" + strings.TrimPrefix(canonical, "0")
}
