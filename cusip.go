package tradebook

import (
	"fmt"
	"regexp"
	"strings"
)

var cusipRegex = regexp.MustCompile(`^[0-9A-Z*@#]{8}[0-9]$`)

// ValidateCUSIP checks that 'cusip' is a well formed CUSIP: 8 alphanumeric
// characters and a check digit.
func ValidateCUSIP(cusip string) error {
	// 1. Length validation
	if len(cusip) != 9 {
		return fmt.Errorf("invalid length: must be 9 characters, got %d", len(cusip))
	}

	// 2. Format validation
	if !cusipRegex.MatchString(cusip) {
		return fmt.Errorf("invalid format: must be 8 alphanumeric chars and 1 digit")
	}

	// 3. "Double add double" variation of the Luhn algorithm, where letters
	// count from 10 and every second character is doubled.
	sum := 0
	for i := 0; i < 8; i++ {
		v := cusipValue(cusip[i])
		if i%2 == 1 {
			v *= 2
		}
		sum += v/10 + v%10
	}

	expected := (10 - sum%10) % 10
	actual := int(cusip[8] - '0')
	if expected != actual {
		return fmt.Errorf("invalid check digit: expected %d, got %d", expected, actual)
	}
	return nil
}

func cusipValue(c byte) int {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0')
	case c >= 'A' && c <= 'Z':
		return int(c-'A') + 10
	case c == '*':
		return 36
	case c == '@':
		return 37
	case c == '#':
		return 38
	}
	return 0
}

// IsCUSIP reports whether 's' is a valid CUSIP. Symbols in an export are
// compared case-insensitively.
func IsCUSIP(s string) bool {
	s = strings.ToUpper(strings.TrimSpace(s))
	if len(s) != 9 {
		return false
	}
	// an all-letters word could pass the checksum by chance.
	if !strings.ContainsAny(s[:8], "0123456789") {
		return false
	}
	return ValidateCUSIP(s) == nil
}

// CUSIPFromISIN returns the CUSIP embedded in a US or Canadian ISIN.
func CUSIPFromISIN(isin string) (string, bool) {
	isin = strings.ToUpper(strings.TrimSpace(isin))
	if len(isin) != 12 {
		return "", false
	}
	if p := isin[:2]; p != "US" && p != "CA" {
		return "", false
	}
	cusip := isin[2:11]
	if ValidateCUSIP(cusip) != nil {
		return "", false
	}
	return cusip, true
}
