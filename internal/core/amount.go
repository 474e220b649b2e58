package core

import (
	"strconv"
	"strings"
	"unicode"
)

// ParseAmount converts free text into a millilitre amount.
//
// Amounts are whole millilitres: fractional values, signs, and anything
// non-numeric are rejected with ErrInvalidAmount rather than rounded or
// coerced. This is the single gate chat text passes through before an
// intake can be recorded.
//
// Examples:
//
//	ParseAmount("300")  -> 300, nil
//	ParseAmount(" 250") -> 250, nil
//	ParseAmount("0")    -> 0, ErrInvalidAmount
//	ParseAmount("1.5")  -> 0, ErrInvalidAmount
//	ParseAmount("+30")  -> 0, ErrInvalidAmount
func ParseAmount(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return 0, ErrInvalidAmount
		}
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	if err := ValidateAmount(v); err != nil {
		return 0, err
	}
	return v, nil
}
