package id

import (
	"fmt"
	"math/big"
	"regexp"
	"strings"

	clierr "github.com/perpdex-labs/perpctl/internal/errors"
)

var decimalPattern = regexp.MustCompile(`^[0-9]+(\.[0-9]+)?$`)

// ToBaseUnits converts a decimal-string amount into integer base units at the
// given precision. Amounts with more fractional digits than the token allows
// are rejected rather than truncated: silent truncation is how funds go
// missing. Negative amounts are rejected outright.
func ToBaseUnits(decimal string, decimals int) (*big.Int, error) {
	clean := strings.TrimSpace(decimal)
	if clean == "" {
		return nil, clierr.New(clierr.CodeInvalidAmount, "amount is required")
	}
	if decimals < 0 {
		return nil, clierr.New(clierr.CodeInvalidAmount, "decimals must be >= 0")
	}
	if strings.HasPrefix(clean, "-") {
		return nil, clierr.New(clierr.CodeInvalidAmount, "amount must be non-negative")
	}
	if !decimalPattern.MatchString(clean) {
		return nil, clierr.New(clierr.CodeInvalidAmount, fmt.Sprintf("amount must be in decimal form like 1.23, got %q", decimal))
	}

	parts := strings.SplitN(clean, ".", 2)
	intPart := parts[0]
	fracPart := ""
	if len(parts) == 2 {
		fracPart = parts[1]
	}
	if len(fracPart) > decimals {
		return nil, clierr.New(clierr.CodeInvalidAmount, fmt.Sprintf("amount precision exceeds token decimals (%d)", decimals))
	}

	combined := intPart + fracPart + strings.Repeat("0", decimals-len(fracPart))
	combined = strings.TrimLeft(combined, "0")
	if combined == "" {
		return big.NewInt(0), nil
	}
	out, ok := new(big.Int).SetString(combined, 10)
	if !ok {
		return nil, clierr.New(clierr.CodeInvalidAmount, "invalid decimal amount")
	}
	return out, nil
}

// FromBaseUnits renders integer base units back into a decimal string with
// trailing fractional zeros trimmed. Zero renders as the literal "0".
func FromBaseUnits(baseUnits *big.Int, decimals int) (string, error) {
	if baseUnits == nil {
		return "", clierr.New(clierr.CodeInvalidAmount, "amount is required")
	}
	if baseUnits.Sign() < 0 {
		return "", clierr.New(clierr.CodeInvalidAmount, "amount must be non-negative")
	}
	if decimals < 0 {
		return "", clierr.New(clierr.CodeInvalidAmount, "decimals must be >= 0")
	}
	if decimals == 0 {
		return baseUnits.String(), nil
	}

	s := baseUnits.String()
	if len(s) <= decimals {
		s = strings.Repeat("0", decimals-len(s)+1) + s
	}
	intPart := s[:len(s)-decimals]
	fracPart := strings.TrimRight(s[len(s)-decimals:], "0")
	if fracPart == "" {
		return intPart, nil
	}
	return intPart + "." + fracPart, nil
}

// ParseBaseUnits validates an already base-unit integer string.
func ParseBaseUnits(v string) (*big.Int, error) {
	clean := strings.TrimSpace(v)
	if clean == "" {
		return nil, clierr.New(clierr.CodeInvalidAmount, "amount is required")
	}
	out, ok := new(big.Int).SetString(clean, 10)
	if !ok {
		return nil, clierr.New(clierr.CodeInvalidAmount, "amount must be an integer base-unit value")
	}
	if out.Sign() < 0 {
		return nil, clierr.New(clierr.CodeInvalidAmount, "amount must be non-negative")
	}
	return out, nil
}

// FormatBaseUnits is FromBaseUnits for callers holding a base-unit string; it
// returns "0" for anything unparseable so display paths never fail.
func FormatBaseUnits(baseUnits string, decimals int) string {
	n, err := ParseBaseUnits(baseUnits)
	if err != nil {
		return "0"
	}
	out, err := FromBaseUnits(n, decimals)
	if err != nil {
		return "0"
	}
	return out
}
