package domain

import (
	"regexp"
	"strings"
)

var symbolRegex = regexp.MustCompile(`^[A-Z]{1,10}$`)

// NormalizeSymbol trims surrounding whitespace and uppercases a symbol.
// Symbols are stored and looked up in this form.
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// ValidSymbol reports whether symbol matches ^[A-Z]{1,10}$.
func ValidSymbol(symbol string) bool {
	return symbolRegex.MatchString(symbol)
}
