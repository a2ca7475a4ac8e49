// src/security/validation/sanitizers.go
package validation

import (
	"html"
	"strings"
	"unicode"

	"github.com/microcosm-cc/bluemonday"
)

var strictHTMLPolicy *bluemonday.Policy

func init() {
	strictHTMLPolicy = bluemonday.StrictPolicy() // Removes all HTML tags
}

// SanitizeText removes all HTML tags and attributes from an input string.
func SanitizeText(s string) string {
	return strictHTMLPolicy.Sanitize(s)
}

// SanitizeFilterValue cleans a filter value received from the dashboard:
// markup and control characters are removed and the result is trimmed.
// The value is still bound as a query parameter afterwards.
func SanitizeFilterValue(s, fieldName string) (string, error) {
	// bluemonday escapes what it keeps; filter values are compared raw.
	cleaned := html.UnescapeString(SanitizeText(StripUnprintable(s)))
	cleaned = strings.TrimSpace(strings.Map(func(r rune) rune {
		if r == '\t' || r == '\n' || r == '\r' {
			return ' '
		}
		return r
	}, cleaned))
	if err := ValidateStringMaxLength(cleaned, DefaultMaxStringLength, fieldName); err != nil {
		return "", err
	}
	return cleaned, nil
}

// SanitizeFilterList applies SanitizeFilterValue to each item, dropping blanks.
func SanitizeFilterList(values []string, fieldName string) ([]string, error) {
	out := make([]string, 0, len(values))
	for _, v := range values {
		cleaned, err := SanitizeFilterValue(v, fieldName)
		if err != nil {
			return nil, err
		}
		if cleaned != "" {
			out = append(out, cleaned)
		}
	}
	return out, nil
}

// SanitizeForFormulaInjection prepends a single quote if the string starts with a formula character.
// This prevents CSV Injection (Formula Injection) in Excel/Sheets.
func SanitizeForFormulaInjection(s string) string {
	trimmed := strings.TrimSpace(s)

	if len(trimmed) == 0 {
		return s
	}

	switch trimmed[0] {
	case '=', '+', '-', '@', '\t', '\r':
		// A leading quote forces the cell to be treated as text
		return "'" + s
	}

	return s
}

// StripUnprintable removes non-printable characters, allowing common whitespace
// like space, tab, newline, and carriage return.
func StripUnprintable(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsPrint(r) || r == '\t' || r == '\n' || r == '\r' {
			return r
		}
		return -1
	}, s)
}
