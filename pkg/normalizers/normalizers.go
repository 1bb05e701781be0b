// Package normalizers provides field normalization for raw listing data
package normalizers

import (
	"strconv"
	"strings"
	"unicode"
)

// Price parses raw marketplace price text ("1.234,56 TL") into a float.
// The currency marker and thousands separators are stripped and the decimal
// comma becomes a decimal point. Empty or unparsable input yields 0.0, which
// callers must treat as "no usable price extracted", not a real zero price.
func Price(value string) float64 {
	if value == "" {
		return 0.0
	}

	cleaned := strings.ReplaceAll(value, "TL", "")
	cleaned = strings.ReplaceAll(cleaned, "₺", "")
	cleaned = strings.ReplaceAll(cleaned, ".", "")
	cleaned = strings.ReplaceAll(cleaned, ",", ".")
	cleaned = strings.TrimSpace(cleaned)

	price, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0.0
	}
	return price
}

// Rating parses a decimal-comma rating ("4,6") into a float. Unparsable input
// yields 0.0.
func Rating(value string) float64 {
	cleaned := strings.TrimSpace(strings.ReplaceAll(value, ",", "."))
	rating, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0.0
	}
	return rating
}

// FirstNumber extracts the first decimal number from text that wraps it in
// other characters, e.g. a seller score rendered as "%98,5". Decimal commas
// are normalized first; no number yields 0.0.
func FirstNumber(value string) float64 {
	cleaned := strings.ReplaceAll(value, ",", ".")
	start := -1
	for i, r := range cleaned {
		if r >= '0' && r <= '9' {
			start = i
			break
		}
	}
	if start == -1 {
		return 0.0
	}
	end := start
	seenDot := false
	for end < len(cleaned) {
		c := cleaned[end]
		if c >= '0' && c <= '9' {
			end++
			continue
		}
		if c == '.' && !seenDot {
			seenDot = true
			end++
			continue
		}
		break
	}
	number, err := strconv.ParseFloat(strings.TrimSuffix(cleaned[start:end], "."), 64)
	if err != nil {
		return 0.0
	}
	return number
}

// Text trims a scraped text node and collapses internal whitespace runs to a
// single space.
func Text(s string) string {
	var result strings.Builder
	prevSpace := false
	for _, r := range strings.TrimSpace(s) {
		if unicode.IsSpace(r) {
			if !prevSpace {
				result.WriteRune(' ')
				prevSpace = true
			}
			continue
		}
		result.WriteRune(r)
		prevSpace = false
	}
	return result.String()
}
