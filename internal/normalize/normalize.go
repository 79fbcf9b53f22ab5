// Package normalize turns raw text cells scraped from the results portal into
// typed values.
//
// Nothing in this package fails on bad input: unparsable scores become 0 and
// missing cells become empty strings. The Field type keeps the distinction
// between "cell absent from the markup" and "cell present but empty" until a
// caller collapses it with Text or Score.
package normalize

import (
	"regexp"
	"strconv"
	"strings"
)

// leadingNumber matches the numeric prefix a lenient float parser accepts.
var leadingNumber = regexp.MustCompile(`^[+-]?(?:\d+\.?\d*|\.\d+)(?:[eE][+-]?\d+)?`)

// Score parses a score cell such as "14,5". The first comma is read as the
// decimal separator and trailing garbage after the number is ignored.
// Empty or non-numeric input yields 0.
func Score(raw string) float64 {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0
	}
	s = strings.Replace(s, ",", ".", 1)

	m := leadingNumber.FindString(s)
	if m == "" {
		return 0
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0
	}
	return v
}

// Text trims a raw cell.
func Text(raw string) string {
	return strings.TrimSpace(raw)
}

// Field is the outcome of looking up one cell in the markup.
type Field struct {
	raw   string
	found bool
}

// Found wraps a cell that exists in the markup.
func Found(raw string) Field {
	return Field{raw: raw, found: true}
}

// Missing is a cell that the markup did not contain.
var Missing = Field{}

// At returns the i-th cell of items, or Missing when out of range.
func At(items []string, i int) Field {
	if i < 0 || i >= len(items) {
		return Missing
	}
	return Found(items[i])
}

// IsFound reports whether the cell existed in the markup.
func (f Field) IsFound() bool {
	return f.found
}

// Text collapses the field to a trimmed string ("" when missing).
func (f Field) Text() string {
	if !f.found {
		return ""
	}
	return Text(f.raw)
}

// Score collapses the field to a number (0 when missing or unparsable).
func (f Field) Score() float64 {
	if !f.found {
		return 0
	}
	return Score(f.raw)
}
