// Package normalize computes display forms for location and researcher names.
package normalize

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Location returns the canonical display form of a location string: trimmed,
// lower-cased, internal whitespace collapsed, a leading "the " removed and the
// first letter of every word upper-cased. Repeated leading articles are all
// removed so that Location(Location(s)) == Location(s).
func Location(s string) string {
	fields := strings.Fields(strings.ToLower(norm.NFC.String(s)))
	for len(fields) > 1 && fields[0] == "the" {
		fields = fields[1:]
	}
	for i, f := range fields {
		fields[i] = upperFirst(f)
	}
	return strings.Join(fields, " ")
}

// Researcher normalizes a "Last, First" style researcher name part by part.
func Researcher(s string) string {
	parts := strings.Split(strings.TrimSpace(s), ",")
	for i, p := range parts {
		words := strings.Fields(strings.ToLower(norm.NFC.String(p)))
		for j, w := range words {
			words[j] = upperFirst(w)
		}
		parts[i] = strings.Join(words, " ")
	}
	return strings.Join(parts, ", ")
}

// Key returns a case- and whitespace-insensitive comparison key.
func Key(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(norm.NFC.String(s))), " ")
}

func upperFirst(w string) string {
	r, size := utf8.DecodeRuneInString(w)
	if r == utf8.RuneError {
		return w
	}
	return string(unicode.ToUpper(r)) + w[size:]
}
