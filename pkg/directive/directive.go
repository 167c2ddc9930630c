// Package directive scans script text for include directives.
//
// The grammar is purely textual: a directive is the literal prefix
// "--#include(", one or more word characters naming the package, and a
// closing ")". Word characters are Unicode letters, marks, decimal digits
// and connector punctuation such as "_". The scanner does not understand the
// host language, so a directive inside a string or a comment is still a
// directive.
package directive

import (
	"regexp"
)

// Prefix and Suffix delimit the package name inside a directive.
const (
	Prefix = "--#include("
	Suffix = ")"
)

var _includeRe = regexp.MustCompile(`--#include\(([\p{L}\p{M}\p{Nd}\p{Pc}]+)\)`)

// Occurrence is one directive match within a text.
type Occurrence struct {
	// Name is the package name between the delimiters.
	Name string
	// Text is the matched directive, byte-identical to the source.
	Text string
	// Start and End are the byte offsets of Text in the scanned input.
	Start int
	End   int
}

// Scan returns every non-overlapping directive in text, in order of
// appearance.
func Scan(text string) []Occurrence {
	idx := _includeRe.FindAllStringSubmatchIndex(text, -1)
	if len(idx) == 0 {
		return nil
	}
	occs := make([]Occurrence, 0, len(idx))
	for _, m := range idx {
		occs = append(occs, Occurrence{
			Name:  text[m[2]:m[3]],
			Text:  text[m[0]:m[1]],
			Start: m[0],
			End:   m[1],
		})
	}
	return occs
}

// Unique keeps the first occurrence of each distinct directive text,
// preserving discovery order.
func Unique(occs []Occurrence) []Occurrence {
	seen := make(map[string]struct{}, len(occs))
	out := make([]Occurrence, 0, len(occs))
	for _, o := range occs {
		if _, ok := seen[o.Text]; ok {
			continue
		}
		seen[o.Text] = struct{}{}
		out = append(out, o)
	}
	return out
}

// Contains reports whether text holds at least one directive.
func Contains(text string) bool {
	return _includeRe.MatchString(text)
}

// Format renders the directive text for a package name.
func Format(name string) string {
	return Prefix + name + Suffix
}
