// Package doi finds and normalizes Digital Object Identifiers in free text.
package doi

import (
	"regexp"
	"strings"
	"unicode"
)

// pattern matches 10.<4-9 digit registrant>/<suffix>, where the suffix is
// limited to the characters commonly seen in printed DOIs.
var pattern = regexp.MustCompile(`(?i)10\.\d{4,9}/[\w.()/:;\-]+`)

// prefixPattern matches resolver URLs and "doi:" labels in front of a DOI.
var prefixPattern = regexp.MustCompile(`(?i)^(?:https?://)?(?:dx\.)?doi\.org/|^doi:`)

// trailingPunctuation is stripped from the end of a match. These are almost
// always sentence or citation boundaries rather than part of the identifier.
const trailingPunctuation = ").,;:]}"

// DOI is a normalized identifier. The original case is preserved for
// display; comparisons go through Key.
type DOI string

// String returns the DOI as printed.
func (d DOI) String() string {
	return string(d)
}

// Key returns the lowercase comparison form.
func (d DOI) Key() string {
	return strings.ToLower(string(d))
}

// Equal reports whether two DOIs normalize to the same identifier.
func (d DOI) Equal(other DOI) bool {
	return Clean(string(d)).Key() == Clean(string(other)).Key()
}

// IsZero reports whether the DOI is empty.
func (d DOI) IsZero() bool {
	return d == ""
}

// URL returns the doi.org resolver URL for the DOI.
func (d DOI) URL() string {
	return "https://doi.org/" + string(d)
}

// Clean normalizes a raw DOI string: resolver prefixes, whitespace, angle
// brackets, quotes and trailing punctuation are removed. An empty result
// means the input did not contain an identifier.
func Clean(raw string) DOI {
	s := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		switch r {
		case '<', '>', '"', '\'', '“', '”', '‘', '’':
			return -1
		}
		return r
	}, raw)

	for {
		stripped := prefixPattern.ReplaceAllString(s, "")
		if stripped == s {
			break
		}
		s = stripped
	}

	return DOI(strings.TrimRight(s, trailingPunctuation))
}

// Detect returns the DOIs found in text in first-occurrence order, with
// duplicates (by Key) removed. It returns nil when nothing matches.
func Detect(text string) []DOI {
	matches := pattern.FindAllString(text, -1)
	if len(matches) == 0 {
		return nil
	}

	seen := make(map[string]bool, len(matches))
	var out []DOI
	for _, m := range matches {
		d := Clean(m)
		if !looksValid(d) || seen[d.Key()] {
			continue
		}
		seen[d.Key()] = true
		out = append(out, d)
	}
	return out
}

// First returns the first DOI in text, or the zero DOI.
func First(text string) DOI {
	if found := Detect(text); len(found) > 0 {
		return found[0]
	}
	return ""
}

// looksValid rejects matches whose suffix was entirely punctuation.
func looksValid(d DOI) bool {
	s := string(d)
	slash := strings.Index(s, "/")
	return strings.HasPrefix(s, "10.") && slash != -1 && slash < len(s)-1
}
