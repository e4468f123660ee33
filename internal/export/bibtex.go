// Package export renders resolved publications in citation formats.
package export

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/matsen/bibrename/internal/reference"
	"golang.org/x/text/unicode/norm"
)

// keyStopWords are skipped when picking the title word of a citation key.
var keyStopWords = map[string]bool{
	"a": true, "an": true, "the": true, "of": true, "on": true, "in": true,
	"for": true, "and": true, "to": true, "with": true, "from": true,
}

// BibTeX renders pub as a BibTeX entry keyed by CitationKey.
func BibTeX(pub *reference.Publication) string {
	if pub == nil {
		return ""
	}
	entryType := determineEntryType(pub.Container)
	var b strings.Builder

	b.WriteString(fmt.Sprintf("@%s{%s,\n", entryType, CitationKey(pub)))

	if len(pub.Authors) > 0 {
		b.WriteString(fmt.Sprintf("  author = {%s},\n", formatAuthors(pub.Authors)))
	}
	if pub.Title != "" {
		b.WriteString(fmt.Sprintf("  title = {%s},\n", escapeLatex(pub.Title)))
	}
	if pub.Container != "" {
		fieldName := "journal"
		if entryType == "inproceedings" {
			fieldName = "booktitle"
		}
		b.WriteString(fmt.Sprintf("  %s = {%s},\n", fieldName, escapeLatex(pub.Container)))
	}
	if pub.Year > 0 {
		b.WriteString(fmt.Sprintf("  year = {%d},\n", pub.Year))
	}
	if pub.DOI != "" {
		b.WriteString(fmt.Sprintf("  doi = {%s},\n", pub.DOI))
	}

	b.WriteString("}\n")
	return b.String()
}

// CitationKey builds a key like "Smith2021study" from the first author's
// family name, the year and the first significant title word, folded to
// ASCII letters and digits.
func CitationKey(pub *reference.Publication) string {
	var key strings.Builder

	if a, ok := pub.FirstAuthor(); ok {
		family := a.Family
		if family == "" {
			family = a.DisplayName()
		}
		key.WriteString(asciiWord(family, false))
	}
	if pub.Year > 0 {
		key.WriteString(strconv.Itoa(pub.Year))
	}
	for _, word := range strings.Fields(pub.Title) {
		if w := asciiWord(word, true); w != "" && !keyStopWords[w] {
			key.WriteString(w)
			break
		}
	}

	if key.Len() == 0 {
		return "unknown"
	}
	return key.String()
}

// asciiWord strips accents and keeps ASCII letters and digits.
func asciiWord(s string, lower bool) string {
	var b strings.Builder
	for _, r := range norm.NFD.String(s) {
		if r > unicode.MaxASCII || !(unicode.IsLetter(r) || unicode.IsDigit(r)) {
			continue
		}
		if lower {
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}
	return b.String()
}

// determineEntryType returns the BibTeX entry type for a container title.
func determineEntryType(container string) string {
	venue := strings.ToLower(container)

	if strings.Contains(venue, "proceedings") ||
		strings.Contains(venue, "conference") ||
		strings.Contains(venue, "workshop") ||
		strings.Contains(venue, "symposium") {
		return "inproceedings"
	}

	return "article"
}

// formatAuthors formats authors in BibTeX style: "Last, First and Last, First"
func formatAuthors(authors []reference.Author) string {
	var formatted []string
	for _, a := range authors {
		switch {
		case a.Family != "" && a.Given != "":
			formatted = append(formatted, fmt.Sprintf("%s, %s", escapeLatex(a.Family), escapeLatex(a.Given)))
		case a.Family != "":
			formatted = append(formatted, escapeLatex(a.Family))
		default:
			// Organizations and unsplit names are braced so BibTeX keeps them whole.
			formatted = append(formatted, "{"+escapeLatex(a.DisplayName())+"}")
		}
	}
	return strings.Join(formatted, " and ")
}

// escapeLatex escapes special LaTeX characters.
func escapeLatex(s string) string {
	replacer := strings.NewReplacer(
		`\`, `\textbackslash{}`,
		"&", `\&`,
		"%", `\%`,
		"$", `\$`,
		"#", `\#`,
		"_", `\_`,
		"{", `\{`,
		"}", `\}`,
		"~", `\textasciitilde{}`,
		"^", `\textasciicircum{}`,
	)
	return replacer.Replace(s)
}
