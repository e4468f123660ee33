// Package filename derives canonical PDF filenames from publication
// metadata.
package filename

import (
	"path"
	"strconv"
	"strings"
	"unicode"

	"github.com/matsen/bibrename/internal/reference"
)

// Limits applied while composing a name, in runes.
const (
	MaxTitleLength   = 60
	MaxJournalLength = 40
	MaxBaseLength    = 180
)

// Extension is appended to every metadata-derived name.
const Extension = ".pdf"

// TruncationMark is appended to shortened titles.
const TruncationMark = "…"

// Replacement tokens for segments that sanitize to nothing.
const (
	UnknownYear    = "UnknownYear"
	UnknownAuthor  = "UnknownAuthor"
	Untitled       = "Untitled"
	UnknownJournal = "UnknownJournal"
	UnknownDOI     = "UnknownDOI"
)

// journalStopWords are skipped when abbreviating a journal name.
var journalStopWords = map[string]bool{"of": true, "and": true, "the": true, "in": true}

// Synthesizer builds candidate filenames with a fixed template.
type Synthesizer struct {
	template Template
}

// New creates a Synthesizer. An invalid template falls back to
// DefaultTemplate; callers validate user-supplied templates up front.
func New(t Template) *Synthesizer {
	if t.Validate() != nil {
		t = DefaultTemplate
	}
	return &Synthesizer{template: t}
}

// Template returns the template in use.
func (s *Synthesizer) Template() Template {
	return s.template
}

// Candidate returns the filename for pub, or the sanitized fallback name
// when pub is nil. The result is never empty.
func (s *Synthesizer) Candidate(pub *reference.Publication, fallback string) string {
	if pub == nil {
		return Fallback(fallback)
	}

	parts := make([]string, len(s.template.Segments))
	for i, seg := range s.template.Segments {
		parts[i] = segmentValue(seg, pub)
	}

	base := strings.Join(parts, s.template.Separator)
	if cut, truncated := truncateRunes(base, MaxBaseLength); truncated {
		base = strings.TrimRightFunc(cut, func(r rune) bool {
			return unicode.IsSpace(r) || strings.ContainsRune(s.template.Separator, r)
		})
	}
	return base + Extension
}

func segmentValue(seg Segment, pub *reference.Publication) string {
	switch seg {
	case SegmentYear:
		if pub.Year > 0 {
			return strconv.Itoa(pub.Year)
		}
		return UnknownYear
	case SegmentAuthor:
		return AuthorSegment(pub)
	case SegmentTitle:
		return TitleSegment(pub.Title)
	case SegmentJournal:
		return AbbreviateJournal(pub.Container)
	case SegmentDOI:
		if v := Sanitize(strings.ReplaceAll(pub.DOI, "/", "-")); v != "" {
			return v
		}
		return UnknownDOI
	}
	return ""
}

// AuthorSegment returns the first author's family name, or the display
// name when no family name is known.
func AuthorSegment(pub *reference.Publication) string {
	author, ok := pub.FirstAuthor()
	if !ok {
		return UnknownAuthor
	}
	if v := Sanitize(author.Family); v != "" {
		return v
	}
	if v := Sanitize(author.DisplayName()); v != "" {
		return v
	}
	return UnknownAuthor
}

// TitleSegment sanitizes and shortens a title, marking truncation.
func TitleSegment(title string) string {
	v := Sanitize(title)
	if v == "" {
		return Untitled
	}
	if cut, truncated := truncateRunes(v, MaxTitleLength); truncated {
		return strings.TrimRightFunc(cut, unicode.IsSpace) + TruncationMark
	}
	return v
}

// AbbreviateJournal returns the uppercase initials of the significant
// words in name: "Journal of the Royal Society" becomes "JRS".
func AbbreviateJournal(name string) string {
	var abbrev strings.Builder
	for _, word := range strings.Fields(Sanitize(name)) {
		if journalStopWords[strings.ToLower(word)] {
			continue
		}
		for _, r := range word {
			if unicode.IsLetter(r) || unicode.IsDigit(r) {
				abbrev.WriteString(strings.ToUpper(string(r)))
				break
			}
		}
	}

	result, _ := truncateRunes(abbrev.String(), MaxJournalLength)
	if result == "" {
		return UnknownJournal
	}
	return result
}

// Fallback sanitizes an original filename, keeping its extension.
func Fallback(name string) string {
	base := path.Base(strings.ReplaceAll(name, `\`, "/"))
	if base == "." || base == "/" {
		base = ""
	}

	ext := path.Ext(base)
	stem := Sanitize(strings.TrimSuffix(base, ext))
	ext = Sanitize(ext)
	if ext == "." {
		ext = ""
	}

	if stem == "" {
		stem = Untitled
	}
	stem, _ = truncateRunes(stem, MaxBaseLength)
	return strings.TrimRightFunc(stem, unicode.IsSpace) + ext
}
