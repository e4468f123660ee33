package filename

import (
	"fmt"
	"strings"
)

// Segment names one component of a synthesized filename.
type Segment string

const (
	SegmentYear    Segment = "year"
	SegmentAuthor  Segment = "author"
	SegmentTitle   Segment = "title"
	SegmentJournal Segment = "journal"
	SegmentDOI     Segment = "doi"
)

// ValidSegments lists the supported segment names.
var ValidSegments = []Segment{SegmentYear, SegmentAuthor, SegmentTitle, SegmentJournal, SegmentDOI}

// Template fixes the order of segments and the separator between them.
type Template struct {
	Segments  []Segment `yaml:"segments" json:"segments"`
	Separator string    `yaml:"separator" json:"separator"`
}

// Built-in templates.
var (
	// DefaultTemplate yields "2021 - Smith - A Study of Things - JRS.pdf".
	DefaultTemplate = Template{
		Segments:  []Segment{SegmentYear, SegmentAuthor, SegmentTitle, SegmentJournal},
		Separator: " - ",
	}

	// CompactTemplate yields "JRS_2021_Smith_A Study of Things_10.1000-abc.pdf".
	CompactTemplate = Template{
		Segments:  []Segment{SegmentJournal, SegmentYear, SegmentAuthor, SegmentTitle, SegmentDOI},
		Separator: "_",
	}
)

// Presets maps preset names to templates.
var Presets = map[string]Template{
	"default": DefaultTemplate,
	"compact": CompactTemplate,
}

// Preset returns the named built-in template.
func Preset(name string) (Template, error) {
	if name == "" {
		return DefaultTemplate, nil
	}
	t, ok := Presets[strings.ToLower(name)]
	if !ok {
		return Template{}, fmt.Errorf("unknown template %q (valid: default, compact)", name)
	}
	return t, nil
}

// ParseSegments parses a comma-separated segment list such as
// "year,author,title,journal".
func ParseSegments(s string) ([]Segment, error) {
	var segments []Segment
	for _, part := range strings.Split(s, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part == "" {
			continue
		}
		seg := Segment(part)
		if !isValidSegment(seg) {
			return nil, fmt.Errorf("unknown segment %q", part)
		}
		segments = append(segments, seg)
	}
	if len(segments) == 0 {
		return nil, fmt.Errorf("no segments in %q", s)
	}
	return segments, nil
}

// Validate checks that the template has known segments and a separator
// that survives sanitization.
func (t Template) Validate() error {
	if len(t.Segments) == 0 {
		return fmt.Errorf("template has no segments")
	}
	for _, seg := range t.Segments {
		if !isValidSegment(seg) {
			return fmt.Errorf("unknown segment %q", seg)
		}
	}
	if t.Separator == "" {
		return fmt.Errorf("template separator is empty")
	}
	if strings.ContainsAny(t.Separator, hostileChars) {
		return fmt.Errorf("template separator %q contains a path character", t.Separator)
	}
	return nil
}

// String renders the template as "year - author - title - journal".
func (t Template) String() string {
	names := make([]string, len(t.Segments))
	for i, seg := range t.Segments {
		names[i] = string(seg)
	}
	return strings.Join(names, t.Separator)
}

func isValidSegment(seg Segment) bool {
	for _, v := range ValidSegments {
		if seg == v {
			return true
		}
	}
	return false
}
