package reference

import "strings"

// Author is a paper author. Registries either supply structured family and
// given names or only a display name.
type Author struct {
	Given  string `json:"given,omitempty"`
	Family string `json:"family,omitempty"`
	Name   string `json:"name,omitempty"` // Display name as printed by the registry
}

// DisplayName returns the display name, composing one from the structured
// parts when the registry did not supply it.
func (a Author) DisplayName() string {
	if a.Name != "" {
		return a.Name
	}
	return strings.TrimSpace(a.Given + " " + a.Family)
}

// Common name suffixes to keep with the family name.
var nameSuffixes = map[string]bool{
	"jr":   true,
	"jr.":  true,
	"sr":   true,
	"sr.":  true,
	"ii":   true,
	"iii":  true,
	"iv":   true,
	"v":    true,
	"phd":  true,
	"ph.d": true,
	"md":   true,
	"m.d":  true,
}

// AuthorFromName builds an Author from a display name, splitting off the
// family name.
func AuthorFromName(name string) Author {
	given, family := SplitName(name)
	return Author{Given: given, Family: family, Name: strings.Join(strings.Fields(name), " ")}
}

// SplitName splits a display name into given and family names, keeping
// common suffixes (Jr, III, PhD) with the family name.
//
// Known limitations:
// - Multi-part surnames (von Neumann, van der Waals) split incorrectly
// - Non-Western name formats may not be handled correctly
func SplitName(name string) (given, family string) {
	parts := strings.Fields(name)
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return "", parts[0]
	}

	lastPart := strings.ToLower(parts[len(parts)-1])
	if nameSuffixes[lastPart] && len(parts) > 2 {
		family = parts[len(parts)-2] + " " + parts[len(parts)-1]
		given = strings.Join(parts[:len(parts)-2], " ")
	} else {
		family = parts[len(parts)-1]
		given = strings.Join(parts[:len(parts)-1], " ")
	}

	return given, family
}
