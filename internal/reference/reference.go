// Package reference defines the publication record shared by the metadata
// registries and the filename synthesizer.
package reference

// Publication is a registry record normalized to the fields needed for
// naming. Registries return partial data, so every field may be empty.
type Publication struct {
	DOI       string   `json:"doi"`
	Title     string   `json:"title,omitempty"`
	Authors   []Author `json:"authors,omitempty"`
	Year      int      `json:"year,omitempty"`      // 0 if unknown
	Container string   `json:"container,omitempty"` // Journal, conference, or preprint server

	// Source names the registry that answered (crossref, openalex).
	Source string `json:"source,omitempty"`
}

// FirstAuthor returns the first listed author, if any.
func (p *Publication) FirstAuthor() (Author, bool) {
	if p == nil || len(p.Authors) == 0 {
		return Author{}, false
	}
	return p.Authors[0], true
}
