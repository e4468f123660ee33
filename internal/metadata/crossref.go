package metadata

import (
	"context"
	"fmt"

	"github.com/matsen/bibrename/internal/doi"
	"github.com/matsen/bibrename/internal/reference"
)

// CrossrefURL is the Crossref REST API base URL.
const CrossrefURL = "https://api.crossref.org"

// Crossref looks DOIs up in the Crossref works API.
type Crossref struct {
	c *client
}

// NewCrossref creates a Crossref source.
func NewCrossref(opts ...SourceOption) *Crossref {
	return &Crossref{c: newClient("crossref", CrossrefURL, opts)}
}

// Name returns "crossref".
func (s *Crossref) Name() string {
	return s.c.name
}

type crossrefEnvelope struct {
	Status  string        `json:"status"`
	Message *crossrefWork `json:"message"`
}

type crossrefWork struct {
	DOI                 string           `json:"DOI"`
	Title               []string         `json:"title"`
	ContainerTitle      []string         `json:"container-title"`
	ShortContainerTitle []string         `json:"short-container-title"`
	Author              []crossrefAuthor `json:"author"`
	Issued              crossrefDate     `json:"issued"`
	PublishedPrint      crossrefDate     `json:"published-print"`
	PublishedOnline     crossrefDate     `json:"published-online"`
	Created             crossrefDate     `json:"created"`
}

type crossrefAuthor struct {
	Given  string `json:"given"`
	Family string `json:"family"`
	Name   string `json:"name"` // Organizational authors
}

type crossrefDate struct {
	DateParts [][]*int `json:"date-parts"`
}

// year returns the first date part, or 0 when absent or null.
func (d crossrefDate) year() int {
	if len(d.DateParts) == 0 || len(d.DateParts[0]) == 0 || d.DateParts[0][0] == nil {
		return 0
	}
	return *d.DateParts[0][0]
}

// Fetch retrieves the work record for d.
func (s *Crossref) Fetch(ctx context.Context, d doi.DOI) (*reference.Publication, error) {
	var env crossrefEnvelope
	if err := s.c.getJSON(ctx, "/works/"+escapeDOI(d), &env); err != nil {
		return nil, err
	}
	if env.Message == nil {
		return nil, fmt.Errorf("%w: crossref: missing message envelope", ErrMalformed)
	}
	return mapCrossref(d, env.Message), nil
}

func mapCrossref(requested doi.DOI, w *crossrefWork) *reference.Publication {
	pub := &reference.Publication{
		DOI:       firstNonEmpty(w.DOI, requested.String()),
		Title:     firstNonEmpty(w.Title...),
		Container: firstNonEmpty(append(append([]string{}, w.ContainerTitle...), w.ShortContainerTitle...)...),
		Source:    "crossref",
	}

	for _, date := range []crossrefDate{w.Issued, w.PublishedPrint, w.PublishedOnline, w.Created} {
		if y := date.year(); y > 0 {
			pub.Year = y
			break
		}
	}

	for _, a := range w.Author {
		author := reference.Author{
			Given:  cleanText(a.Given),
			Family: cleanText(a.Family),
			Name:   cleanText(a.Name),
		}
		if author.Family == "" && author.Given == "" && author.Name == "" {
			continue
		}
		pub.Authors = append(pub.Authors, author)
	}

	return pub
}
