package metadata

import (
	"context"
	"fmt"
	"strings"

	"github.com/matsen/bibrename/internal/doi"
	"github.com/matsen/bibrename/internal/reference"
)

// OpenAlexURL is the OpenAlex API base URL.
const OpenAlexURL = "https://api.openalex.org"

// OpenAlex looks DOIs up in the OpenAlex works API.
type OpenAlex struct {
	c *client
}

// NewOpenAlex creates an OpenAlex source.
func NewOpenAlex(opts ...SourceOption) *OpenAlex {
	return &OpenAlex{c: newClient("openalex", OpenAlexURL, opts)}
}

// Name returns "openalex".
func (s *OpenAlex) Name() string {
	return s.c.name
}

type openAlexWork struct {
	ID              string               `json:"id"`
	DOI             string               `json:"doi"`
	Title           string               `json:"title"`
	DisplayName     string               `json:"display_name"`
	PublicationYear int                  `json:"publication_year"`
	Authorships     []openAlexAuthorship `json:"authorships"`
	PrimaryLocation *struct {
		Source *openAlexNamed `json:"source"`
	} `json:"primary_location"`
	HostVenue *openAlexNamed `json:"host_venue"`
}

type openAlexAuthorship struct {
	Author        openAlexNamed `json:"author"`
	RawAuthorName string        `json:"raw_author_name"`
}

type openAlexNamed struct {
	DisplayName string `json:"display_name"`
}

// Fetch retrieves the work record for d.
func (s *OpenAlex) Fetch(ctx context.Context, d doi.DOI) (*reference.Publication, error) {
	var w openAlexWork
	if err := s.c.getJSON(ctx, "/works/https://doi.org/"+escapeDOI(d), &w); err != nil {
		return nil, err
	}
	if w.ID == "" {
		return nil, fmt.Errorf("%w: openalex: missing work id", ErrMalformed)
	}
	return mapOpenAlex(d, &w), nil
}

func mapOpenAlex(requested doi.DOI, w *openAlexWork) *reference.Publication {
	pub := &reference.Publication{
		DOI:    firstNonEmpty(doi.Clean(w.DOI).String(), requested.String()),
		Title:  firstNonEmpty(w.Title, w.DisplayName),
		Year:   w.PublicationYear,
		Source: "openalex",
	}

	var venues []string
	if w.PrimaryLocation != nil && w.PrimaryLocation.Source != nil {
		venues = append(venues, w.PrimaryLocation.Source.DisplayName)
	}
	if w.HostVenue != nil {
		venues = append(venues, w.HostVenue.DisplayName)
	}
	pub.Container = firstNonEmpty(venues...)

	for _, a := range w.Authorships {
		name := firstNonEmpty(a.Author.DisplayName, a.RawAuthorName)
		if strings.TrimSpace(name) == "" {
			continue
		}
		pub.Authors = append(pub.Authors, reference.AuthorFromName(name))
	}

	return pub
}
