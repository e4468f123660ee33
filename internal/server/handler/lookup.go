package handler

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/matsen/bibrename/internal/doi"
	"github.com/matsen/bibrename/internal/metadata"
	"github.com/matsen/bibrename/internal/reference"
	"github.com/matsen/bibrename/internal/server/response"
)

// LookupResult is a resolved DOI and the filename it would produce.
type LookupResult struct {
	DOI         doi.DOI                `json:"doi"`
	Publication *reference.Publication `json:"publication"`
	Filename    string                 `json:"filename"`
}

// NewLookupHandler returns an http.HandlerFunc for GET /api/v1/lookup/*.
// The DOI is the remainder of the path, so its slash needs no escaping.
func NewLookupHandler(p Pipeline) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw := chi.URLParam(r, "*")
		if unescaped, err := url.PathUnescape(raw); err == nil {
			raw = unescaped
		}

		d := doi.Clean(raw)
		if d.IsZero() {
			response.Error(w, http.StatusBadRequest, response.CodeInvalidDOI, "Invalid DOI", nil)
			return
		}

		pub, err := p.Resolver.Resolve(r.Context(), d)
		if err != nil {
			switch {
			case errors.Is(err, metadata.ErrInvalidDOI):
				response.Error(w, http.StatusBadRequest, response.CodeInvalidDOI, "Invalid DOI", nil)
			case metadata.IsNotFound(err):
				response.Error(w, http.StatusNotFound, response.CodeNotFound, "DOI not found in any registry", nil)
			default:
				p.logger().Warn("lookup failed", "doi", d.String(), "error", err)
				response.Error(w, http.StatusBadGateway, response.CodeUpstream, "Metadata registries unavailable", nil)
			}
			return
		}

		response.JSON(w, LookupResult{
			DOI:         d,
			Publication: pub,
			Filename:    p.synthesizer().Candidate(pub, ""),
		})
	}
}
