package handler

import (
	"net/http"

	"github.com/matsen/bibrename/internal/doi"
	"github.com/matsen/bibrename/internal/server/response"
)

// DetectResult lists the DOIs found in an uploaded PDF.
type DetectResult struct {
	FileName string    `json:"file_name"`
	DOIs     []doi.DOI `json:"dois"`
}

// NewDetectHandler returns an http.HandlerFunc for POST /api/v1/detect.
func NewDetectHandler(p Pipeline) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := p.limit()
		up, uerr := readUpload(w, r, limit)
		if uerr != nil {
			uerr.write(w, limit)
			return
		}

		text, err := p.Text.Text(r.Context(), up.Data)
		if err != nil {
			p.logger().Warn("text extraction failed", "file", up.Name, "error", err)
			response.Error(w, http.StatusBadRequest, response.CodeInvalidRequest, "Malformed or invalid PDF file", nil)
			return
		}

		found := doi.Detect(text)
		if found == nil {
			found = []doi.DOI{}
		}
		response.JSON(w, DetectResult{FileName: up.Name, DOIs: found})
	}
}
