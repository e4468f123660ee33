package handler

import (
	"fmt"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"unicode"

	"github.com/matsen/bibrename/internal/job"
	"github.com/matsen/bibrename/internal/server/response"
	"github.com/matsen/bibrename/internal/sink"
)

// Response headers describing the outcome of a rename.
const (
	HeaderStatus = "X-Bibrename-Status"
	HeaderDOI    = "X-Bibrename-DOI"
	HeaderError  = "X-Bibrename-Error"
)

// NewRenameHandler returns an http.HandlerFunc for POST /api/v1/rename.
// The upload runs as a one-job batch; the PDF comes back unchanged under
// its synthesized name. A failed lookup still returns the file under its
// sanitized original name.
func NewRenameHandler(p Pipeline) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := p.limit()
		up, uerr := readUpload(w, r, limit)
		if uerr != nil {
			uerr.write(w, limit)
			return
		}

		rec := &sink.Recorder{}
		o := job.NewOrchestrator(p.Text, p.Resolver,
			job.WithSynthesizer(p.synthesizer()),
			job.WithSink(rec),
			job.WithLogger(p.logger()),
			job.WithDownloadSpacing(0),
		)

		j, err := o.Add(up.Name, up.Data)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, response.CodeInternal, "Could not queue upload", nil)
			return
		}
		if up.DOI != "" {
			if _, err := o.SelectDOI(r.Context(), j.ID, up.DOI); err != nil {
				response.Error(w, http.StatusInternalServerError, response.CodeInternal, "Could not set DOI", nil)
				return
			}
		}

		j, err = o.Process(r.Context(), j.ID)
		if err != nil {
			p.logger().Error("rename pipeline failed", "file", up.Name, "error", err)
			response.Error(w, http.StatusInternalServerError, response.CodeInternal, "Could not process upload", nil)
			return
		}

		if j.Status == job.StatusFailed {
			switch j.Error {
			case job.ReasonExtraction:
				response.Error(w, http.StatusBadRequest, response.CodeInvalidRequest, "Malformed or invalid PDF file", nil)
				return
			case job.ReasonNoDOI:
				response.Error(w, http.StatusNotFound, response.CodeNotFound, "DOI not found in first two pages", nil)
				return
			case job.ReasonInvalidDOI:
				response.Error(w, http.StatusBadRequest, response.CodeInvalidDOI, "Invalid DOI", nil)
				return
			}
		}

		if _, err := o.Download(r.Context(), j.ID); err != nil {
			response.Error(w, http.StatusInternalServerError, response.CodeInternal, "Could not prepare download", nil)
			return
		}
		saved := rec.Downloads()[0]

		h := w.Header()
		h.Set("Content-Type", "application/pdf")
		h.Set("Content-Disposition", contentDisposition(saved.Name))
		h.Set("Content-Length", strconv.Itoa(len(saved.Data)))
		h.Set("Cache-Control", "public, max-age=3600")
		h.Set(HeaderStatus, string(j.Status))
		if !j.SelectedDOI.IsZero() {
			h.Set(HeaderDOI, j.SelectedDOI.String())
		}
		if j.Status == job.StatusFailed {
			h.Set(HeaderError, j.Error)
		}
		w.WriteHeader(http.StatusOK)
		w.Write(saved.Data)
	}
}

// contentDisposition builds an attachment header. Names outside printable
// ASCII get an RFC 6266 filename* parameter next to an ASCII fallback.
func contentDisposition(name string) string {
	if isPlainASCII(name) {
		return fmt.Sprintf(`attachment; filename="%s"`, name)
	}

	fallback := strings.Map(func(r rune) rune {
		if r > unicode.MaxASCII || !unicode.IsPrint(r) || r == '"' || r == '\\' {
			return '_'
		}
		return r
	}, name)
	encoded := mime.FormatMediaType("attachment", map[string]string{"filename": name})
	return fmt.Sprintf(`attachment; filename="%s"; %s`, fallback, strings.TrimPrefix(encoded, "attachment; "))
}

func isPlainASCII(s string) bool {
	for _, r := range s {
		if r > unicode.MaxASCII || !unicode.IsPrint(r) || r == '"' || r == '\\' {
			return false
		}
	}
	return true
}
