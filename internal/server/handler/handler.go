// Package handler implements the HTTP endpoints of the rename service.
package handler

import (
	"log/slog"
	"net/http"

	"github.com/matsen/bibrename/internal/filename"
	"github.com/matsen/bibrename/internal/job"
	"github.com/matsen/bibrename/internal/server/response"
)

// DefaultMaxUploadBytes caps uploaded PDFs.
const DefaultMaxUploadBytes = 20 << 20

// Pipeline holds the collaborators the handlers run uploads through.
type Pipeline struct {
	Text           job.TextProvider
	Resolver       job.Resolver
	Synthesizer    *filename.Synthesizer
	MaxUploadBytes int64
	Logger         *slog.Logger
}

func (p Pipeline) limit() int64 {
	if p.MaxUploadBytes <= 0 {
		return DefaultMaxUploadBytes
	}
	return p.MaxUploadBytes
}

func (p Pipeline) logger() *slog.Logger {
	if p.Logger == nil {
		return slog.Default()
	}
	return p.Logger
}

func (p Pipeline) synthesizer() *filename.Synthesizer {
	if p.Synthesizer == nil {
		return filename.New(filename.DefaultTemplate)
	}
	return p.Synthesizer
}

// NewHealthHandler returns an http.HandlerFunc for GET /api/v1/health.
func NewHealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, map[string]string{"status": "ok"})
	}
}
