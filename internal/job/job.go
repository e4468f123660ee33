// Package job drives uploaded PDFs through text extraction, DOI detection,
// metadata lookup and naming, one state machine per file.
package job

import (
	"errors"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/matsen/bibrename/internal/doi"
	"github.com/matsen/bibrename/internal/reference"
)

// Status is a job's position in the state machine.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusExtracting Status = "extracting"
	StatusDetecting  Status = "detecting"
	StatusFetching   Status = "fetching"
	StatusReady      Status = "ready"
	StatusFailed     Status = "failed"
)

// Terminal reports whether the job has finished processing.
func (s Status) Terminal() bool {
	return s == StatusReady || s == StatusFailed
}

// InFlight reports whether a processing step is underway.
func (s Status) InFlight() bool {
	return s == StatusExtracting || s == StatusDetecting || s == StatusFetching
}

// Failure reasons shown to users.
const (
	ReasonExtraction = "error processing file"
	ReasonNoDOI      = "no DOI found"
	ReasonInvalidDOI = "invalid DOI"
)

var (
	// ErrExtraction indicates the document could not be read.
	ErrExtraction = errors.New(ReasonExtraction)

	// ErrNoDOIFound indicates no DOI was detected and none was supplied.
	ErrNoDOIFound = errors.New(ReasonNoDOI)

	// ErrInvalidManualDOI indicates a manual DOI normalized to nothing.
	ErrInvalidManualDOI = errors.New(ReasonInvalidDOI)

	// ErrInvalidTransition indicates an event that the job's status does not accept.
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrNotFound indicates the job is not in the batch.
	ErrNotFound = errors.New("job not found")

	// ErrBusy indicates the job is mid-step and cannot take the request.
	ErrBusy = errors.New("job is being processed")
)

// Job is one uploaded document and everything derived from it.
type Job struct {
	ID       string `json:"id"`
	Source   string `json:"source"`    // Path or upload name as given
	FileName string `json:"file_name"` // Base name of Source
	Data     []byte `json:"-"`

	Status       Status                 `json:"status"`
	DetectedDOIs []doi.DOI              `json:"detected_dois,omitempty"`
	ManualDOI    string                 `json:"manual_doi,omitempty"`
	SelectedDOI  doi.DOI                `json:"selected_doi,omitempty"`
	Metadata     *reference.Publication `json:"metadata,omitempty"` // Set iff Status is ready
	Error        string                 `json:"error,omitempty"`    // Set iff Status is failed

	Candidate  string `json:"candidate"`
	Resolved   string `json:"resolved"`
	Downloaded bool   `json:"downloaded,omitempty"`
}

// New creates a queued job for the document at source.
func New(source string, data []byte) Job {
	return Job{
		ID:       uuid.NewString(),
		Source:   source,
		FileName: path.Base(strings.ReplaceAll(source, `\`, "/")),
		Data:     data,
		Status:   StatusQueued,
	}
}

// hasManualDOI reports whether the user supplied a DOI override.
func (j Job) hasManualDOI() bool {
	return strings.TrimSpace(j.ManualDOI) != ""
}

// clone copies the job so callers cannot alias batch state. Data and
// Metadata are treated as immutable and shared.
func (j Job) clone() Job {
	if j.DetectedDOIs != nil {
		j.DetectedDOIs = append([]doi.DOI(nil), j.DetectedDOIs...)
	}
	return j
}
