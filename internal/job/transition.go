package job

import (
	"fmt"

	"github.com/matsen/bibrename/internal/doi"
	"github.com/matsen/bibrename/internal/reference"
)

// EventKind identifies what happened to a job.
type EventKind int

const (
	EventProcess EventKind = iota
	EventExtracted
	EventExtractFailed
	EventDetected
	EventResolved
	EventResolveFailed
	EventRetry
	EventSelectDOI
)

var eventNames = map[EventKind]string{
	EventProcess:       "process",
	EventExtracted:     "extracted",
	EventExtractFailed: "extract-failed",
	EventDetected:      "detected",
	EventResolved:      "resolved",
	EventResolveFailed: "resolve-failed",
	EventRetry:         "retry",
	EventSelectDOI:     "select-doi",
}

func (k EventKind) String() string {
	if name, ok := eventNames[k]; ok {
		return name
	}
	return fmt.Sprintf("event(%d)", int(k))
}

// Event is an input to Transition.
type Event struct {
	Kind     EventKind
	DOIs     []doi.DOI              // EventDetected
	Metadata *reference.Publication // EventResolved
	Err      error                  // EventExtractFailed, EventResolveFailed
	DOI      string                 // EventSelectDOI, raw user input
}

// Event constructors.
func Process() Event { return Event{Kind: EventProcess} }
func Extracted() Event { return Event{Kind: EventExtracted} }
func ExtractFailed(err error) Event { return Event{Kind: EventExtractFailed, Err: err} }
func Detected(dois []doi.DOI) Event { return Event{Kind: EventDetected, DOIs: dois} }
func ResolveFailed(err error) Event { return Event{Kind: EventResolveFailed, Err: err} }
func Retry() Event { return Event{Kind: EventRetry} }
func SelectDOI(raw string) Event { return Event{Kind: EventSelectDOI, DOI: raw} }
func Resolved(pub *reference.Publication) Event {
	return Event{Kind: EventResolved, Metadata: pub}
}

// Transition applies ev to j and returns the next job. It has no side
// effects; derived filenames are filled in by the Batch.
func Transition(j Job, ev Event) (Job, error) {
	next := j.clone()

	switch ev.Kind {
	case EventProcess:
		if j.Status != StatusQueued {
			return j, invalid(j, ev)
		}
		next.Status = StatusExtracting

	case EventExtracted:
		if j.Status != StatusExtracting {
			return j, invalid(j, ev)
		}
		next.Status = StatusDetecting

	case EventExtractFailed:
		if j.Status != StatusExtracting {
			return j, invalid(j, ev)
		}
		return fail(next, ReasonExtraction), nil

	case EventDetected:
		if j.Status != StatusDetecting {
			return j, invalid(j, ev)
		}
		next.DetectedDOIs = append([]doi.DOI(nil), ev.DOIs...)
		return selectForFetch(next), nil

	case EventResolved:
		if j.Status != StatusFetching {
			return j, invalid(j, ev)
		}
		if ev.Metadata == nil {
			return j, fmt.Errorf("%w: resolved without metadata", ErrInvalidTransition)
		}
		next.Status = StatusReady
		next.Metadata = ev.Metadata
		next.Error = ""

	case EventResolveFailed:
		if j.Status != StatusFetching {
			return j, invalid(j, ev)
		}
		reason := "metadata lookup failed"
		if ev.Err != nil {
			reason = ev.Err.Error()
		}
		return fail(next, reason), nil

	case EventRetry:
		if j.Status != StatusFailed {
			return j, invalid(j, ev)
		}
		next.Status = StatusExtracting
		next.Error = ""
		next.Metadata = nil
		next.DetectedDOIs = nil
		next.SelectedDOI = ""

	case EventSelectDOI:
		return selectDOI(next, ev)

	default:
		return j, invalid(j, ev)
	}

	return next, nil
}

// selectForFetch leaves the detecting state: a manual DOI wins over
// detected ones.
func selectForFetch(j Job) Job {
	if j.hasManualDOI() {
		manual := doi.Clean(j.ManualDOI)
		if manual.IsZero() {
			return fail(j, ReasonInvalidDOI)
		}
		j.SelectedDOI = manual
	} else if len(j.DetectedDOIs) > 0 {
		j.SelectedDOI = j.DetectedDOIs[0]
	} else {
		return fail(j, ReasonNoDOI)
	}

	j.Status = StatusFetching
	return j
}

// selectDOI records a manual DOI. A ready job whose selection changes goes
// back to fetching; queued and failed jobs keep the override for their
// next run.
func selectDOI(j Job, ev Event) (Job, error) {
	if j.Status.InFlight() {
		return j, fmt.Errorf("%w: %s", ErrBusy, j.Status)
	}

	if j.Status != StatusReady {
		j.ManualDOI = ev.DOI
		return j, nil
	}

	manual := doi.Clean(ev.DOI)
	if manual.IsZero() {
		return j, ErrInvalidManualDOI
	}
	if manual.Equal(j.SelectedDOI) {
		return j, nil
	}

	j.ManualDOI = ev.DOI
	j.SelectedDOI = manual
	j.Status = StatusFetching
	j.Metadata = nil
	return j, nil
}

func fail(j Job, reason string) Job {
	j.Status = StatusFailed
	j.Error = reason
	j.Metadata = nil
	return j
}

func invalid(j Job, ev Event) error {
	return fmt.Errorf("%w: %s while %s", ErrInvalidTransition, ev.Kind, j.Status)
}
