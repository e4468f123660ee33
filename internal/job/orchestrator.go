package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/matsen/bibrename/internal/doi"
	"github.com/matsen/bibrename/internal/filename"
	"github.com/matsen/bibrename/internal/reference"
	"github.com/matsen/bibrename/internal/sink"
)

// DefaultDownloadSpacing separates consecutive saves in DownloadAll.
const DefaultDownloadSpacing = 250 * time.Millisecond

// TextProvider returns the text of a document's leading pages.
type TextProvider interface {
	Text(ctx context.Context, data []byte) (string, error)
}

// Resolver looks up publication metadata for a DOI.
type Resolver interface {
	Resolve(ctx context.Context, d doi.DOI) (*reference.Publication, error)
}

// Orchestrator owns a Batch and drives its jobs through the state machine.
// Steps that do I/O run without holding the batch lock; a result arriving
// for a job that was removed meanwhile is discarded.
type Orchestrator struct {
	mu    sync.Mutex
	batch *Batch

	text     TextProvider
	resolver Resolver
	sink     sink.Sink
	logger   *slog.Logger
	spacing  time.Duration
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithSink sets where Download saves renamed documents.
func WithSink(s sink.Sink) Option {
	return func(o *Orchestrator) {
		o.sink = s
	}
}

// WithSynthesizer sets the filename synthesizer.
func WithSynthesizer(s *filename.Synthesizer) Option {
	return func(o *Orchestrator) {
		o.batch = NewBatch(s)
	}
}

// WithDownloadSpacing sets the pause between saves in DownloadAll.
func WithDownloadSpacing(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d >= 0 {
			o.spacing = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// NewOrchestrator creates an Orchestrator with an empty batch.
func NewOrchestrator(text TextProvider, resolver Resolver, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		batch:    NewBatch(nil),
		text:     text,
		resolver: resolver,
		sink:     &sink.Recorder{},
		logger:   slog.Default(),
		spacing:  DefaultDownloadSpacing,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Add queues a document and returns its job.
func (o *Orchestrator) Add(source string, data []byte) (Job, error) {
	j := New(source, data)

	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.batch.Add(j); err != nil {
		return Job{}, err
	}
	stored, _ := o.batch.Get(j.ID)
	o.logger.Debug("job added", "job_id", j.ID, "source", source)
	return stored, nil
}

// Remove drops a job from the batch. An in-flight step for it completes
// and its result is discarded.
func (o *Orchestrator) Remove(id string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.batch.Remove(id)
}

// Clear drops every job.
func (o *Orchestrator) Clear() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.batch.Clear()
}

// Jobs returns a snapshot of the batch in order.
func (o *Orchestrator) Jobs() []Job {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.batch.Jobs()
}

// Job returns a snapshot of one job.
func (o *Orchestrator) Job(id string) (Job, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	j, ok := o.batch.Get(id)
	if !ok {
		return Job{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return j, nil
}

// SetSynthesizer switches the naming template for the whole batch.
func (o *Orchestrator) SetSynthesizer(s *filename.Synthesizer) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.batch.SetSynthesizer(s)
}

// Progress counts jobs by state.
type Progress struct {
	Total      int `json:"total"`
	Queued     int `json:"queued"`
	InFlight   int `json:"in_flight"`
	Ready      int `json:"ready"`
	Failed     int `json:"failed"`
	Downloaded int `json:"downloaded"`
}

// Done reports whether every job has reached a terminal state.
func (p Progress) Done() bool {
	return p.Queued == 0 && p.InFlight == 0
}

// Progress returns aggregate counts for the batch.
func (o *Orchestrator) Progress() Progress {
	o.mu.Lock()
	defer o.mu.Unlock()

	var p Progress
	for _, j := range o.batch.jobs {
		p.Total++
		switch {
		case j.Status == StatusQueued:
			p.Queued++
		case j.Status.InFlight():
			p.InFlight++
		case j.Status == StatusReady:
			p.Ready++
		case j.Status == StatusFailed:
			p.Failed++
		}
		if j.Downloaded {
			p.Downloaded++
		}
	}
	return p
}

// Process runs a queued job through extraction, detection and lookup.
// Failures of the job itself are recorded on the job, not returned; the
// error reports misuse (unknown id, job not queued).
func (o *Orchestrator) Process(ctx context.Context, id string) (Job, error) {
	if _, err := o.apply(id, Process()); err != nil {
		return Job{}, err
	}
	return o.finish(id, o.extract(ctx, id))
}

// ProcessAll processes every queued job one at a time in batch order,
// bounding outbound registry requests to one at a time. It continues past
// failed jobs and stops early only when ctx is done.
func (o *Orchestrator) ProcessAll(ctx context.Context) (Progress, error) {
	var queued []string
	o.mu.Lock()
	for _, j := range o.batch.jobs {
		if j.Status == StatusQueued {
			queued = append(queued, j.ID)
		}
	}
	o.mu.Unlock()

	for _, id := range queued {
		if err := ctx.Err(); err != nil {
			return o.Progress(), err
		}
		if _, err := o.Process(ctx, id); err != nil {
			if errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalidTransition) {
				// Removed or started elsewhere since the snapshot.
				continue
			}
			return o.Progress(), err
		}
	}
	return o.Progress(), nil
}

// Retry reprocesses a failed job from extraction.
func (o *Orchestrator) Retry(ctx context.Context, id string) (Job, error) {
	if _, err := o.apply(id, Retry()); err != nil {
		return Job{}, err
	}
	return o.finish(id, o.extract(ctx, id))
}

// RetryFailed retries every failed job in batch order.
func (o *Orchestrator) RetryFailed(ctx context.Context) (Progress, error) {
	var failed []string
	o.mu.Lock()
	for _, j := range o.batch.jobs {
		if j.Status == StatusFailed {
			failed = append(failed, j.ID)
		}
	}
	o.mu.Unlock()

	for _, id := range failed {
		if err := ctx.Err(); err != nil {
			return o.Progress(), err
		}
		if _, err := o.Retry(ctx, id); err != nil && !errors.Is(err, ErrNotFound) && !errors.Is(err, ErrInvalidTransition) {
			return o.Progress(), err
		}
	}
	return o.Progress(), nil
}

// SelectDOI sets a manual DOI. A ready job with a different DOI is looked
// up again without re-reading the document; queued and failed jobs use the
// override on their next run.
func (o *Orchestrator) SelectDOI(ctx context.Context, id, raw string) (Job, error) {
	j, err := o.apply(id, SelectDOI(raw))
	if err != nil {
		return Job{}, err
	}
	if j.Status != StatusFetching {
		return j, nil
	}
	return o.finish(id, o.fetch(ctx, id))
}

// extract reads the document text and continues through detection and
// lookup. The job must be in the extracting state.
func (o *Orchestrator) extract(ctx context.Context, id string) error {
	j, err := o.Job(id)
	if err != nil {
		return err
	}

	text, err := o.text.Text(ctx, j.Data)
	if err != nil {
		o.logger.Warn("text extraction failed", "job_id", id, "source", j.Source, "error", err)
		_, err := o.apply(id, ExtractFailed(fmt.Errorf("%w: %v", ErrExtraction, err)))
		return err
	}

	if _, err := o.apply(id, Extracted()); err != nil {
		return err
	}

	found := doi.Detect(text)
	o.logger.Debug("DOIs detected", "job_id", id, "count", len(found))
	if _, err := o.apply(id, Detected(found)); err != nil {
		return err
	}
	return o.fetch(ctx, id)
}

// fetch resolves the selected DOI if the job is in the fetching state.
func (o *Orchestrator) fetch(ctx context.Context, id string) error {
	j, err := o.Job(id)
	if err != nil {
		return err
	}
	if j.Status != StatusFetching {
		return nil
	}

	pub, err := o.resolver.Resolve(ctx, j.SelectedDOI)
	if err != nil {
		o.logger.Warn("metadata lookup failed", "job_id", id, "doi", j.SelectedDOI.String(), "error", err)
		_, err = o.apply(id, ResolveFailed(err))
		return err
	}

	_, err = o.apply(id, Resolved(pub))
	return err
}

// finish turns the outcome of a pipeline run into the caller's result.
// A job removed mid-run is not an error: its result was discarded.
func (o *Orchestrator) finish(id string, runErr error) (Job, error) {
	if runErr != nil {
		if errors.Is(runErr, ErrNotFound) {
			o.logger.Debug("discarded result for removed job", "job_id", id)
			return Job{}, nil
		}
		return Job{}, runErr
	}

	j, err := o.Job(id)
	if errors.Is(err, ErrNotFound) {
		return Job{}, nil
	}
	return j, err
}

// apply runs one transition under the lock and stores the result.
func (o *Orchestrator) apply(id string, ev Event) (Job, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	j, ok := o.batch.Get(id)
	if !ok {
		return Job{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	next, err := Transition(j, ev)
	if err != nil {
		return Job{}, err
	}
	if err := o.batch.Put(next); err != nil {
		return Job{}, err
	}

	stored, _ := o.batch.Get(id)
	if stored.Status != j.Status {
		attrs := []any{"job_id", id, "from", j.Status, "to", stored.Status, "event", ev.Kind.String()}
		if stored.Status == StatusFailed {
			attrs = append(attrs, "reason", stored.Error)
		}
		o.logger.Info("job transition", attrs...)
	}
	return stored, nil
}

// Download saves a finished job under its resolved name.
func (o *Orchestrator) Download(ctx context.Context, id string) (Job, error) {
	j, err := o.Job(id)
	if err != nil {
		return Job{}, err
	}
	if !j.Status.Terminal() {
		return Job{}, fmt.Errorf("%w: download while %s", ErrInvalidTransition, j.Status)
	}

	if err := o.sink.Save(ctx, sink.Download{
		JobID:  j.ID,
		Source: j.Source,
		Name:   j.Resolved,
		Data:   j.Data,
	}); err != nil {
		return j, fmt.Errorf("saving %s: %w", j.Resolved, err)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	current, ok := o.batch.Get(id)
	if !ok {
		return j, nil
	}
	current.Downloaded = true
	if err := o.batch.Put(current); err != nil {
		return j, err
	}
	o.logger.Info("job downloaded", "job_id", id, "name", current.Resolved)
	return current, nil
}

// DownloadAll saves every finished job in batch order, pausing between
// saves. It returns the number saved; failures of individual saves are
// joined into the error and do not stop the run.
func (o *Orchestrator) DownloadAll(ctx context.Context) (int, error) {
	var ids []string
	for _, j := range o.Jobs() {
		if j.Status.Terminal() {
			ids = append(ids, j.ID)
		}
	}

	saved := 0
	var errs []error
	for i, id := range ids {
		if i > 0 && o.spacing > 0 {
			if err := wait(ctx, o.spacing); err != nil {
				return saved, errors.Join(append(errs, err)...)
			}
		}
		if _, err := o.Download(ctx, id); err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			errs = append(errs, err)
			continue
		}
		saved++
	}
	return saved, errors.Join(errs...)
}

func wait(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
