package job

import (
	"fmt"

	"github.com/matsen/bibrename/internal/collision"
	"github.com/matsen/bibrename/internal/filename"
)

// Batch is the ordered set of jobs loaded for one run. Every mutation
// recomputes candidate and resolved filenames for the whole batch, so the
// resolved names are unique after any change. Batch is not safe for
// concurrent use; the Orchestrator serializes access.
type Batch struct {
	jobs  []Job
	synth *filename.Synthesizer
}

// NewBatch creates an empty batch naming files with synth.
func NewBatch(synth *filename.Synthesizer) *Batch {
	if synth == nil {
		synth = filename.New(filename.DefaultTemplate)
	}
	return &Batch{synth: synth}
}

// Len returns the number of jobs.
func (b *Batch) Len() int {
	return len(b.jobs)
}

// Jobs returns copies of the jobs in batch order.
func (b *Batch) Jobs() []Job {
	out := make([]Job, len(b.jobs))
	for i, j := range b.jobs {
		out[i] = j.clone()
	}
	return out
}

// Get returns a copy of the job with the given id.
func (b *Batch) Get(id string) (Job, bool) {
	if i := b.index(id); i >= 0 {
		return b.jobs[i].clone(), true
	}
	return Job{}, false
}

// Add appends j to the end of the batch.
func (b *Batch) Add(j Job) error {
	if b.index(j.ID) >= 0 {
		return fmt.Errorf("job %s already in batch", j.ID)
	}
	next := append(b.Jobs(), j.clone())
	return b.commit(next)
}

// Put replaces the stored job having j's id.
func (b *Batch) Put(j Job) error {
	i := b.index(j.ID)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, j.ID)
	}
	next := b.Jobs()
	next[i] = j.clone()
	return b.commit(next)
}

// Remove deletes the job with the given id.
func (b *Batch) Remove(id string) error {
	i := b.index(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	next := b.Jobs()
	next = append(next[:i], next[i+1:]...)
	return b.commit(next)
}

// Clear removes every job.
func (b *Batch) Clear() {
	b.jobs = nil
}

// Recompute refreshes derived filenames, for example after the synthesizer
// changed.
func (b *Batch) Recompute() error {
	return b.commit(b.Jobs())
}

// SetSynthesizer switches the naming template and renames the batch.
func (b *Batch) SetSynthesizer(synth *filename.Synthesizer) error {
	prev := b.synth
	b.synth = synth
	if err := b.Recompute(); err != nil {
		b.synth = prev
		return err
	}
	return nil
}

// commit derives candidate and resolved names for next and installs it.
// On error the batch is left unchanged.
func (b *Batch) commit(next []Job) error {
	candidates := make([]collision.Candidate, len(next))
	for i := range next {
		next[i].Candidate = b.synth.Candidate(next[i].Metadata, next[i].FileName)
		candidates[i] = collision.Candidate{ID: next[i].ID, Name: next[i].Candidate}
	}

	resolved, err := collision.Resolve(candidates)
	if err != nil {
		return err
	}
	for i := range next {
		next[i].Resolved = resolved[next[i].ID]
	}

	b.jobs = next
	return nil
}

func (b *Batch) index(id string) int {
	for i, j := range b.jobs {
		if j.ID == id {
			return i
		}
	}
	return -1
}
