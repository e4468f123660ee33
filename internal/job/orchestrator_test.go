package job

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/matsen/bibrename/internal/doi"
	"github.com/matsen/bibrename/internal/reference"
	"github.com/matsen/bibrename/internal/sink"
)

// fakeText returns the document bytes as its text, or an error for
// documents listed in fail.
type fakeText struct {
	fail map[string]bool
}

func (f fakeText) Text(ctx context.Context, data []byte) (string, error) {
	if f.fail[string(data)] {
		return "", errors.New("corrupt document")
	}
	return string(data), nil
}

// fakeResolver answers from a table keyed by normalized DOI.
type fakeResolver struct {
	mu     sync.Mutex
	pubs   map[string]*reference.Publication
	calls  []doi.DOI
	before func(d doi.DOI)
}

func (f *fakeResolver) Resolve(ctx context.Context, d doi.DOI) (*reference.Publication, error) {
	if f.before != nil {
		f.before(d)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, d)
	if pub, ok := f.pubs[d.Key()]; ok {
		return pub, nil
	}
	return nil, errors.New("metadata lookup for " + d.String() + " failed")
}

func (f *fakeResolver) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testPub(d, title string) *reference.Publication {
	return &reference.Publication{
		DOI:       d,
		Title:     title,
		Year:      2019,
		Authors:   []reference.Author{{Family: "Lee"}},
		Container: "Molecular Biology and Evolution",
	}
}

func newTestOrchestrator(res *fakeResolver, text fakeText, opts ...Option) *Orchestrator {
	opts = append([]Option{WithLogger(quietLogger()), WithDownloadSpacing(0)}, opts...)
	return NewOrchestrator(text, res, opts...)
}

func TestOrchestrator_Process(t *testing.T) {
	res := &fakeResolver{pubs: map[string]*reference.Publication{
		"10.1093/molbev/msz001": testPub("10.1093/molbev/msz001", "Trees"),
	}}
	o := newTestOrchestrator(res, fakeText{})

	j, err := o.Add("in/a.pdf", []byte("see doi:10.1093/molbev/msz001."))
	if err != nil {
		t.Fatal(err)
	}

	got, err := o.Process(context.Background(), j.ID)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if got.Status != StatusReady {
		t.Fatalf("status = %s (%s), want ready", got.Status, got.Error)
	}
	if got.Metadata == nil {
		t.Fatal("ready job has no metadata")
	}
	if got.Resolved != "2019 - Lee - Trees - MBE.pdf" {
		t.Errorf("Resolved = %q", got.Resolved)
	}
}

func TestOrchestrator_NoDOINeverFetches(t *testing.T) {
	res := &fakeResolver{}
	o := newTestOrchestrator(res, fakeText{})

	j, _ := o.Add("a.pdf", []byte("no identifiers here"))
	got, err := o.Process(context.Background(), j.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != StatusFailed || got.Error != ReasonNoDOI {
		t.Errorf("status=%s error=%q, want failed %q", got.Status, got.Error, ReasonNoDOI)
	}
	if res.callCount() != 0 {
		t.Errorf("resolver called %d times, want 0", res.callCount())
	}
	if got.Resolved != "a.pdf" {
		t.Errorf("Resolved = %q, want original name", got.Resolved)
	}
}

func TestOrchestrator_ExtractionFailure(t *testing.T) {
	o := newTestOrchestrator(&fakeResolver{}, fakeText{fail: map[string]bool{"bad": true}})

	j, _ := o.Add("bad.pdf", []byte("bad"))
	got, err := o.Process(context.Background(), j.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != StatusFailed || got.Error != ReasonExtraction {
		t.Errorf("status=%s error=%q", got.Status, got.Error)
	}
}

func TestOrchestrator_ProcessRejectsNonQueued(t *testing.T) {
	o := newTestOrchestrator(&fakeResolver{}, fakeText{})
	j, _ := o.Add("a.pdf", []byte("nothing"))
	if _, err := o.Process(context.Background(), j.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := o.Process(context.Background(), j.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("second Process() error = %v, want ErrInvalidTransition", err)
	}
	if _, err := o.Process(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Process(missing) error = %v, want ErrNotFound", err)
	}
}

func TestOrchestrator_ManualDOIPrecedence(t *testing.T) {
	res := &fakeResolver{pubs: map[string]*reference.Publication{
		"10.2000/manual": testPub("10.2000/manual", "Manual"),
	}}
	o := newTestOrchestrator(res, fakeText{})

	j, _ := o.Add("a.pdf", []byte("10.1000/detected"))
	if _, err := o.SelectDOI(context.Background(), j.ID, "10.2000/manual"); err != nil {
		t.Fatalf("SelectDOI() on queued error = %v", err)
	}

	got, err := o.Process(context.Background(), j.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != StatusReady || got.SelectedDOI != "10.2000/manual" {
		t.Errorf("status=%s selected=%q", got.Status, got.SelectedDOI)
	}
	if len(res.calls) != 1 || res.calls[0] != "10.2000/manual" {
		t.Errorf("resolver calls = %v, want only the manual DOI", res.calls)
	}
}

func TestOrchestrator_RetryAfterFailure(t *testing.T) {
	res := &fakeResolver{pubs: map[string]*reference.Publication{}}
	o := newTestOrchestrator(res, fakeText{})

	j, _ := o.Add("a.pdf", []byte("10.1000/late"))
	got, _ := o.Process(context.Background(), j.ID)
	if got.Status != StatusFailed {
		t.Fatalf("status = %s, want failed", got.Status)
	}

	res.mu.Lock()
	res.pubs["10.1000/late"] = testPub("10.1000/late", "Late")
	res.mu.Unlock()

	got, err := o.Retry(context.Background(), j.ID)
	if err != nil {
		t.Fatalf("Retry() error = %v", err)
	}
	if got.Status != StatusReady || got.Error != "" {
		t.Errorf("status=%s error=%q, want ready", got.Status, got.Error)
	}
}

func TestOrchestrator_SelectDOIOnReadyRefetches(t *testing.T) {
	res := &fakeResolver{pubs: map[string]*reference.Publication{
		"10.1000/a": testPub("10.1000/a", "First"),
		"10.1000/b": testPub("10.1000/b", "Second"),
	}}
	o := newTestOrchestrator(res, fakeText{})

	j, _ := o.Add("a.pdf", []byte("10.1000/a"))
	if _, err := o.Process(context.Background(), j.ID); err != nil {
		t.Fatal(err)
	}

	got, err := o.SelectDOI(context.Background(), j.ID, "10.1000/b")
	if err != nil {
		t.Fatalf("SelectDOI() error = %v", err)
	}
	if got.Status != StatusReady || got.Metadata.Title != "Second" {
		t.Errorf("status=%s metadata=%+v", got.Status, got.Metadata)
	}

	before := res.callCount()
	if _, err := o.SelectDOI(context.Background(), j.ID, "doi:10.1000/B"); err != nil {
		t.Fatal(err)
	}
	if res.callCount() != before {
		t.Error("selecting the current DOI triggered a lookup")
	}
}

func TestOrchestrator_RemovedJobResultDiscarded(t *testing.T) {
	o := newTestOrchestrator(nil, fakeText{})
	res := &fakeResolver{pubs: map[string]*reference.Publication{
		"10.1000/a": testPub("10.1000/a", "Gone"),
	}}
	var id string
	res.before = func(doi.DOI) {
		if err := o.Remove(id); err != nil {
			t.Errorf("Remove() error = %v", err)
		}
	}
	o.resolver = res

	j, _ := o.Add("a.pdf", []byte("10.1000/a"))
	id = j.ID

	got, err := o.Process(context.Background(), id)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if got.ID != "" {
		t.Errorf("Process() returned job %+v for removed id", got)
	}
	if len(o.Jobs()) != 0 {
		t.Errorf("removed job reappeared: %v", o.Jobs())
	}
}

func TestOrchestrator_ProcessAllContinuesPastFailures(t *testing.T) {
	res := &fakeResolver{pubs: map[string]*reference.Publication{
		"10.1000/ok": testPub("10.1000/ok", "Fine"),
	}}
	o := newTestOrchestrator(res, fakeText{fail: map[string]bool{"corrupt": true}})

	for _, doc := range []struct{ name, body string }{
		{"corrupt.pdf", "corrupt"},
		{"none.pdf", "nothing to see"},
		{"ok.pdf", "10.1000/ok"},
		{"missing.pdf", "10.1000/missing"},
	} {
		if _, err := o.Add(doc.name, []byte(doc.body)); err != nil {
			t.Fatal(err)
		}
	}

	p, err := o.ProcessAll(context.Background())
	if err != nil {
		t.Fatalf("ProcessAll() error = %v", err)
	}
	if !p.Done() || p.Total != 4 || p.Ready != 1 || p.Failed != 3 {
		t.Errorf("Progress = %+v", p)
	}

	for _, j := range o.Jobs() {
		if (j.Status == StatusReady) != (j.Metadata != nil) {
			t.Errorf("job %s: status %s with metadata %v", j.FileName, j.Status, j.Metadata)
		}
	}
}

func TestOrchestrator_ProcessAllCancelled(t *testing.T) {
	o := newTestOrchestrator(&fakeResolver{}, fakeText{})
	o.Add("a.pdf", []byte("x"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p, err := o.ProcessAll(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
	if p.Queued != 1 {
		t.Errorf("Queued = %d, want 1", p.Queued)
	}
}

func TestOrchestrator_RetryFailed(t *testing.T) {
	res := &fakeResolver{pubs: map[string]*reference.Publication{}}
	o := newTestOrchestrator(res, fakeText{})
	o.Add("a.pdf", []byte("10.1000/a"))
	o.Add("b.pdf", []byte("10.1000/b"))
	o.ProcessAll(context.Background())

	res.mu.Lock()
	res.pubs["10.1000/a"] = testPub("10.1000/a", "Now Found")
	res.mu.Unlock()

	p, err := o.RetryFailed(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if p.Ready != 1 || p.Failed != 1 {
		t.Errorf("Progress = %+v", p)
	}
}

func TestOrchestrator_Download(t *testing.T) {
	rec := &sink.Recorder{}
	res := &fakeResolver{pubs: map[string]*reference.Publication{
		"10.1000/a": testPub("10.1000/a", "Same"),
		"10.1000/b": testPub("10.1000/b", "Same"),
	}}
	o := newTestOrchestrator(res, fakeText{}, WithSink(rec))

	queued, _ := o.Add("q.pdf", []byte("10.1000/a"))
	if _, err := o.Download(context.Background(), queued.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Download(queued) error = %v, want ErrInvalidTransition", err)
	}

	o.Add("b.pdf", []byte("10.1000/b"))
	o.Add("none.pdf", []byte("nothing"))
	if _, err := o.ProcessAll(context.Background()); err != nil {
		t.Fatal(err)
	}

	n, err := o.DownloadAll(context.Background())
	if err != nil {
		t.Fatalf("DownloadAll() error = %v", err)
	}
	if n != 3 {
		t.Errorf("saved %d, want 3", n)
	}

	var names []string
	for _, d := range rec.Downloads() {
		names = append(names, d.Name)
	}
	want := []string{"2019 - Lee - Same - MBE.pdf", "2019 - Lee - Same - MBE (2).pdf", "none.pdf"}
	if len(names) != len(want) {
		t.Fatalf("downloads = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("download %d = %q, want %q", i, names[i], want[i])
		}
	}

	if p := o.Progress(); p.Downloaded != 3 {
		t.Errorf("Downloaded = %d, want 3", p.Downloaded)
	}
}

func TestOrchestrator_DownloadAllJoinsErrors(t *testing.T) {
	o := newTestOrchestrator(&fakeResolver{}, fakeText{}, WithSink(failingSink{}))
	o.Add("a.pdf", []byte("none"))
	o.Add("b.pdf", []byte("none"))
	o.ProcessAll(context.Background())

	n, err := o.DownloadAll(context.Background())
	if n != 0 || err == nil {
		t.Errorf("DownloadAll() = %d, %v; want 0 and an error", n, err)
	}
}

type failingSink struct{}

func (failingSink) Save(context.Context, sink.Download) error {
	return sink.ErrExists
}
