// Package sink saves renamed documents.
package sink

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// ErrExists indicates the target file already exists.
var ErrExists = errors.New("target file already exists")

// Download is one renamed document to save.
type Download struct {
	JobID  string
	Source string // Original path or upload name
	Name   string // Resolved filename
	Data   []byte
}

// Sink saves a renamed document.
type Sink interface {
	Save(ctx context.Context, d Download) error
}

// DirSink writes renamed copies into a directory.
type DirSink struct {
	Dir       string
	Overwrite bool
}

// NewDirSink creates a DirSink writing into dir.
func NewDirSink(dir string, overwrite bool) *DirSink {
	return &DirSink{Dir: dir, Overwrite: overwrite}
}

// Save writes d.Data to Dir/d.Name.
func (s *DirSink) Save(ctx context.Context, d Download) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := checkName(d.Name); err != nil {
		return err
	}
	if err := os.MkdirAll(s.Dir, 0755); err != nil {
		return fmt.Errorf("creating output directory %s: %w", s.Dir, err)
	}

	path := filepath.Join(s.Dir, d.Name)
	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if !s.Overwrite {
		flags |= os.O_EXCL
	}

	f, err := os.OpenFile(path, flags, 0644)
	if err != nil {
		if os.IsExist(err) {
			return fmt.Errorf("%w: %s", ErrExists, path)
		}
		return fmt.Errorf("creating %s: %w", path, err)
	}

	if _, err := f.Write(d.Data); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}

// RenameSink renames source files in place, within their directory.
type RenameSink struct{}

// Save renames d.Source to d.Name in the same directory. A target that
// exists and is not the source itself is left alone.
func (RenameSink) Save(ctx context.Context, d Download) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := checkName(d.Name); err != nil {
		return err
	}

	target := filepath.Join(filepath.Dir(d.Source), d.Name)
	if target == d.Source {
		return nil
	}

	if targetInfo, err := os.Stat(target); err == nil {
		sourceInfo, serr := os.Stat(d.Source)
		// Case-only renames on case-insensitive filesystems see the source.
		if serr != nil || !os.SameFile(sourceInfo, targetInfo) {
			return fmt.Errorf("%w: %s", ErrExists, target)
		}
	}

	if err := os.Rename(d.Source, target); err != nil {
		return fmt.Errorf("renaming %s: %w", d.Source, err)
	}
	return nil
}

// Recorder keeps downloads in memory. It backs dry runs.
type Recorder struct {
	mu        sync.Mutex
	downloads []Download
}

// Save records d.
func (r *Recorder) Save(ctx context.Context, d Download) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.downloads = append(r.downloads, d)
	return nil
}

// Downloads returns the recorded downloads in save order.
func (r *Recorder) Downloads() []Download {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Download(nil), r.downloads...)
}

// checkName rejects names that would escape the target directory.
func checkName(name string) error {
	if name == "" || name == "." || name == ".." || filepath.Base(name) != name {
		return fmt.Errorf("invalid target filename %q", name)
	}
	return nil
}
