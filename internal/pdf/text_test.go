package pdf

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestIsPDF(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want bool
	}{
		{"pdf header", []byte("%PDF-1.7\n..."), true},
		{"empty", nil, false},
		{"png", []byte("\x89PNG\r\n"), false},
		{"leading whitespace", []byte(" %PDF-1.4"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsPDF(tt.data); got != tt.want {
				t.Errorf("IsPDF() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTextRejectsNonPDF(t *testing.T) {
	e := NewExtractor(0)
	_, err := e.Text(context.Background(), []byte("hello world"))
	if !errors.Is(err, ErrNotPDF) {
		t.Errorf("Text() error = %v, want ErrNotPDF", err)
	}
}

func TestTextRejectsTruncatedPDF(t *testing.T) {
	e := NewExtractor(2)
	_, err := e.Text(context.Background(), []byte("%PDF-1.4\ngarbage without xref"))
	if !errors.Is(err, ErrDecode) {
		t.Errorf("Text() error = %v, want ErrDecode", err)
	}
}

func TestTextHonorsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewExtractor(1).Text(ctx, []byte("%PDF-1.4\n"))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Text() error = %v, want context.Canceled", err)
	}
}

func TestTextFileMissing(t *testing.T) {
	_, err := NewExtractor(1).TextFile(context.Background(), filepath.Join(t.TempDir(), "missing.pdf"))
	if err == nil || !os.IsNotExist(errors.Unwrap(err)) {
		t.Errorf("TextFile() error = %v, want not-exist", err)
	}
}

func TestNewExtractorDefault(t *testing.T) {
	if got := NewExtractor(-1).MaxPages; got != DefaultMaxPages {
		t.Errorf("MaxPages = %d, want %d", got, DefaultMaxPages)
	}
}
