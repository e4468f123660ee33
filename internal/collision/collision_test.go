package collision

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

func TestResolveNames(t *testing.T) {
	tests := []struct {
		name  string
		input []string
		want  []string
	}{
		{
			name:  "case-insensitive with increasing suffix",
			input: []string{"Paper.pdf", "paper.pdf", "Paper.pdf"},
			want:  []string{"Paper.pdf", "paper (2).pdf", "Paper (3).pdf"},
		},
		{
			name:  "distinct names untouched",
			input: []string{"a.pdf", "b.pdf"},
			want:  []string{"a.pdf", "b.pdf"},
		},
		{
			name:  "suffix skips literal taken variant",
			input: []string{"a (2).pdf", "a.pdf", "a.pdf"},
			want:  []string{"a (2).pdf", "a.pdf", "a (3).pdf"},
		},
		{
			name:  "later literal collides with assigned variant",
			input: []string{"a.pdf", "a.pdf", "a (2).pdf"},
			want:  []string{"a.pdf", "a (2).pdf", "a (2) (2).pdf"},
		},
		{
			name:  "no extension",
			input: []string{"notes", "NOTES"},
			want:  []string{"notes", "NOTES (2)"},
		},
		{
			name:  "empty batch",
			input: nil,
			want:  []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveNames(tt.input)
			if err != nil {
				t.Fatalf("ResolveNames() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ResolveNames() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResolveIsIdempotent(t *testing.T) {
	candidates := []Candidate{
		{ID: "j1", Name: "2021 - Smith - X - JRS.pdf"},
		{ID: "j2", Name: "2021 - smith - x - jrs.pdf"},
		{ID: "j3", Name: "other.pdf"},
		{ID: "j4", Name: "2021 - Smith - X - JRS.pdf"},
	}

	first, err := Resolve(candidates)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	second, err := Resolve(candidates)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("Resolve() not idempotent: %v vs %v", first, second)
	}
	if first["j4"] != "2021 - Smith - X - JRS (3).pdf" {
		t.Errorf("j4 = %q", first["j4"])
	}
}

func TestResolveUniqueness(t *testing.T) {
	var candidates []Candidate
	for i, n := range []string{"x.pdf", "X.pdf", "x (2).pdf", "X (2).PDF", "x.pdf", "y.pdf", "x.PDF"} {
		candidates = append(candidates, Candidate{ID: string(rune('a' + i)), Name: n})
	}

	resolved, err := Resolve(candidates)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	seen := map[string]string{}
	for id, name := range resolved {
		key := strings.ToLower(name)
		if other, dup := seen[key]; dup {
			t.Errorf("%s and %s both resolved to %q", id, other, name)
		}
		seen[key] = id
	}
}

func TestResolveDuplicateID(t *testing.T) {
	_, err := Resolve([]Candidate{{ID: "a", Name: "x.pdf"}, {ID: "a", Name: "y.pdf"}})
	if !errors.Is(err, ErrInternal) {
		t.Errorf("Resolve() error = %v, want ErrInternal", err)
	}
}
