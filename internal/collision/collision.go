// Package collision assigns batch-unique filenames.
package collision

import (
	"errors"
	"fmt"
	"path"
	"strings"
)

// maxSuffix bounds the disambiguator search. Reaching it means the input
// was not a batch of a sane size.
const maxSuffix = 1_000_000

// ErrInternal indicates resolution could not complete. It signals a bug in
// the caller, not a user-facing condition.
var ErrInternal = errors.New("collision resolution failed")

// Candidate is a job's requested filename.
type Candidate struct {
	ID   string
	Name string
}

// Resolve assigns each candidate a name unique across the batch, compared
// case-insensitively. Candidates are processed in order: the first to ask
// for a name keeps it, later ones get " (2)", " (3)", ... inserted before
// the extension. The result depends only on the input order.
func Resolve(candidates []Candidate) (map[string]string, error) {
	resolved := make(map[string]string, len(candidates))
	used := make(map[string]bool, len(candidates))

	for _, c := range candidates {
		if _, dup := resolved[c.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate job id %q", ErrInternal, c.ID)
		}

		name, err := claim(c.Name, used)
		if err != nil {
			return nil, err
		}
		resolved[c.ID] = name
	}

	return resolved, nil
}

// ResolveNames is Resolve over bare names, returning them in input order.
func ResolveNames(names []string) ([]string, error) {
	candidates := make([]Candidate, len(names))
	for i, n := range names {
		candidates[i] = Candidate{ID: fmt.Sprint(i), Name: n}
	}

	resolved, err := Resolve(candidates)
	if err != nil {
		return nil, err
	}

	out := make([]string, len(names))
	for i, c := range candidates {
		out[i] = resolved[c.ID]
	}
	return out, nil
}

// claim returns the first free variant of name and marks it used.
func claim(name string, used map[string]bool) (string, error) {
	if key := strings.ToLower(name); !used[key] {
		used[key] = true
		return name, nil
	}

	ext := path.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for i := 2; i < maxSuffix; i++ {
		variant := fmt.Sprintf("%s (%d)%s", stem, i, ext)
		if key := strings.ToLower(variant); !used[key] {
			used[key] = true
			return variant, nil
		}
	}
	return "", fmt.Errorf("%w: no free variant of %q", ErrInternal, name)
}
