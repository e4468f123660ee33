package metadata

import (
	"context"
	"log/slog"
	"time"

	"github.com/matsen/bibrename/internal/doi"
	"github.com/matsen/bibrename/internal/reference"
)

const (
	// DefaultRetries is the number of extra attempts after a transient failure.
	DefaultRetries = 2

	// DefaultBackoff is the delay before the first retry; it doubles each time.
	DefaultBackoff = 600 * time.Millisecond
)

// Cache stores resolved publications keyed by DOI.
type Cache interface {
	Get(ctx context.Context, d doi.DOI) (*reference.Publication, bool, error)
	Put(ctx context.Context, d doi.DOI, pub *reference.Publication) error
}

// Resolver queries a primary source and falls back to a secondary one,
// retrying transient failures against each.
type Resolver struct {
	primary   Source
	secondary Source
	retries   int
	backoff   time.Duration
	cache     Cache
	logger    *slog.Logger
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithRetries sets the number of extra attempts per source.
func WithRetries(n int) ResolverOption {
	return func(r *Resolver) {
		if n >= 0 {
			r.retries = n
		}
	}
}

// WithBackoff sets the initial retry delay.
func WithBackoff(d time.Duration) ResolverOption {
	return func(r *Resolver) {
		if d >= 0 {
			r.backoff = d
		}
	}
}

// WithCache enables a lookup cache.
func WithCache(c Cache) ResolverOption {
	return func(r *Resolver) {
		r.cache = c
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) ResolverOption {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewResolver creates a Resolver. secondary may be nil.
func NewResolver(primary, secondary Source, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		primary:   primary,
		secondary: secondary,
		retries:   DefaultRetries,
		backoff:   DefaultBackoff,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the publication for d. The secondary source is consulted
// only when the primary fails; the caller sees a single *LookupError naming
// the last failure when both do.
func (r *Resolver) Resolve(ctx context.Context, d doi.DOI) (*reference.Publication, error) {
	d = doi.Clean(d.String())
	if d.IsZero() {
		return nil, &LookupError{Cause: ErrInvalidDOI}
	}

	if r.cache != nil {
		pub, ok, err := r.cache.Get(ctx, d)
		if err != nil {
			r.logger.Warn("metadata cache read failed", "doi", d.String(), "error", err)
		} else if ok {
			r.logger.Debug("metadata cache hit", "doi", d.String())
			return pub, nil
		}
	}

	var (
		lastErr    error
		lastSource string
	)
	for _, src := range []Source{r.primary, r.secondary} {
		if src == nil {
			continue
		}
		if ctx.Err() != nil {
			break
		}

		pub, err := r.fetch(ctx, src, d)
		if err == nil {
			r.store(ctx, d, pub)
			return pub, nil
		}

		lastErr, lastSource = err, src.Name()
		r.logger.Info("metadata source failed", "source", src.Name(), "doi", d.String(), "error", err)
	}

	if lastErr == nil {
		lastErr = ctx.Err()
	}
	return nil, &LookupError{DOI: d.String(), Source: lastSource, Cause: lastErr}
}

// fetch calls src, retrying transient failures with doubling backoff.
func (r *Resolver) fetch(ctx context.Context, src Source, d doi.DOI) (*reference.Publication, error) {
	delay := r.backoff
	var lastErr error

	for attempt := 0; attempt <= r.retries; attempt++ {
		if attempt > 0 {
			r.logger.Debug("retrying metadata lookup",
				"source", src.Name(), "doi", d.String(), "attempt", attempt+1, "delay", delay)
			if err := sleep(ctx, delay); err != nil {
				return nil, err
			}
			delay *= 2
		}

		pub, err := src.Fetch(ctx, d)
		if err == nil {
			if pub.DOI == "" {
				pub.DOI = d.String()
			}
			return pub, nil
		}

		lastErr = err
		if !IsTransient(err) {
			break
		}
	}

	return nil, lastErr
}

func (r *Resolver) store(ctx context.Context, d doi.DOI, pub *reference.Publication) {
	if r.cache == nil {
		return
	}
	if err := r.cache.Put(ctx, d, pub); err != nil {
		r.logger.Warn("metadata cache write failed", "doi", d.String(), "error", err)
	}
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
