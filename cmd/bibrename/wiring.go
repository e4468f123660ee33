package main

import (
	"log/slog"

	"github.com/matsen/bibrename/internal/cache"
	"github.com/matsen/bibrename/internal/config"
	"github.com/matsen/bibrename/internal/filename"
	"github.com/matsen/bibrename/internal/metadata"
	"github.com/matsen/bibrename/internal/pdf"
)

// namingFlags are the per-command overrides of the configured template.
type namingFlags struct {
	template  string
	segments  string
	separator string
}

// mustLoadConfig loads configuration, exits on error.
func mustLoadConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		exitWithError(ExitConfigError, "loading config: %v", err)
	}
	return cfg
}

// mustOpenCache opens the configured lookup cache, exits on error.
// The caller is responsible for calling Close() on the returned store.
func mustOpenCache(cfg *config.Config) *cache.Store {
	store, err := cache.Open(cfg.CachePath, cache.WithTTL(cfg.CacheTTL))
	if err != nil {
		exitWithError(ExitConfigError, "opening lookup cache %s: %v", cfg.CachePath, err)
	}
	return store
}

// mustSynthesizer builds the filename synthesizer from config and flag
// overrides, exits on an invalid template.
func mustSynthesizer(cfg *config.Config, flags namingFlags) *filename.Synthesizer {
	merged := *cfg
	if flags.template != "" {
		merged.Template = flags.template
		merged.Segments = ""
		merged.Separator = ""
	}
	if flags.segments != "" {
		merged.Segments = flags.segments
	}
	if flags.separator != "" {
		merged.Separator = flags.separator
	}

	t, err := merged.NamingTemplate()
	if err != nil {
		exitWithError(ExitConfigError, "invalid naming template: %v", err)
	}
	return filename.New(t)
}

// newExtractor returns the page-text provider for cfg.
func newExtractor(cfg *config.Config) *pdf.Extractor {
	return pdf.NewExtractor(cfg.MaxPages)
}

// newResolver builds the Crossref-then-OpenAlex resolver. store may be nil.
func newResolver(cfg *config.Config, store *cache.Store) *metadata.Resolver {
	opts := []metadata.ResolverOption{
		metadata.WithRetries(cfg.Retries),
		metadata.WithBackoff(cfg.RetryBackoff),
		metadata.WithLogger(slog.Default()),
	}
	if store != nil {
		opts = append(opts, metadata.WithCache(store))
	}

	return metadata.NewResolver(
		metadata.NewCrossref(sourceOptions(cfg, cfg.CrossrefURL)...),
		metadata.NewOpenAlex(sourceOptions(cfg, cfg.OpenAlexURL)...),
		opts...,
	)
}

func sourceOptions(cfg *config.Config, baseURL string) []metadata.SourceOption {
	return []metadata.SourceOption{
		metadata.WithBaseURL(baseURL),
		metadata.WithMailto(cfg.Mailto),
		metadata.WithTimeout(cfg.RequestTimeout),
		metadata.WithRateLimit(cfg.RateLimit),
	}
}
