package main

import (
	"context"
	"errors"
	"strings"

	"github.com/matsen/bibrename/internal/doi"
	"github.com/matsen/bibrename/internal/export"
	"github.com/matsen/bibrename/internal/metadata"
	"github.com/matsen/bibrename/internal/reference"
	"github.com/spf13/cobra"
)

var (
	lookupNaming namingFlags
	lookupBibTeX bool
)

var lookupCmd = &cobra.Command{
	Use:   "lookup <doi>",
	Short: "Resolve a DOI and show the filename it would produce",
	Long: `Resolve a DOI through Crossref (falling back to OpenAlex) and show the
publication record and the filename it would produce.

The DOI may be given bare, with a doi: prefix, or as a doi.org URL.

Examples:
  bibrename lookup 10.1093/molbev/msz001
  bibrename lookup https://doi.org/10.1371/journal.pcbi.1004562 --human
  bibrename lookup 10.1093/molbev/msz001 --bibtex >> refs.bib`,
	Args: cobra.ExactArgs(1),
	RunE: runLookup,
}

func init() {
	rootCmd.AddCommand(lookupCmd)
	addNamingFlags(lookupCmd, &lookupNaming)
	lookupCmd.Flags().BoolVar(&lookupBibTeX, "bibtex", false, "Print the record as a BibTeX entry")
}

// LookupResult is the JSON output for the lookup command.
type LookupResult struct {
	DOI         string                 `json:"doi"`
	Publication *reference.Publication `json:"publication"`
	Filename    string                 `json:"filename"`
}

func runLookup(cmd *cobra.Command, args []string) error {
	d := doi.Clean(args[0])
	if d.IsZero() {
		exitWithError(ExitDataError, "invalid DOI: %q", args[0])
	}

	cfg := mustLoadConfig()
	synth := mustSynthesizer(cfg, lookupNaming)
	store := mustOpenCache(cfg)
	defer store.Close()

	pub, err := newResolver(cfg, store).Resolve(context.Background(), d)
	if err != nil {
		switch {
		case errors.Is(err, metadata.ErrInvalidDOI):
			exitWithError(ExitDataError, "invalid DOI: %q", args[0])
		case metadata.IsNotFound(err):
			exitWithError(ExitNotFound, "DOI not found: %s", d)
		default:
			exitWithError(ExitLookupError, "%v", err)
		}
	}

	result := LookupResult{
		DOI:         d.String(),
		Publication: pub,
		Filename:    synth.Candidate(pub, ""),
	}

	switch {
	case lookupBibTeX:
		outputHuman("%s", export.BibTeX(pub))
	case humanOutput:
		printPublicationHuman(result)
	default:
		outputJSON(result)
	}
	return nil
}

func printPublicationHuman(r LookupResult) {
	p := r.Publication
	outputHuman("%s\n", p.Title)
	if len(p.Authors) > 0 {
		names := make([]string, 0, len(p.Authors))
		for _, a := range p.Authors {
			names = append(names, a.DisplayName())
		}
		outputHuman("  Authors: %s\n", truncateString(strings.Join(names, ", "), 120))
	}
	if p.Year > 0 {
		outputHuman("  Year: %d\n", p.Year)
	}
	if p.Container != "" {
		outputHuman("  Journal: %s\n", p.Container)
	}
	outputHuman("  DOI: %s\n", r.DOI)
	if p.Source != "" {
		outputHuman("  Source: %s\n", p.Source)
	}
	outputHuman("  Filename: %s\n", r.Filename)
}
