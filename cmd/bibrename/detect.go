package main

import (
	"context"
	"os"
	"strings"

	"github.com/matsen/bibrename/internal/doi"
	"github.com/spf13/cobra"
)

var detectCmd = &cobra.Command{
	Use:   "detect <file|dir>...",
	Short: "List the DOIs found on the first pages of PDFs",
	Long: `List the DOIs found on the first pages of PDFs.

Only the first pages are scanned (max_pages in the config, default 2).
DOIs are listed in order of appearance with duplicates removed.

Examples:
  bibrename detect paper.pdf
  bibrename detect papers/ --human`,
	Args: cobra.MinimumNArgs(1),
	RunE: runDetect,
}

func init() {
	rootCmd.AddCommand(detectCmd)
}

// DetectResult is one file's detection output.
type DetectResult struct {
	Source string    `json:"source"`
	DOIs   []doi.DOI `json:"dois"`
	Error  string    `json:"error,omitempty"`
}

func runDetect(cmd *cobra.Command, args []string) error {
	paths, err := expandInputs(args)
	if err != nil {
		exitWithError(ExitDataError, "%v", err)
	}

	cfg := mustLoadConfig()
	extractor := newExtractor(cfg)
	ctx := context.Background()

	results := make([]DetectResult, 0, len(paths))
	failed := false
	for _, path := range paths {
		r := DetectResult{Source: path, DOIs: []doi.DOI{}}
		text, err := extractor.TextFile(ctx, path)
		if err != nil {
			r.Error = err.Error()
			failed = true
		} else if found := doi.Detect(text); found != nil {
			r.DOIs = found
		}
		results = append(results, r)
	}

	if humanOutput {
		for _, r := range results {
			switch {
			case r.Error != "":
				outputHuman("%s: error: %s\n", r.Source, r.Error)
			case len(r.DOIs) == 0:
				outputHuman("%s: (no DOI found)\n", r.Source)
			default:
				names := make([]string, len(r.DOIs))
				for i, d := range r.DOIs {
					names[i] = d.String()
				}
				outputHuman("%s: %s\n", r.Source, strings.Join(names, ", "))
			}
		}
	} else {
		outputJSON(results)
	}

	if failed {
		os.Exit(ExitPartial)
	}
	return nil
}
