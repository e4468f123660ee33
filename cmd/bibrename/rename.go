package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/matsen/bibrename/internal/job"
	"github.com/matsen/bibrename/internal/sink"
	"github.com/spf13/cobra"
)

var (
	renameOut         string
	renameInPlace     bool
	renameOverwrite   bool
	renameRetryFailed bool
	renameDOIs        []string
	renameNaming      namingFlags
)

var renameCmd = &cobra.Command{
	Use:   "rename <file|dir>...",
	Short: "Rename PDFs from their DOI metadata",
	Long: `Rename PDFs from their DOI metadata.

Each file's first pages are scanned for a DOI, which is looked up in
Crossref (then OpenAlex). Names are made unique across the whole batch by
appending " (2)", " (3)" and so on. Files whose DOI cannot be found or
resolved keep a sanitized version of their original name.

Without --out or --in-place nothing is written: the planned names are
printed (dry run).

Examples:
  bibrename rename ~/Downloads/*.pdf
  bibrename rename papers/ --out renamed/
  bibrename rename scan.pdf --in-place --doi scan.pdf=10.1093/molbev/msz001
  bibrename rename papers/ --template compact --human`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRename,
}

func init() {
	rootCmd.AddCommand(renameCmd)
	renameCmd.Flags().StringVarP(&renameOut, "out", "o", "", "Copy renamed files into this directory")
	renameCmd.Flags().BoolVar(&renameInPlace, "in-place", false, "Rename files where they are")
	renameCmd.Flags().BoolVar(&renameOverwrite, "overwrite", false, "Replace existing files in --out")
	renameCmd.Flags().BoolVar(&renameRetryFailed, "retry-failed", false, "Retry failed files once before saving")
	renameCmd.Flags().StringArrayVar(&renameDOIs, "doi", nil, "Manual DOI for a file, as FILE=DOI (repeatable)")
	addNamingFlags(renameCmd, &renameNaming)
}

func addNamingFlags(cmd *cobra.Command, flags *namingFlags) {
	cmd.Flags().StringVarP(&flags.template, "template", "t", "", "Naming preset (default, compact)")
	cmd.Flags().StringVar(&flags.segments, "segments", "", "Comma-separated segments, e.g. year,author,title")
	cmd.Flags().StringVar(&flags.separator, "separator", "", "Separator placed between segments")
}

// RenameResult is the JSON output for the rename command.
type RenameResult struct {
	Mode     string        `json:"mode"` // dry-run, copy, in-place
	Output   string        `json:"output,omitempty"`
	Files    []RenamedFile `json:"files"`
	Progress job.Progress  `json:"progress"`
	Errors   []string      `json:"errors,omitempty"`
}

// RenamedFile is one file's outcome.
type RenamedFile struct {
	Source string     `json:"source"`
	Status job.Status `json:"status"`
	DOI    string     `json:"doi,omitempty"`
	Name   string     `json:"name"`
	Error  string     `json:"error,omitempty"`
	Saved  bool       `json:"saved"`
}

func runRename(cmd *cobra.Command, args []string) error {
	if renameOut != "" && renameInPlace {
		exitWithError(ExitError, "--out and --in-place cannot be combined")
	}
	overrides, err := parseDOIOverrides(renameDOIs)
	if err != nil {
		exitWithError(ExitError, "%v", err)
	}
	paths, err := expandInputs(args)
	if err != nil {
		exitWithError(ExitDataError, "%v", err)
	}
	if len(paths) == 0 {
		exitWithError(ExitDataError, "no PDF files found")
	}

	cfg := mustLoadConfig()
	store := mustOpenCache(cfg)
	defer store.Close()

	result := RenameResult{Mode: "dry-run", Output: renameOut}
	var target sink.Sink = &sink.Recorder{}
	var spacing time.Duration
	switch {
	case renameOut != "":
		result.Mode = "copy"
		target = sink.NewDirSink(renameOut, renameOverwrite)
		spacing = cfg.DownloadSpacing
	case renameInPlace:
		result.Mode = "in-place"
		target = sink.RenameSink{}
		spacing = cfg.DownloadSpacing
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	o := job.NewOrchestrator(newExtractor(cfg), newResolver(cfg, store),
		job.WithSynthesizer(mustSynthesizer(cfg, renameNaming)),
		job.WithSink(target),
		job.WithDownloadSpacing(spacing),
		job.WithLogger(slog.Default()),
	)

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			exitWithError(ExitDataError, "reading %s: %v", path, err)
		}
		j, err := o.Add(path, data)
		if err != nil {
			exitWithError(ExitError, "queueing %s: %v", path, err)
		}
		if raw, ok := overrides.lookup(path); ok {
			if _, err := o.SelectDOI(ctx, j.ID, raw); err != nil {
				exitWithError(ExitError, "setting DOI for %s: %v", path, err)
			}
		}
	}

	if _, err := o.ProcessAll(ctx); err != nil {
		exitWithError(ExitError, "processing interrupted: %v", err)
	}
	if renameRetryFailed && o.Progress().Failed > 0 {
		slog.Info("retrying failed files", "count", o.Progress().Failed)
		if _, err := o.RetryFailed(ctx); err != nil {
			exitWithError(ExitError, "retry interrupted: %v", err)
		}
	}

	if _, err := o.DownloadAll(ctx); err != nil {
		result.Errors = strings.Split(err.Error(), "\n")
	}

	for _, j := range o.Jobs() {
		result.Files = append(result.Files, RenamedFile{
			Source: j.Source,
			Status: j.Status,
			DOI:    j.SelectedDOI.String(),
			Name:   j.Resolved,
			Error:  j.Error,
			Saved:  j.Downloaded && result.Mode != "dry-run",
		})
	}
	result.Progress = o.Progress()

	if humanOutput {
		printRenameHuman(result)
	} else {
		outputJSON(result)
	}

	switch {
	case len(result.Errors) > 0:
		os.Exit(ExitError)
	case result.Progress.Failed > 0:
		os.Exit(ExitPartial)
	}
	return nil
}

func printRenameHuman(r RenameResult) {
	for _, f := range r.Files {
		line := fmt.Sprintf("[%-6s] %s -> %s", f.Status, filepath.Base(f.Source), f.Name)
		if f.Error != "" {
			line += fmt.Sprintf(" (%s)", truncateString(f.Error, 80))
		}
		outputHuman("%s\n", line)
	}

	p := r.Progress
	outputHuman("\n%d files: %d ready, %d failed", p.Total, p.Ready, p.Failed)
	switch r.Mode {
	case "dry-run":
		outputHuman(" (dry run; nothing written)\n")
	case "copy":
		outputHuman(", %d copied to %s\n", p.Downloaded, r.Output)
	default:
		outputHuman(", %d renamed\n", p.Downloaded)
	}
	for _, e := range r.Errors {
		outputHuman("error: %s\n", e)
	}
}

// doiOverrides maps file paths or base names to manual DOIs.
type doiOverrides map[string]string

// parseDOIOverrides parses repeated FILE=DOI flag values.
func parseDOIOverrides(values []string) (doiOverrides, error) {
	overrides := make(doiOverrides, len(values))
	for _, v := range values {
		file, raw, ok := strings.Cut(v, "=")
		file = strings.TrimSpace(file)
		if !ok || file == "" || strings.TrimSpace(raw) == "" {
			return nil, fmt.Errorf("invalid --doi %q (want FILE=DOI)", v)
		}
		overrides[filepath.Clean(file)] = strings.TrimSpace(raw)
	}
	return overrides, nil
}

// lookup finds the override for path by full path, then by base name.
func (o doiOverrides) lookup(path string) (string, bool) {
	if raw, ok := o[filepath.Clean(path)]; ok {
		return raw, true
	}
	raw, ok := o[filepath.Base(path)]
	return raw, ok
}

// expandInputs turns file and directory arguments into a list of PDF
// paths. Directories contribute their *.pdf entries, not recursively.
func expandInputs(args []string) ([]string, error) {
	seen := make(map[string]bool)
	var paths []string
	add := func(p string) {
		p = filepath.Clean(p)
		if !seen[p] {
			seen[p] = true
			paths = append(paths, p)
		}
	}

	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", arg, err)
		}
		if !info.IsDir() {
			add(arg)
			continue
		}

		entries, err := os.ReadDir(arg)
		if err != nil {
			return nil, fmt.Errorf("listing %s: %w", arg, err)
		}
		for _, e := range entries {
			if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), ".pdf") {
				add(filepath.Join(arg, e.Name()))
			}
		}
	}
	return paths, nil
}
