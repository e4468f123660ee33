package main

import (
	"strings"

	"github.com/matsen/bibrename/internal/reference"
	"github.com/spf13/cobra"
)

var (
	nameTitle    string
	nameYear     int
	nameAuthors  []string
	nameJournal  string
	nameDOI      string
	nameFallback string
	nameNaming   namingFlags
)

var nameCmd = &cobra.Command{
	Use:   "name",
	Short: "Preview the filename for given metadata",
	Long: `Preview the filename the configured template produces for the given
metadata, without any network access. Useful for trying templates.

Authors are given as "Given Family" or "Family, Given". With no metadata
flags at all, the sanitized --fallback name is shown instead.

Examples:
  bibrename name --title "A Study of Things" --year 2021 --author "Jane Smith" \
    --journal "Journal of the Royal Society"
  bibrename name --title "Trees" --doi 10.1/abc --template compact`,
	Args: cobra.NoArgs,
	RunE: runName,
}

func init() {
	rootCmd.AddCommand(nameCmd)
	nameCmd.Flags().StringVar(&nameTitle, "title", "", "Publication title")
	nameCmd.Flags().IntVar(&nameYear, "year", 0, "Publication year")
	nameCmd.Flags().StringArrayVarP(&nameAuthors, "author", "a", nil, "Author name (repeatable, in order)")
	nameCmd.Flags().StringVar(&nameJournal, "journal", "", "Journal or container title")
	nameCmd.Flags().StringVar(&nameDOI, "doi", "", "DOI")
	nameCmd.Flags().StringVar(&nameFallback, "fallback", "untitled.pdf", "Original filename used when no metadata is given")
	addNamingFlags(nameCmd, &nameNaming)
}

// NameResult is the JSON output for the name command.
type NameResult struct {
	Filename string `json:"filename"`
	Template string `json:"template"`
}

func runName(cmd *cobra.Command, args []string) error {
	cfg := mustLoadConfig()
	synth := mustSynthesizer(cfg, nameNaming)

	var pub *reference.Publication
	if nameTitle != "" || nameYear != 0 || len(nameAuthors) > 0 || nameJournal != "" || nameDOI != "" {
		pub = &reference.Publication{
			DOI:       nameDOI,
			Title:     nameTitle,
			Year:      nameYear,
			Container: nameJournal,
		}
		for _, a := range nameAuthors {
			pub.Authors = append(pub.Authors, parseAuthor(a))
		}
	}

	result := NameResult{
		Filename: synth.Candidate(pub, nameFallback),
		Template: synth.Template().String(),
	}
	if humanOutput {
		outputHuman("%s\n", result.Filename)
	} else {
		outputJSON(result)
	}
	return nil
}

// parseAuthor accepts "Given Family" or "Family, Given".
func parseAuthor(s string) reference.Author {
	if family, given, ok := strings.Cut(s, ","); ok {
		family, given = strings.TrimSpace(family), strings.TrimSpace(given)
		name := strings.TrimSpace(given + " " + family)
		return reference.Author{Given: given, Family: family, Name: name}
	}
	return reference.AuthorFromName(s)
}
