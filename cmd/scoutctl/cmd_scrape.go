package main

import (
	"fmt"
	"os"

	"github.com/fortuna/kitscout/internal/ingest"
	"github.com/fortuna/kitscout/internal/ingest/source"
	"github.com/spf13/cobra"
)

func (c *cli) scrapeCmd() *cobra.Command {
	var (
		req          ingest.Request
		sourceType   string
		save         bool
		skipExisting bool
		output       string
	)
	cmd := &cobra.Command{
		Use:   "scrape [query]",
		Short: "Scrape a source and clean the results",
		Long: `Scrape runs one acquisition source, then normalizes and deduplicates what it found.

The query is a search phrase for map_search and a URL for single_page and directory.
Without --save the cleaned teams are written as CSV, with an email status column.

Example:
  scoutctl scrape --source directory https://league.example.org/clubs --save`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.components(cmd.Context())
			if err != nil {
				return err
			}
			req.Source = source.SourceType(sourceType)
			req.Query = args[0]

			batch, err := a.Ingester.Scrape(cmd.Context(), req)
			if err != nil {
				return err
			}

			if save {
				report, err := a.Ingester.Save(cmd.Context(), batch, ingest.SaveOptions{SkipExisting: skipExisting})
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), report)
			}

			out := cmd.OutOrStdout()
			if output != "" && output != "-" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("creating %s: %w", output, err)
				}
				defer f.Close()
				out = f
			}
			return ingest.ExportTeams(cmd.Context(), out, batch.Teams, a.Validator)
		},
	}
	cmd.Flags().StringVar(&sourceType, "source", string(source.SourceMapSearch), "map_search, single_page or directory")
	cmd.Flags().StringVar(&req.Location, "location", "", "location to search around (map_search)")
	cmd.Flags().IntVar(&req.MaxResults, "max-results", 20, "maximum results (map_search)")
	cmd.Flags().BoolVar(&req.Enrich, "enrich", false, "visit each team's website to fill missing contacts")
	cmd.Flags().BoolVar(&save, "save", false, "store teams and leads instead of printing CSV")
	cmd.Flags().BoolVar(&skipExisting, "skip-existing", false, "with --save, skip teams already stored")
	cmd.Flags().StringVarP(&output, "output", "o", "", "CSV output file (default stdout)")
	return cmd
}
