package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/MatiasPrietoHernan/Retriever/internal/app"
	"github.com/MatiasPrietoHernan/Retriever/internal/normalize"
)

var previewShow int

func init() {
	previewCmd.Flags().StringVar(&apiKey, "api-key", "", "feed API key (default $TOKKO_API_KEY)")
	previewCmd.Flags().IntVar(&previewShow, "show", 5, "number of normalized documents to print")
	rootCmd.AddCommand(previewCmd)
}

var previewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Fetch and normalize a feed without writing anything",
	Long: `Fetch a tenant feed and normalize every record, reporting the records that
would be rejected. No embeddings are computed and no collection is touched.

Examples:
  retriever-ingest preview --company acme --api-key $TOKKO_API_KEY --show 10`,
	Args: cobra.NoArgs,
	RunE: runPreview,
}

func runPreview(cmd *cobra.Command, _ []string) error {
	key, err := resolveAPIKey(apiKey)
	if err != nil {
		return err
	}

	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	client, err := app.NewFeedClient(cfg.Feed, logger)
	if err != nil {
		return err
	}
	records, err := client.Fetch(cmd.Context(), key)
	if err != nil {
		return fmt.Errorf("fetch feed: %w", err)
	}

	docs, failures := normalize.New(company).NormalizeBatch(records)

	out := cmd.OutOrStdout()
	if outputJSON {
		type failure struct {
			Index  int    `json:"index"`
			ID     string `json:"id,omitempty"`
			Reason string `json:"reason"`
		}
		type doc struct {
			ID       string         `json:"id"`
			Content  string         `json:"content"`
			Metadata map[string]any `json:"metadata"`
		}
		res := struct {
			Records   int       `json:"records"`
			Documents int       `json:"documents"`
			Failed    []failure `json:"failed,omitempty"`
			Sample    []doc     `json:"sample"`
		}{Records: len(records), Documents: len(docs)}
		for _, f := range failures {
			res.Failed = append(res.Failed, failure{f.Index, f.Err.RecordID, f.Err.Err.Error()})
		}
		for i := 0; i < len(docs) && i < previewShow; i++ {
			res.Sample = append(res.Sample, doc{docs[i].ID(), docs[i].Content(), docs[i].Metadata().Payload()})
		}
		return writeJSON(out, res)
	}

	_, _ = fmt.Fprintf(out, "records: %d, documents: %d, rejected: %d\n", len(records), len(docs), len(failures))
	if len(failures) > 0 {
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "INDEX\tID\tREASON")
		for _, f := range failures {
			_, _ = fmt.Fprintf(w, "%d\t%s\t%v\n", f.Index, f.Err.RecordID, f.Err.Err)
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}
	for i := 0; i < len(docs) && i < previewShow; i++ {
		_, _ = fmt.Fprintf(out, "\n--- %s ---\n%s\n", docs[i].ID(), docs[i].Content())
	}
	return nil
}
