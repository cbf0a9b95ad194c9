package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/MatiasPrietoHernan/Retriever/internal/domain/listing"
	"github.com/MatiasPrietoHernan/Retriever/internal/domain/search/filter"
	"github.com/MatiasPrietoHernan/Retriever/internal/domain/search/request"
)

var (
	searchOperationType string
	searchPriceMax      float64
	searchLimit         int
)

func init() {
	searchCmd.Flags().StringVar(&searchOperationType, "operation-type", "", "only listings with this operation type (e.g. venta, alquiler)")
	searchCmd.Flags().Float64Var(&searchPriceMax, "price-max", 0, "only listings priced at or below this value")
	searchCmd.Flags().IntVar(&searchLimit, "limit", request.DefaultLimit, "maximum number of results")
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(countCmd)
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Run a hybrid search against a tenant collection",
	Long: `Run a hybrid dense and lexical search against a tenant collection.

Examples:
  retriever-ingest search --company acme "casa con pileta en nordelta"
  retriever-ingest search --company acme --operation-type venta --price-max 150000 "departamento 2 ambientes"`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

var countCmd = &cobra.Command{
	Use:   "count",
	Short: "Print the number of points in a tenant collection",
	Args:  cobra.NoArgs,
	RunE:  runCount,
}

func runSearch(cmd *cobra.Command, args []string) error {
	var priceMax *float64
	if cmd.Flags().Changed("price-max") {
		priceMax = &searchPriceMax
	}
	req, err := request.New(company, args[0], filter.ForListings(searchOperationType, priceMax), searchLimit, request.MaxLimit)
	if err != nil {
		return err
	}

	a, logger, err := setup(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()
	defer func() { _ = logger.Sync() }()

	results, err := a.Search.Search(cmd.Context(), &req)
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}

	out := cmd.OutOrStdout()
	if outputJSON {
		type item struct {
			ID       string         `json:"id"`
			Score    float64        `json:"score"`
			Content  string         `json:"content"`
			Metadata map[string]any `json:"metadata"`
		}
		items := make([]item, len(results))
		for i := range results {
			items[i] = item{results[i].ID(), results[i].Score(), results[i].Content(), results[i].Metadata()}
		}
		return writeJSON(out, items)
	}

	if len(results) == 0 {
		_, _ = fmt.Fprintln(out, "No results.")
		return nil
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tSCORE\tTITLE\tPRICE")
	for i := range results {
		md := results[i].Metadata()
		_, _ = fmt.Fprintf(w, "%s\t%.4f\t%v\t%v\n", results[i].ID(), results[i].Score(), md[listing.KeyTitle], md[listing.KeyPrice])
	}
	return w.Flush()
}

func runCount(cmd *cobra.Command, _ []string) error {
	a, logger, err := setup(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()
	defer func() { _ = logger.Sync() }()

	n, err := a.Store.Count(cmd.Context(), company)
	if err != nil {
		return fmt.Errorf("count %s: %w", company, err)
	}
	if outputJSON {
		return writeJSON(cmd.OutOrStdout(), map[string]any{"company": company, "count": n})
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s: %d points\n", company, n)
	return nil
}
