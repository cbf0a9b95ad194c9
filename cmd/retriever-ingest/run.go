package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/MatiasPrietoHernan/Retriever/internal/usecase/ingest"
)

var apiKey string

// resolveAPIKey prefers the flag and falls back to $TOKKO_API_KEY.
func resolveAPIKey(flag string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	if k := os.Getenv("TOKKO_API_KEY"); k != "" {
		return k, nil
	}
	return "", errors.New("--api-key or TOKKO_API_KEY is required")
}

func init() {
	runCmd.Flags().StringVar(&apiKey, "api-key", "", "feed API key (default $TOKKO_API_KEY)")
	rootCmd.AddCommand(runCmd)
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Rebuild a tenant collection from its feed",
	Long: `Rebuild a tenant collection from its feed. The existing collection is
dropped first, so the result mirrors the feed exactly.

Examples:
  retriever-ingest run --company acme --api-key $TOKKO_API_KEY
  retriever-ingest run --company acme --json`,
	RunE: runIngest,
}

func runIngest(cmd *cobra.Command, _ []string) error {
	key, err := resolveAPIKey(apiKey)
	if err != nil {
		return err
	}

	a, logger, err := setup(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()
	defer func() { _ = logger.Sync() }()

	rep, runErr := a.Ingest.Run(cmd.Context(), ingest.Request{Tenant: company, APIKey: key})

	out := cmd.OutOrStdout()
	if outputJSON {
		if err := writeJSON(out, rep); err != nil {
			return err
		}
	} else {
		printReport(out, rep)
	}
	if runErr != nil {
		return fmt.Errorf("%s: %w", rep.Message, runErr)
	}
	return nil
}

func printReport(w io.Writer, rep ingest.Report) {
	_, _ = fmt.Fprintf(w, "company:   %s\n", rep.Tenant)
	_, _ = fmt.Fprintf(w, "status:    %s\n", rep.Status)
	_, _ = fmt.Fprintf(w, "stage:     %s\n", rep.Stage)
	_, _ = fmt.Fprintf(w, "message:   %s\n", rep.Message)
	_, _ = fmt.Fprintf(w, "records:   %d\n", rep.Records)
	_, _ = fmt.Fprintf(w, "upserted:  %d\n", rep.Upserted)
	_, _ = fmt.Fprintf(w, "count:     %d\n", rep.Count)
	_, _ = fmt.Fprintf(w, "tokens:    %d\n", rep.Tokens)
	_, _ = fmt.Fprintf(w, "duration:  %s\n", rep.Duration)
	for _, f := range rep.Failed {
		_, _ = fmt.Fprintf(w, "skipped:   record %d (%s): %s\n", f.Index, f.ID, f.Reason)
	}
}
