package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/siteprint/siteprint/internal/storage"
	"github.com/siteprint/siteprint/internal/types"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Summarize a previous export run",
	Long:  `Read the export index (or the JSONL manifest) in the output directory and print what was exported, skipped and failed`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := viper.BindPFlags(cmd.Flags()); err != nil {
			return err
		}
		records, err := runRecords(viper.GetString("output-dir"))
		if err != nil {
			return err
		}
		printReport(records)
		return nil
	},
}

// runRecords loads a run's records, preferring the SQLite index and falling
// back to the manifest for directories that only carry one.
func runRecords(outputDir string) ([]types.ExportRecord, error) {
	indexPath := filepath.Join(outputDir, "export.db")
	if _, err := os.Stat(indexPath); err == nil {
		idx, err := storage.OpenIndex(indexPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open export index: %w", err)
		}
		defer idx.Close()
		return idx.Records("")
	}

	records, err := storage.LoadRecords(outputDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	return latestPerURL(records), nil
}

// latestPerURL collapses the append-only manifest the way the index does:
// a rerun's entry replaces the earlier one for the same URL.
func latestPerURL(records []types.ExportRecord) []types.ExportRecord {
	latest := make(map[string]types.ExportRecord, len(records))
	order := make([]string, 0, len(records))
	for _, rec := range records {
		if _, seen := latest[rec.URL]; !seen {
			order = append(order, rec.URL)
		}
		latest[rec.URL] = rec
	}
	out := make([]types.ExportRecord, 0, len(order))
	for _, u := range order {
		out = append(out, latest[u])
	}
	return out
}

func printReport(records []types.ExportRecord) {
	counts := make(map[types.ExportStatus]int)
	for _, rec := range records {
		counts[rec.Status]++
	}

	fmt.Printf("Exported: %d\nSkipped:  %d\nFailed:   %d\n",
		counts[types.StatusExported], counts[types.StatusSkipped], counts[types.StatusFailed])

	if counts[types.StatusFailed] > 0 {
		fmt.Println("\nFailures:")
		for _, rec := range records {
			if rec.Status == types.StatusFailed {
				fmt.Printf("  %s: %s\n", rec.URL, rec.Error)
			}
		}
	}

	if counts[types.StatusExported] > 0 {
		fmt.Println("\nFiles:")
		for _, rec := range records {
			if rec.Status == types.StatusExported {
				fmt.Printf("  %s  (%d bytes)  %s\n", rec.Filename, rec.Bytes, rec.URL)
			}
		}
	}
}

func init() {
	reportCmd.Flags().String("output-dir", "./google_site_export", "Directory of a previous export run")
}
