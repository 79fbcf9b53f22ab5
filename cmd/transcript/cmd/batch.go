package cmd

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/stemsi/una-transcript/internal/model"
	"github.com/stemsi/una-transcript/internal/service"
)

var batchConcurrency int

func init() {
	batchCmd.Flags().IntVarP(&batchConcurrency, "concurrency", "c", 0, "scrapes in flight (defaults to MAX_TABS)")
	rootCmd.AddCommand(batchCmd)
}

var batchCmd = &cobra.Command{
	Use:   "batch <student id>...",
	Short: "Fetch several transcripts over one browser. Failures do not stop the batch.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit := batchConcurrency
		if limit < 1 {
			limit = cfg.MaxTabs
		}
		results := transcripts.GetMany(cmd.Context(), args, limit)
		return renderBatch(cmd.OutOrStdout(), results, asJSON)
	},
}

// batchEntry is one student of the batch JSON output. Exactly one of
// Record and Error is set.
type batchEntry struct {
	ID     string               `json:"id"`
	Record *model.StudentRecord `json:"record,omitempty"`
	Error  string               `json:"error,omitempty"`
}

// renderBatch prints the results in input order and reports an error when
// any student failed, whatever the output format.
func renderBatch(out io.Writer, results []service.BatchResult, asJSON bool) error {
	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}

	if asJSON {
		entries := make([]batchEntry, 0, len(results))
		for _, r := range results {
			e := batchEntry{ID: r.ID, Record: r.Record}
			if r.Err != nil {
				e.Record = nil
				e.Error = r.Err.Error()
			}
			entries = append(entries, e)
		}
		if err := writeJSON(out, entries); err != nil {
			return err
		}
	} else {
		t := newTable(out)
		t.AppendHeader(table.Row{"ID", "Name", "Semesters", "Status"})
		for _, r := range results {
			if r.Err != nil {
				t.AppendRow(table.Row{r.ID, "", "", r.Err.Error()})
				continue
			}
			t.AppendRow(table.Row{r.Record.ID, r.Record.Name, r.Record.Semesters.Len(), "ok"})
		}
		t.Render()
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d students failed", failed, len(results))
	}
	return nil
}
