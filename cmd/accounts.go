package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/callbrief-cli/internal/model"
	"github.com/sells-group/callbrief-cli/internal/provider"
)

var accountsCmd = &cobra.Command{
	Use:   "accounts",
	Short: "List accounts present in both call providers",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx, "list")
		if err != nil {
			return err
		}
		defer env.Close()

		since, _ := cmd.Flags().GetDuration("since")
		filter := provider.Filter{}
		if since > 0 {
			filter.Since = nowUTC().Add(-since)
		}

		shared, err := env.Pipeline.DiscoverSharedAccounts(ctx, filter)
		if err != nil {
			return eris.Wrap(err, "accounts")
		}

		if len(shared) == 0 {
			fmt.Fprintln(os.Stderr, "No shared accounts found.")
			return nil
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(shared)
		}
		if xlsxPath, _ := cmd.Flags().GetString("xlsx"); xlsxPath != "" {
			if err := writeAccountsXLSX(xlsxPath, shared); err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "Wrote %d accounts to %s\n", len(shared), xlsxPath)
			return nil
		}

		formatAccounts(os.Stdout, shared)
		return nil
	},
}

func init() {
	accountsCmd.Flags().Duration("since", 0, "only count calls within this window (e.g. 720h; default 90 days)")
	accountsCmd.Flags().Bool("json", false, "emit JSON instead of a table")
	accountsCmd.Flags().String("xlsx", "", "write the account list to an XLSX file")
	rootCmd.AddCommand(accountsCmd)
}

// formatAccounts writes a tabular list of shared accounts to w.
func formatAccounts(out io.Writer, shared []model.SharedAccountMatch) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tACCOUNT\tMATCH\tCONF\tGONG\tFIREFLIES\tTOTAL")
	_, _ = fmt.Fprintln(w, "--\t-------\t-----\t----\t----\t---------\t-----")

	for _, s := range shared {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%.2f\t%d\t%d\t%d\n",
			s.ID,
			s.DisplayName,
			s.Reason,
			s.Confidence,
			s.CallCountBySource["gong"],
			s.CallCountBySource["fireflies"],
			s.TotalCalls(),
		)
	}
	_ = w.Flush()
}

// writeAccountsXLSX exports the shared account list as a spreadsheet.
func writeAccountsXLSX(path string, shared []model.SharedAccountMatch) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Shared accounts")
	if err != nil {
		return eris.Wrap(err, "xlsx: add sheet")
	}

	header := sheet.AddRow()
	for _, h := range []string{"ID", "Account", "Match", "Confidence", "Gong calls", "Fireflies calls", "Total"} {
		header.AddCell().Value = h
	}

	for _, s := range shared {
		row := sheet.AddRow()
		row.AddCell().Value = s.ID
		row.AddCell().Value = s.DisplayName
		row.AddCell().Value = string(s.Reason)
		row.AddCell().Value = strconv.FormatFloat(s.Confidence, 'f', 2, 64)
		row.AddCell().SetInt(s.CallCountBySource["gong"])
		row.AddCell().SetInt(s.CallCountBySource["fireflies"])
		row.AddCell().SetInt(s.TotalCalls())
	}

	return eris.Wrapf(f.Save(path), "xlsx: save %s", path)
}
