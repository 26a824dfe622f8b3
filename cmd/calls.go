package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/callbrief-cli/internal/brief"
	"github.com/sells-group/callbrief-cli/internal/provider"
)

func nowUTC() time.Time { return time.Now().UTC() }

var callsCmd = &cobra.Command{
	Use:   "calls <account>",
	Short: "Show the consolidated call set for an account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
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

		set, err := env.Pipeline.FetchCallSet(ctx, args[0], filter)
		if err != nil {
			return eris.Wrap(err, "calls")
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(set)
		}

		formatCallSet(os.Stdout, set)
		return nil
	},
}

func init() {
	callsCmd.Flags().Duration("since", 0, "only fetch calls within this window (default 90 days)")
	callsCmd.Flags().Bool("json", false, "emit JSON instead of a table")
	rootCmd.AddCommand(callsCmd)
}

// formatCallSet writes the consolidated calls and the duplicates that
// were folded into them.
func formatCallSet(out io.Writer, set *brief.CallSet) {
	fmt.Fprintf(out, "Account: %s (%d calls kept, %d duplicates)\n\n",
		set.Account.DisplayName, len(set.Calls), len(set.Duplicates))

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "DATE\tPROVIDER\tID\tTITLE\tMIN\tSEGMENTS")
	_, _ = fmt.Fprintln(w, "----\t--------\t--\t-----\t---\t--------")
	for _, c := range set.Calls {
		title := c.Title
		if len(title) > 40 {
			title = title[:37] + "..."
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\n",
			c.OccurredAt.Format("2006-01-02 15:04"),
			c.Provider,
			c.ProviderCallID,
			title,
			c.DurationSeconds/60,
			len(c.Segments),
		)
	}
	_ = w.Flush()

	if len(set.Duplicates) > 0 {
		fmt.Fprintln(out, "\nDuplicates folded:")
		dw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(dw, "DROPPED\tKEPT\tREASON\tSCORE")
		for _, d := range set.Duplicates {
			_, _ = fmt.Fprintf(dw, "%s:%s\t%s:%s\t%s\t%.2f\n",
				d.DroppedProvider, d.DroppedCallID,
				d.KeptProvider, d.KeptCallID,
				d.Reason, d.Score)
		}
		_ = dw.Flush()
	}
}
