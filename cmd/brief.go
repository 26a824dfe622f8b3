package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/callbrief-cli/internal/deliver"
	"github.com/sells-group/callbrief-cli/internal/model"
	"github.com/sells-group/callbrief-cli/internal/provider"
)

var briefCmd = &cobra.Command{
	Use:   "brief <account>",
	Short: "Generate an evidence-grounded brief for an account",
	Long:  "Fetches the account's calls from both providers, deduplicates them, extracts and validates evidence, and renders a markdown brief.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx, "brief")
		if err != nil {
			return err
		}
		defer env.Close()

		since, _ := cmd.Flags().GetDuration("since")
		filter := provider.Filter{}
		if since > 0 {
			filter.Since = nowUTC().Add(-since)
		}

		run, err := env.Store.CreateRun(ctx, args[0])
		if err != nil {
			return err
		}
		_ = env.Store.UpdateRunStatus(ctx, run.ID, model.RunRunning)

		result, err := env.Pipeline.Run(ctx, args[0], filter)
		if err != nil {
			_ = env.Store.FailRun(ctx, run.ID, err.Error())
			return eris.Wrap(err, "brief")
		}
		if err := env.Store.CompleteRun(ctx, run.ID, result); err != nil {
			return err
		}

		outPath, _ := cmd.Flags().GetString("out")
		if outPath != "" {
			if err := writeBriefFiles(outPath, result); err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "Brief written to %s\n", outPath)
		} else {
			fmt.Println(result.Markdown)
		}

		if publish, _ := cmd.Flags().GetBool("publish"); publish {
			if err := publishBrief(ctx, result); err != nil {
				return err
			}
		}
		if crm, _ := cmd.Flags().GetBool("crm"); crm {
			if err := attachBrief(ctx, result); err != nil {
				return err
			}
		}

		zap.L().Info("brief run complete",
			zap.String("run_id", run.ID),
			zap.String("account", result.Account.DisplayName),
			zap.Int("calls", result.CallCount),
			zap.Int("quotes", len(result.Quotes)),
			zap.Int("claims", len(result.Claims)),
			zap.Float64("cost_usd", result.CostUSD),
		)
		return nil
	},
}

func init() {
	briefCmd.Flags().Duration("since", 0, "only use calls within this window (default 90 days)")
	briefCmd.Flags().String("out", "", "write the brief markdown here (plus a .yaml metadata sidecar)")
	briefCmd.Flags().Bool("publish", false, "publish the brief to the configured Notion database")
	briefCmd.Flags().Bool("crm", false, "attach the brief to the matching Salesforce account")
	rootCmd.AddCommand(briefCmd)
}

// briefSidecar is the metadata written next to the markdown file.
type briefSidecar struct {
	Account     string    `yaml:"account"`
	GeneratedAt time.Time `yaml:"generated_at"`
	Model       string    `yaml:"model"`
	CostUSD     float64   `yaml:"cost_usd"`
	CallCount   int       `yaml:"call_count"`
	Duplicates  int       `yaml:"duplicates"`
	Quotes      int       `yaml:"quotes"`
	Claims      int       `yaml:"claims"`
}

// writeBriefFiles writes the markdown brief and a YAML sidecar holding
// run metadata (same path with a .yaml extension).
func writeBriefFiles(path string, result *model.BriefResult) error {
	if err := os.WriteFile(path, []byte(result.Markdown+"\n"), 0o644); err != nil {
		return eris.Wrapf(err, "write brief %s", path)
	}

	sidecar := briefSidecar{
		Account:     result.Account.DisplayName,
		GeneratedAt: result.GeneratedAt,
		Model:       result.Model,
		CostUSD:     result.CostUSD,
		CallCount:   result.CallCount,
		Duplicates:  len(result.Duplicates),
		Quotes:      len(result.Quotes),
		Claims:      len(result.Claims),
	}
	data, err := yaml.Marshal(sidecar)
	if err != nil {
		return eris.Wrap(err, "marshal brief sidecar")
	}
	sidecarPath := sidecarPathFor(path)
	if err := os.WriteFile(sidecarPath, data, 0o644); err != nil {
		return eris.Wrapf(err, "write sidecar %s", sidecarPath)
	}
	return nil
}

// sidecarPathFor swaps the extension for .yaml, or appends it when the
// path has no extension.
func sidecarPathFor(path string) string {
	if i := strings.LastIndex(path, "."); i > strings.LastIndex(path, "/") {
		return path[:i] + ".yaml"
	}
	return path + ".yaml"
}

func publishBrief(ctx context.Context, result *model.BriefResult) error {
	nc, err := initNotion()
	if err != nil {
		return err
	}
	publisher, err := deliver.NewNotionPublisher(nc, cfg.Notion.BriefDB)
	if err != nil {
		return err
	}
	pageID, err := publisher.Publish(ctx, result)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Published to Notion page %s\n", pageID)
	return nil
}

func attachBrief(ctx context.Context, result *model.BriefResult) error {
	sc, err := initSalesforce()
	if err != nil {
		return err
	}
	noteID, err := deliver.NewCRMAttacher(sc).Attach(ctx, result)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Attached to Salesforce as note %s\n", noteID)
	return nil
}
