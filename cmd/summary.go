package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/coldspot-cli/internal/export"
	"github.com/sells-group/coldspot-cli/internal/model"
)

var (
	summaryTop    int
	summaryFormat string
)

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Report cold-spot totals and the top regions and industries",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("query"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		sum, err := st.Summarize(ctx, summaryTop)
		if err != nil {
			return eris.Wrap(err, "summary")
		}
		return writeSummary(os.Stdout, summaryFormat, sum)
	},
}

func writeSummary(out io.Writer, format string, sum *model.Summary) error {
	switch format {
	case "table", "":
		formatSummary(out, sum)
		return nil
	case "json":
		return export.EncodeJSON(out, sum)
	case "yaml":
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(sum); err != nil {
			return eris.Wrap(err, "summary: encode yaml")
		}
		return eris.Wrap(enc.Close(), "summary: close yaml encoder")
	default:
		return eris.Errorf("summary: unknown format %q (want table, json or yaml)", format)
	}
}

// formatSummary writes totals followed by the region and industry breakdowns.
func formatSummary(out io.Writer, sum *model.Summary) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "TOTAL\tCOLD SPOTS\tRATIO\n")
	_, _ = fmt.Fprintf(w, "%d\t%d\t%.1f%%\n", sum.Total, sum.ColdSpots, sum.ColdRatio*100)
	_, _ = fmt.Fprintln(w)
	writeGroups(w, "REGION", sum.Regions)
	_, _ = fmt.Fprintln(w)
	writeGroups(w, "INDUSTRY", sum.Industries)
	_ = w.Flush()
}

func writeGroups(w io.Writer, label string, groups []model.GroupCount) {
	_, _ = fmt.Fprintf(w, "%s\tCOLD\tTOTAL\n", label)
	for _, g := range groups {
		name := g.Name
		if name == "" {
			name = "(none)"
		}
		_, _ = fmt.Fprintf(w, "%s\t%d\t%d\n", name, g.Cold, g.Total)
	}
}

func init() {
	summaryCmd.Flags().IntVar(&summaryTop, "top", 10, "number of regions and industries to list")
	summaryCmd.Flags().StringVar(&summaryFormat, "format", "table", "output format: table, json or yaml")
	rootCmd.AddCommand(summaryCmd)
}
