package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/coldspot-cli/internal/coldspot"
)

var presetsCmd = &cobra.Command{
	Use:   "presets",
	Short: "List the threshold presets",
	RunE: func(cmd *cobra.Command, args []string) error {
		return formatPresets(os.Stdout)
	},
}

// formatPresets writes every preset's thresholds to out.
func formatPresets(out io.Writer) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "PRESET\tCONVERSION <\tREL_SALES <\tQUALITY >\tTIME_RATIO >")
	for _, name := range coldspot.PresetNames() {
		t, err := coldspot.Preset(name)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(w, "%s\t%g\t%g\t%g\t%g\n", name, t.Conversion, t.RelSales, t.Quality, t.TimeRatio)
	}
	return w.Flush()
}

func init() {
	rootCmd.AddCommand(presetsCmd)
}
