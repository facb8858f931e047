package main

import (
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/coldspot-cli/internal/export"
	"github.com/sells-group/coldspot-cli/internal/model"
	"github.com/sells-group/coldspot-cli/internal/pipeline"
)

var (
	classifyInputs   inputFlags
	classifyFormat   string
	classifyOutput   string
	classifyColdOnly bool
)

var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Classify districts without writing to any sink",
	Long:  "Loads, merges and classifies the exports, then prints the classified districts as JSON or CSV.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		classifyInputs.apply()
		if err := cfg.Validate("classify"); err != nil {
			return err
		}

		opts, err := pipeline.OptionsFromConfig(cfg)
		if err != nil {
			return err
		}

		rep, err := pipeline.Classify(ctx, opts)
		if err != nil {
			return err
		}

		rows := rep.Result.Classified
		if classifyColdOnly {
			rows = rep.Result.ColdSpots()
		}

		out := io.Writer(os.Stdout)
		if classifyOutput != "" {
			f, err := os.Create(classifyOutput)
			if err != nil {
				return eris.Wrap(err, "classify: create output")
			}
			defer f.Close() //nolint:errcheck
			out = f
		}

		if err := writeClassified(out, classifyFormat, rows); err != nil {
			return err
		}

		zap.L().Info("classify complete",
			zap.Int("classified", len(rep.Result.Classified)),
			zap.Int("cold_spots", rep.Result.ColdCount()),
			zap.Int("rejected", len(rep.Result.Rejected)),
		)
		return nil
	},
}

func writeClassified(w io.Writer, format string, rows []model.ClassifiedDistrict) error {
	switch format {
	case "json", "":
		if rows == nil {
			rows = []model.ClassifiedDistrict{}
		}
		return export.EncodeJSON(w, rows)
	case "csv":
		return export.WriteCSV(w, rows)
	default:
		return eris.Errorf("classify: unknown format %q (want json or csv)", format)
	}
}

func init() {
	classifyInputs.register(classifyCmd)
	classifyCmd.Flags().StringVar(&classifyFormat, "format", "json", "output format: json or csv")
	classifyCmd.Flags().StringVarP(&classifyOutput, "output", "o", "", "write to this file instead of stdout")
	classifyCmd.Flags().BoolVar(&classifyColdOnly, "cold-only", false, "only emit cold spots")
	rootCmd.AddCommand(classifyCmd)
}
