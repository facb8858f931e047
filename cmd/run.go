package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/coldspot-cli/internal/coldspot"
	"github.com/sells-group/coldspot-cli/internal/pipeline"
)

var (
	runInputs  inputFlags
	runJSON    string
	runRejects string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Classify districts and replace the cold_spots table and JSON artifact",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		runInputs.apply()
		if runJSON != "" {
			cfg.Output.JSONPath = runJSON
		}
		if runRejects != "" {
			cfg.Output.RejectsPath = runRejects
		}
		if err := cfg.Validate("run"); err != nil {
			return err
		}

		opts, err := pipeline.OptionsFromConfig(cfg)
		if err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		rep, err := pipeline.Run(ctx, st, opts)
		if err != nil {
			return err
		}

		formatSummary(os.Stdout, coldspot.Summarize(rep.Result.Classified, 10))
		return nil
	},
}

func init() {
	runInputs.register(runCmd)
	runCmd.Flags().StringVar(&runJSON, "json", "", "cold-spot JSON artifact path (overrides output.json_path)")
	runCmd.Flags().StringVar(&runRejects, "rejects", "", "write rejected districts to this JSON file")
	rootCmd.AddCommand(runCmd)
}
