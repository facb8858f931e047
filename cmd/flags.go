package main

import (
	"github.com/spf13/cobra"
)

// inputFlags override the configured input locations and threshold preset.
type inputFlags struct {
	sales  string
	info   string
	change string
	preset string
}

func (f *inputFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.sales, "sales", "", "sales export path (overrides input.sales_path)")
	cmd.Flags().StringVar(&f.info, "info", "", "district info export path (overrides input.info_path)")
	cmd.Flags().StringVar(&f.change, "change", "", "change-indicator export path (overrides input.change_path)")
	cmd.Flags().StringVar(&f.preset, "preset", "", "threshold preset (overrides thresholds.preset)")
}

// apply copies set flags onto the loaded configuration.
func (f *inputFlags) apply() {
	if f.sales != "" {
		cfg.Input.SalesPath = f.sales
	}
	if f.info != "" {
		cfg.Input.InfoPath = f.info
	}
	if f.change != "" {
		cfg.Input.ChangePath = f.change
	}
	if f.preset != "" {
		cfg.Thresholds.Preset = f.preset
	}
}
