// Command inventory-report analyzes the preprocessed dataset in the store
// and prints the restock and critical stock report. It also exports the
// CSV, JSON, text and workbook reports to the reports directory.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"emsinv/internal/app"
	"emsinv/internal/config"
)

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "inventory-report:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("inventory-report", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to a YAML config file")
	window := fs.Int("window", 0, "moving average window in months; 0 keeps the configured window")
	ratio := fs.Float64("ratio", 0, "restock threshold as a fraction of capacity; 0 keeps the configured ratio")
	if err := fs.Parse(args); err != nil {
		return err
	}

	resp, err := app.RunCommand(ctx, app.CommandOptions{
		ConfigPath: *configPath,
		Steps:      []string{"analyze"},
		Console:    stdout,
		Configure: func(cfg *config.Config) {
			if *window != 0 {
				cfg.Analysis.SmoothingWindow = *window
			}
			if *ratio != 0 {
				cfg.Analysis.RestockThresholdRatio = *ratio
			}
		},
	})
	if werr := app.WriteRunSummary(stdout, resp); werr != nil && err == nil {
		err = werr
	}
	return err
}
