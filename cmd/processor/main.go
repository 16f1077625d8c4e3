// Command processor ingests the inventory CSV into the raw store table and
// writes the preprocessed dataset to the cleaned table.
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
		fmt.Fprintln(os.Stderr, "processor:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("processor", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to a YAML config file")
	in := fs.String("in", "", "dataset CSV to ingest (defaults to paths.dataset_csv)")
	skipIngest := fs.Bool("skip-ingest", false, "preprocess the raw table already in the store")
	if err := fs.Parse(args); err != nil {
		return err
	}

	steps := []string{"ingest", "preprocess"}
	if *skipIngest {
		steps = steps[1:]
	}

	resp, err := app.RunCommand(ctx, app.CommandOptions{
		ConfigPath: *configPath,
		Steps:      steps,
		Console:    stdout,
		Configure: func(cfg *config.Config) {
			if *in != "" {
				cfg.Paths.DatasetCSV = *in
			}
		},
	})
	if werr := app.WriteRunSummary(stdout, resp); werr != nil && err == nil {
		err = werr
	}
	return err
}
