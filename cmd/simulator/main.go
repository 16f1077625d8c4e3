// Command simulator generates the synthetic ambulance inventory dataset and
// writes it as CSV, optionally ingesting it into the store.
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
		fmt.Fprintln(os.Stderr, "simulator:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("simulator", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to a YAML config file")
	out := fs.String("out", "", "dataset CSV path (defaults to paths.dataset_csv)")
	seed := fs.Uint64("seed", 0, "random seed; 0 keeps the configured seed")
	startYear := fs.Int("start-year", 0, "first simulated year")
	endYear := fs.Int("end-year", 0, "last simulated year")
	ingest := fs.Bool("ingest", false, "also load the dataset into the raw store table")
	if err := fs.Parse(args); err != nil {
		return err
	}

	steps := []string{"simulate"}
	if *ingest {
		steps = append(steps, "ingest")
	}

	resp, err := app.RunCommand(ctx, app.CommandOptions{
		ConfigPath: *configPath,
		Steps:      steps,
		Console:    stdout,
		Configure: func(cfg *config.Config) {
			if *out != "" {
				cfg.Paths.DatasetCSV = *out
			}
			if *seed != 0 {
				cfg.Simulation.Seed = *seed
			}
			if *startYear != 0 {
				cfg.Simulation.StartYear = *startYear
			}
			if *endYear != 0 {
				cfg.Simulation.EndYear = *endYear
			}
		},
	})
	if werr := app.WriteRunSummary(stdout, resp); werr != nil && err == nil {
		err = werr
	}
	return err
}
