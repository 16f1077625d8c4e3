package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"text/tabwriter"
	"time"

	"emsinv/internal/config"
	"emsinv/internal/infrastructure"
	"emsinv/internal/operations"
	"emsinv/pkg/contracts/domain"
)

// LoadConfig loads configuration from path, or from the default locations
// when path is empty
func LoadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Load()
	}
	return config.LoadFrom(path)
}

// Pipeline is an operations manager with the four inventory steps
// registered, plus the collaborators the services share with it
type Pipeline struct {
	Manager    *operations.Manager
	OpenStore  operations.StoreOpener
	Capacities domain.CapacityTable
}

// NewPipeline builds the pipeline for cfg. hub and console may be nil.
func NewPipeline(cfg *config.Config, paths *config.Paths, tracer *operations.OperationTracer, hub operations.Publisher, console io.Writer, logger *slog.Logger) (*Pipeline, error) {
	capacities, err := cfg.CapacityTable()
	if err != nil {
		return nil, err
	}
	openStore := operations.NewStoreOpener(cfg, paths, logger)

	registry := operations.NewRegistry()
	if err := operations.RegisterPipeline(registry, operations.PipelineDeps{
		Config:     cfg,
		Paths:      paths,
		Capacities: capacities,
		OpenStore:  openStore,
		Logger:     logger,
		Tracer:     tracer,
		Console:    console,
	}); err != nil {
		return nil, fmt.Errorf("failed to register pipeline: %w", err)
	}

	opts := []operations.ManagerOption{operations.WithLogger(logger)}
	if tracer != nil {
		opts = append(opts, operations.WithTracer(tracer))
	}
	return &Pipeline{
		Manager:    operations.NewManager(hub, registry, operations.ConfigFrom(cfg.Pipeline), opts...),
		OpenStore:  openStore,
		Capacities: capacities,
	}, nil
}

// CommandOptions configures a one-shot pipeline run from a command-line tool
type CommandOptions struct {
	ConfigPath string
	// Steps selects pipeline steps; empty runs all of them
	Steps []string
	// Console receives the human-readable step output
	Console io.Writer
	// Configure adjusts the loaded configuration before the run
	Configure func(cfg *config.Config)
}

// RunCommand loads configuration, runs the selected steps once and returns
// the run summary. Step failures are contained in the response; the error
// is non-nil when any step failed or the run could not start.
func RunCommand(ctx context.Context, opts CommandOptions) (*operations.OperationResponse, error) {
	cfg, err := LoadConfig(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	if opts.Configure != nil {
		opts.Configure(cfg)
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer infrastructure.CloseLogFile()

	paths, err := cfg.ResolvePaths()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve paths: %w", err)
	}
	if err := paths.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to ensure directories: %w", err)
	}

	pipeline, err := NewPipeline(cfg, paths, operations.NewOperationTracer(nil), nil, opts.Console, logger)
	if err != nil {
		return nil, err
	}

	ctx = infrastructure.EnsureTraceID(ctx)
	if cfg.Server.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Server.RunTimeout)
		defer cancel()
	}
	return pipeline.Manager.Execute(ctx, operations.OperationRequest{Steps: opts.Steps})
}

// WriteRunSummary prints one line per step followed by the artifacts
func WriteRunSummary(w io.Writer, resp *operations.OperationResponse) error {
	if resp == nil {
		return nil
	}
	fmt.Fprintf(w, "\nRun %s %s in %s\n", resp.ID, resp.Status, resp.Duration.Round(time.Millisecond))

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STEP\tSTATUS\tDETAIL")
	for _, step := range resp.Steps {
		detail := step.Message
		if step.Error != "" {
			detail = step.Error
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", step.ID, step.Status, detail)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	for _, path := range resp.Artifacts {
		fmt.Fprintf(w, "wrote %s\n", path)
	}
	return nil
}
