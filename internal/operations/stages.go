package operations

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"emsinv/internal/analysis"
	"emsinv/internal/config"
	"emsinv/internal/dataprocessing"
	apperrors "emsinv/internal/errors"
	"emsinv/internal/exporter"
	"emsinv/internal/simulator"
	"emsinv/internal/store"
	"emsinv/pkg/contracts/domain"
)

// StoreOpener opens a store session for one step
type StoreOpener func(ctx context.Context) (store.Store, error)

// NewStoreOpener opens the configured store backend on each call
func NewStoreOpener(cfg *config.Config, paths *config.Paths, logger *slog.Logger) StoreOpener {
	return func(ctx context.Context) (store.Store, error) {
		return store.Open(ctx, cfg.Store.Driver, cfg.StoreLocation(paths), logger)
	}
}

// PipelineDeps carries what the pipeline steps need
type PipelineDeps struct {
	Config     *config.Config
	Paths      *config.Paths
	Capacities domain.CapacityTable
	OpenStore  StoreOpener
	Logger     *slog.Logger
	// Tracer receives skipped-analysis counts; may be nil
	Tracer *OperationTracer
	// Console receives the human-readable step output; nil discards it
	Console io.Writer
}

func (d PipelineDeps) console() io.Writer {
	if d.Console == nil {
		return io.Discard
	}
	return d.Console
}

func (d PipelineDeps) logger() *slog.Logger {
	if d.Logger == nil {
		return slog.Default()
	}
	return d.Logger
}

// RegisterPipeline registers the four pipeline steps
func RegisterPipeline(registry *Registry, deps PipelineDeps) error {
	if deps.Config == nil || deps.Paths == nil {
		return fmt.Errorf("pipeline needs config and resolved paths")
	}
	if deps.OpenStore == nil {
		deps.OpenStore = NewStoreOpener(deps.Config, deps.Paths, deps.logger())
	}
	for _, step := range []Step{
		NewSimulateStep(deps),
		NewIngestStep(deps),
		NewPreprocessStep(deps),
		NewAnalyzeStep(deps),
	} {
		if err := registry.Register(step); err != nil {
			return err
		}
	}
	return nil
}

// SimulateStep generates the synthetic dataset and writes it as CSV
type SimulateStep struct {
	BaseStage
	deps PipelineDeps
}

// NewSimulateStep creates the simulate step
func NewSimulateStep(deps PipelineDeps) *SimulateStep {
	return &SimulateStep{
		BaseStage: NewBaseStage(StepIDSimulate, StepNameSimulate, nil),
		deps:      deps,
	}
}

// Execute implements Step
func (s *SimulateStep) Execute(ctx context.Context, state *OperationState) error {
	sc := s.deps.Config.Simulation
	sim, err := simulator.New(simulator.Config{
		StartYear:          sc.StartYear,
		EndYear:            sc.EndYear,
		RestockProbability: sc.RestockProbability,
		Seed:               sc.Seed,
		Capacities:         s.deps.Capacities,
	}, s.deps.logger())
	if err != nil {
		return apperrors.NewConfigError("invalid simulation settings", err)
	}

	fmt.Fprintln(s.deps.console(), "Generating dataset...")
	path := s.deps.Paths.DatasetCSV
	table, err := sim.WriteCSV(path)
	if err != nil {
		return apperrors.NewStorageError("failed to write dataset", err)
	}
	fmt.Fprintf(s.deps.console(), "Dataset generated and saved as %s.\n", path)

	state.SetContext(ContextKeyRawTable, table)
	state.AddArtifacts(path)
	step := state.GetStage(s.ID())
	step.SetMetadata("rows", table.Len())
	step.SetMetadata("seed", sim.Seed())
	step.SetMetadata("path", path)
	return nil
}

// IngestStep loads the dataset CSV into the raw inventory table
type IngestStep struct {
	BaseStage
	deps PipelineDeps
}

// NewIngestStep creates the ingest step
func NewIngestStep(deps PipelineDeps) *IngestStep {
	return &IngestStep{
		BaseStage: NewBaseStage(StepIDIngest, StepNameIngest, []string{StepIDSimulate}),
		deps:      deps,
	}
}

// Execute implements Step
func (s *IngestStep) Execute(ctx context.Context, state *OperationState) error {
	out := s.deps.console()
	path := s.deps.Paths.DatasetCSV
	tableName := s.deps.Config.Store.RawTable

	table, err := store.ImportCSV(path)
	if err != nil {
		if apperrors.IsInputNotFound(err) {
			fmt.Fprintf(out, "File '%s' not found. Ensure the file exists.\n", path)
		}
		return err
	}
	fmt.Fprintf(out, "CSV file '%s' loaded successfully.\n", path)

	st, err := s.deps.OpenStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.Save(ctx, tableName, table); err != nil {
		return err
	}
	fmt.Fprintf(out, "Data loaded into database in table '%s'.\n", tableName)

	sample, err := store.Verify(ctx, st, tableName, config.VerifySampleRows)
	if err != nil {
		return err
	}
	if err := exporter.NewConsoleReporter(out).WriteTable("Sample data from the database:", sample); err != nil {
		return err
	}

	state.SetContext(ContextKeyRawTable, table)
	step := state.GetStage(s.ID())
	step.SetMetadata("rows", table.Len())
	step.SetMetadata("table", tableName)
	return nil
}

// PreprocessStep cleans the raw table, derives usage and saves the result.
// Nothing is saved when preprocessing fails.
type PreprocessStep struct {
	BaseStage
	deps PipelineDeps
}

// NewPreprocessStep creates the preprocess step
func NewPreprocessStep(deps PipelineDeps) *PreprocessStep {
	return &PreprocessStep{
		BaseStage: NewBaseStage(StepIDPreprocess, StepNamePreprocess, []string{StepIDIngest}),
		deps:      deps,
	}
}

// Validate implements Step
func (s *PreprocessStep) Validate(state *OperationState) error {
	if s.deps.Capacities.Len() == 0 {
		return fmt.Errorf("no item capacities configured")
	}
	return nil
}

// Execute implements Step
func (s *PreprocessStep) Execute(ctx context.Context, state *OperationState) error {
	out := s.deps.console()
	cfg := s.deps.Config.Store

	st, err := s.deps.OpenStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	raw, err := st.Load(ctx, cfg.RawTable)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, "Data loaded from database.")

	pre := dataprocessing.NewPreprocessor(s.deps.logger(), dataprocessing.DefaultOptions())
	ds, stats, err := pre.PreprocessWithStats(ctx, raw, s.deps.Capacities)
	if err != nil {
		fmt.Fprintf(out, "An error occurred during preprocessing: %v\n", err)
		return err
	}
	for _, line := range []string{
		"Missing values removed.",
		"Duplicates removed.",
		"Outliers cleaned.",
		"Date formats standardized.",
		"Monthly usage calculated.",
		"Data preprocessing completed.",
	} {
		fmt.Fprintln(out, line)
	}

	table := ds.ToTable()
	if err := st.Save(ctx, cfg.CleanedTable, table); err != nil {
		return err
	}
	fmt.Fprintf(out, "Preprocessed data saved to the database in '%s' table.\n", cfg.CleanedTable)
	if err := exporter.NewConsoleReporter(out).WriteTable("Preprocessed data sample:", table.Head(config.PreviewSampleRows)); err != nil {
		return err
	}

	state.SetContext(ContextKeyDataset, ds)
	state.SetContext(ContextKeyPreprocessStats, stats)
	step := state.GetStage(s.ID())
	step.SetMetadata("rows", stats.OutputRows)
	step.SetMetadata("rows_dropped", stats.RowsDropped())
	step.SetMetadata("outliers_dropped", stats.OutliersDropped)
	step.SetMetadata("items", len(stats.Items))
	return nil
}

// AnalyzeStep computes trends, restock events and critical stock months and
// writes the reports. Without a dataset from this run it reads the
// preprocessed table from the store.
type AnalyzeStep struct {
	BaseStage
	deps PipelineDeps
}

// NewAnalyzeStep creates the analyze step
func NewAnalyzeStep(deps PipelineDeps) *AnalyzeStep {
	return &AnalyzeStep{
		BaseStage: NewBaseStage(StepIDAnalyze, StepNameAnalyze, []string{StepIDPreprocess}),
		deps:      deps,
	}
}

// Validate implements Step
func (s *AnalyzeStep) Validate(state *OperationState) error {
	ac := s.deps.Config.Analysis
	return analysis.Options{
		SmoothingWindow:       ac.SmoothingWindow,
		RestockThresholdRatio: ac.RestockThresholdRatio,
	}.Validate()
}

// Execute implements Step
func (s *AnalyzeStep) Execute(ctx context.Context, state *OperationState) error {
	ds, err := s.dataset(ctx, state)
	if err != nil {
		return err
	}

	ac := s.deps.Config.Analysis
	analyzer, err := analysis.NewAnalyzer(s.deps.logger(), analysis.Options{
		SmoothingWindow:       ac.SmoothingWindow,
		RestockThresholdRatio: ac.RestockThresholdRatio,
	})
	if err != nil {
		return err
	}

	trends, trendSkips := analyzer.Trends(ctx, ds)
	report := analyzer.Analyze(ctx, ds, s.deps.Capacities)
	s.recordSkips(ctx, trendSkips, report.Skipped)

	console := exporter.NewConsoleReporter(s.deps.console())
	if err := console.WriteTrends(trends); err != nil {
		return err
	}
	if err := console.WriteAnalysis(report, s.deps.Capacities); err != nil {
		return err
	}

	reports := exporter.NewCSVReportExporter(s.deps.Paths, s.deps.logger())
	files, err := reports.ExportAll(report, trends)
	state.AddArtifacts(files...)
	if err != nil {
		return apperrors.NewStorageError("failed to export reports", err)
	}
	textPath, err := reports.ExportText(report, s.deps.Capacities)
	if err != nil {
		return apperrors.NewStorageError("failed to export text report", err)
	}
	state.AddArtifacts(textPath)

	if len(trends) > 0 {
		wbPath, err := exporter.NewWorkbookExporter(s.deps.Paths, s.deps.logger()).Export(trends)
		if err != nil {
			return apperrors.NewStorageError("failed to export trend workbook", err)
		}
		state.AddArtifacts(wbPath)
	}

	state.SetContext(ContextKeyTrends, trends)
	state.SetContext(ContextKeyReport, report)
	step := state.GetStage(s.ID())
	step.SetMetadata("rows", ds.Len())
	step.SetMetadata("items", len(report.Items))
	step.SetMetadata("skipped", len(trendSkips)+len(report.Skipped))
	return nil
}

// dataset returns the dataset of this run or the stored preprocessed table
func (s *AnalyzeStep) dataset(ctx context.Context, state *OperationState) (*domain.Dataset, error) {
	if ds, ok := state.Dataset(); ok {
		return ds, nil
	}

	st, err := s.deps.OpenStore(ctx)
	if err != nil {
		return nil, err
	}
	defer st.Close()

	table, err := st.Load(ctx, s.deps.Config.Store.CleanedTable)
	if err != nil {
		return nil, err
	}
	ds, err := domain.DatasetFromTable(table)
	if err != nil {
		return nil, apperrors.NewDataError("invalid preprocessed table", err)
	}
	state.SetContext(ContextKeyDataset, ds)
	return ds, nil
}

func (s *AnalyzeStep) recordSkips(ctx context.Context, groups ...[]domain.SkipNotice) {
	if s.deps.Tracer == nil {
		return
	}
	counts := make(map[domain.AnalysisKind]int)
	for _, notices := range groups {
		for _, n := range notices {
			counts[n.Analysis]++
		}
	}
	for kind, n := range counts {
		s.deps.Tracer.RecordSkipped(ctx, string(kind), n)
	}
}
