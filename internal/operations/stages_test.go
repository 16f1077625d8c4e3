package operations

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"emsinv/internal/config"
	apperrors "emsinv/internal/errors"
	"emsinv/internal/store"
	"emsinv/pkg/contracts/domain"
)

func testPipeline(t *testing.T, driver string) (*Manager, PipelineDeps, *bytes.Buffer) {
	t.Helper()

	cfg := config.Default()
	cfg.Paths.BaseDir = t.TempDir()
	cfg.Store.Driver = driver
	cfg.Simulation.StartYear = 2014
	cfg.Simulation.EndYear = 2016
	cfg.Simulation.Seed = 42
	cfg.Capacities = []domain.ItemCapacity{
		{Item: "Bandages", Capacity: 500},
		{Item: "Oxygen Tanks", Capacity: 20},
		{Item: "Splints", Capacity: 200},
	}

	paths, err := cfg.ResolvePaths()
	require.NoError(t, err)
	require.NoError(t, paths.EnsureDirectories())
	caps, err := cfg.CapacityTable()
	require.NoError(t, err)

	out := &bytes.Buffer{}
	deps := PipelineDeps{
		Config:     cfg,
		Paths:      paths,
		Capacities: caps,
		Console:    out,
		Tracer:     NewOperationTracer(nil),
	}
	deps.OpenStore = NewStoreOpener(cfg, paths, nil)

	registry := NewRegistry()
	require.NoError(t, RegisterPipeline(registry, deps))
	return NewManager(nil, registry, testManagerConfig()), deps, out
}

func TestPipeline_FullRun(t *testing.T) {
	for _, driver := range []string{config.DriverCSV, config.DriverSQLite} {
		t.Run(driver, func(t *testing.T) {
			m, deps, out := testPipeline(t, driver)

			resp, err := m.Execute(context.Background(), OperationRequest{})
			require.NoError(t, err)
			assert.Equal(t, OperationStatusCompleted, resp.Status)

			require.Len(t, resp.Steps, 4)
			for i, id := range []string{StepIDSimulate, StepIDIngest, StepIDPreprocess, StepIDAnalyze} {
				assert.Equal(t, id, resp.Steps[i].ID)
				assert.Equal(t, string(StepStatusCompleted), resp.Steps[i].Status, resp.Steps[i].Message)
			}
			assert.Equal(t, 36, stepStatus(resp, StepIDSimulate).Metadata["rows"])
			assert.Equal(t, uint64(42), stepStatus(resp, StepIDSimulate).Metadata["seed"])

			reports := deps.Paths.ReportsDir
			assert.Equal(t, []string{
				deps.Paths.DatasetCSV,
				filepath.Join(reports, config.RestockEventsCSV),
				filepath.Join(reports, config.CriticalStockCSV),
				filepath.Join(reports, config.UsageTrendsCSV),
				filepath.Join(reports, config.AnalysisReportJSON),
				filepath.Join(reports, config.AnalysisReportText),
				filepath.Join(reports, config.UsageTrendsWorkbook),
			}, resp.Artifacts)
			for _, f := range resp.Artifacts {
				assert.FileExists(t, f)
			}

			st, err := deps.OpenStore(context.Background())
			require.NoError(t, err)
			defer st.Close()

			raw, err := st.Load(context.Background(), domain.RawTableName)
			require.NoError(t, err)
			assert.Equal(t, 36, raw.Len())

			cleaned, err := st.Load(context.Background(), domain.PreprocessedTableName)
			require.NoError(t, err)
			ds, err := domain.DatasetFromTable(cleaned)
			require.NoError(t, err)
			assert.Equal(t, []string{"Bandages", "Oxygen Tanks", "Splints"}, ds.Items())
			for _, s := range ds.Series {
				require.True(t, s.HasUsage())
				assert.Zero(t, s.Usage[0])
				for _, u := range s.Usage {
					assert.GreaterOrEqual(t, u, 0.0)
				}
			}

			console := out.String()
			assert.Contains(t, console, "Sample data from the database:")
			assert.Contains(t, console, "Data preprocessing completed.")
			assert.Contains(t, console, "=== Restock and Critical Stock Analysis ===")
			assert.Contains(t, console, "\nAnalyzing Oxygen Tanks...")
			assert.Contains(t, console, "Analysis completed.")
		})
	}
}

func TestPipeline_MissingCSVIsNoOp(t *testing.T) {
	m, _, out := testPipeline(t, config.DriverCSV)

	resp, err := m.Execute(context.Background(), OperationRequest{
		Steps: []string{StepIDIngest, StepIDPreprocess, StepIDAnalyze},
	})
	require.NoError(t, err)
	assert.Equal(t, OperationStatusCompleted, resp.Status)
	for _, s := range resp.Steps {
		assert.Equal(t, string(StepStatusSkipped), s.Status, s.ID)
	}
	assert.Contains(t, stepStatus(resp, StepIDIngest).Message, "INPUT_NOT_FOUND")
	assert.Contains(t, out.String(), "not found. Ensure the file exists.")
	assert.Empty(t, resp.Artifacts)
}

func TestPipeline_FailedPreprocessPersistsNothing(t *testing.T) {
	m, deps, _ := testPipeline(t, config.DriverCSV)

	st, err := deps.OpenStore(context.Background())
	require.NoError(t, err)
	bad := domain.RawTable{Columns: []string{"Bandages"}, Rows: [][]string{{"500"}, {"400"}}}
	require.NoError(t, st.Save(context.Background(), domain.RawTableName, bad))

	resp, err := m.Execute(context.Background(), OperationRequest{
		Steps: []string{StepIDPreprocess, StepIDAnalyze},
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsDataError(err))
	assert.Equal(t, OperationStatusFailed, resp.Status)
	assert.Equal(t, string(StepStatusFailed), stepStatus(resp, StepIDPreprocess).Status)
	assert.Equal(t, string(StepStatusSkipped), stepStatus(resp, StepIDAnalyze).Status)

	_, err = st.Load(context.Background(), domain.PreprocessedTableName)
	assert.True(t, apperrors.IsInputNotFound(err))
}

func TestPipeline_AnalyzeFromStoredTable(t *testing.T) {
	m, deps, out := testPipeline(t, config.DriverSQLite)

	ds := &domain.Dataset{
		Months: domain.MonthRange(domain.MustParseMonth("2014-01"), domain.MustParseMonth("2014-02")),
		Series: []domain.ItemSeries{
			{Item: "Oxygen Tanks", Stock: []float64{3, 20}, Usage: []float64{0, 0}},
			{Item: "Bandages", Stock: []float64{25, 40}, Usage: []float64{0, 30}},
		},
	}
	st, err := deps.OpenStore(context.Background())
	require.NoError(t, err)
	require.NoError(t, st.Save(context.Background(), domain.PreprocessedTableName, ds.ToTable()))
	require.NoError(t, st.Close())

	resp, err := m.Execute(context.Background(), OperationRequest{Steps: []string{StepIDAnalyze}})
	require.NoError(t, err)
	assert.Equal(t, string(StepStatusCompleted), stepStatus(resp, StepIDAnalyze).Status)

	text := out.String()
	assert.Contains(t, text, "Restocks occurred when inventory was below 20% of max (4.0):\n - 2014-02\n")
	assert.Contains(t, text, "Months when Bandages stock fell below max usage (30.0):\n - 2014-01\n")
	assert.Contains(t, text, "Skipping Splints, not found in data.")
}

func TestNewStoreOpener(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.BaseDir = t.TempDir()
	cfg.Store.Driver = config.DriverCSV
	paths, err := cfg.ResolvePaths()
	require.NoError(t, err)

	st, err := NewStoreOpener(cfg, paths, nil)(context.Background())
	require.NoError(t, err)
	defer st.Close()
	assert.IsType(t, &store.CSVStore{}, st)
}
