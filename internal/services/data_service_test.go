package services

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"emsinv/internal/config"
	apperrors "emsinv/internal/errors"
	"emsinv/internal/operations"
	"emsinv/internal/store"
	"emsinv/pkg/contracts/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func csvOpener(dir string) operations.StoreOpener {
	return func(ctx context.Context) (store.Store, error) {
		st, err := store.NewCSVStore(dir, nil)
		if err != nil {
			return nil, err
		}
		return st, nil
	}
}

func testDataset() *domain.Dataset {
	return &domain.Dataset{
		Months: domain.MonthRange(domain.MustParseMonth("2014-01"), domain.MustParseMonth("2014-04")),
		Series: []domain.ItemSeries{
			{Item: "Bandages", Stock: []float64{500, 400, 450, 100}, Usage: []float64{0, 100, 0, 350}},
			{Item: "Gloves", Stock: []float64{1000, 900, 800, 700}, Usage: []float64{0, 100, 100, 100}},
		},
	}
}

func newTestDataService(t *testing.T, seed bool) *DataService {
	t.Helper()
	cfg := config.Default()
	opener := csvOpener(t.TempDir())
	if seed {
		st, err := opener(context.Background())
		require.NoError(t, err)
		require.NoError(t, st.Save(context.Background(), cfg.Store.CleanedTable, testDataset().ToTable()))
	}
	caps := domain.MustCapacityTable(
		domain.ItemCapacity{Item: "Bandages", Capacity: 500},
		domain.ItemCapacity{Item: "Splints", Capacity: 200},
	)
	return NewDataService(cfg, caps, opener, testLogger())
}

func TestDataService_NoDataset(t *testing.T) {
	svc := newTestDataService(t, false)
	ctx := context.Background()

	_, err := svc.GetItems(ctx)
	assert.True(t, apperrors.IsInputNotFound(err))

	_, err = svc.GetItemTrend(ctx, "Bandages", 2)
	assert.True(t, apperrors.IsInputNotFound(err))

	_, err = svc.GetAnalysisReport(ctx)
	assert.True(t, apperrors.IsInputNotFound(err))
}

func TestDataService_GetItems(t *testing.T) {
	svc := newTestDataService(t, true)

	list, err := svc.GetItems(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, list.Count)

	bandages := list.Items[0]
	assert.Equal(t, "Bandages", bandages.Item)
	assert.Equal(t, 500, bandages.Capacity)
	assert.Equal(t, 4, bandages.Months)
	assert.Equal(t, "2014-01", bandages.FirstMonth.String())
	assert.Equal(t, "2014-04", bandages.LastMonth.String())
	assert.Equal(t, 100.0, bandages.LatestStock)
	assert.Equal(t, 450.0, bandages.TotalUsage)
	assert.Equal(t, 350.0, bandages.PeakUsage)

	assert.Equal(t, "Gloves", list.Items[1].Item)
	assert.Zero(t, list.Items[1].Capacity)
}

func TestDataService_GetItemTrend(t *testing.T) {
	svc := newTestDataService(t, true)
	ctx := context.Background()

	tests := []struct {
		name       string
		item       string
		window     int
		wantWindow int
		wantLast   float64
		check      func(t *testing.T, err error)
	}{
		{name: "two month window", item: "Bandages", window: 2, wantWindow: 2, wantLast: 175},
		{name: "configured window", item: "Bandages", window: 0, wantWindow: config.DefaultSmoothingWindow, wantLast: 150},
		{
			name: "unknown item", item: "Masks", window: 2,
			check: func(t *testing.T, err error) { assert.ErrorIs(t, err, ErrItemNotFound) },
		},
		{
			name: "negative window", item: "Bandages", window: -1,
			check: func(t *testing.T, err error) { assert.True(t, apperrors.IsValidationError(err)) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trend, err := svc.GetItemTrend(ctx, tt.item, tt.window)
			if tt.check != nil {
				require.Error(t, err)
				tt.check(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantWindow, trend.Window)
			require.Len(t, trend.Points, 4)
			assert.Nil(t, trend.Points[0].Smoothed)
			last := trend.Points[3]
			assert.Equal(t, 350.0, last.Usage)
			require.NotNil(t, last.Smoothed)
			assert.InDelta(t, tt.wantLast, *last.Smoothed, 1e-9)
		})
	}
}

func TestDataService_GetAnalysisReport(t *testing.T) {
	svc := newTestDataService(t, true)

	report, err := svc.GetAnalysisReport(context.Background())
	require.NoError(t, err)

	bandages, ok := report.Item("Bandages")
	require.True(t, ok)
	require.NotNil(t, bandages.Restock)
	assert.Equal(t, 100.0, bandages.Restock.Threshold)
	assert.Empty(t, bandages.Restock.Months)
	require.NotNil(t, bandages.Critical)
	assert.Equal(t, 350.0, bandages.Critical.PeakUsage)
	assert.Equal(t, []domain.Month{domain.MustParseMonth("2014-04")}, bandages.Critical.Months)

	gloves, ok := report.Item("Gloves")
	require.True(t, ok)
	assert.Nil(t, gloves.Restock)
	assert.NotNil(t, gloves.Critical)

	assert.NotEmpty(t, report.SkippedFor("Splints"))
}
