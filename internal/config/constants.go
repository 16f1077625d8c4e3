package config

import "time"

// Application constants
const (
	EnvPrefix = "EMS"

	// Files relative to the data directory
	DefaultDatabaseFile = "ems_inventory.db"
	DefaultDatasetFile  = "ambulance_items_usage.csv"

	// Report files relative to the reports directory
	UsageTrendsWorkbook = "usage_trends.xlsx"
	UsageTrendsCSV      = "usage_trends.csv"
	RestockEventsCSV    = "restock_events.csv"
	CriticalStockCSV    = "critical_stock.csv"
	AnalysisReportText  = "restock_critical_report.txt"
	AnalysisReportJSON  = "restock_critical_report.json"

	// Simulation defaults
	DefaultStartYear          = 2014
	DefaultEndYear            = 2023
	DefaultRestockProbability = 0.1

	// Analysis defaults
	DefaultSmoothingWindow       = 3
	DefaultRestockThresholdRatio = 0.2

	// Number of rows sampled into the log after ingestion and preprocessing
	VerifySampleRows  = 5
	PreviewSampleRows = 10

	// Pipeline execution defaults
	DefaultStepTimeout   = 5 * time.Minute
	DefaultRetryAttempts = 3
	DefaultRetryDelay    = 500 * time.Millisecond
	DefaultRetryMaxDelay = 5 * time.Second

	// Store drivers
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"
	DriverCSV    = "csv"

	// Server defaults
	DefaultPort            = 8080
	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 60 * time.Second
	DefaultShutdownTimeout = 15 * time.Second
	DefaultRunTimeout      = 5 * time.Minute
)
