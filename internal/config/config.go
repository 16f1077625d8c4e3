package config

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"

	"emsinv/pkg/contracts/domain"
)

// Config represents the complete application configuration
type Config struct {
	Logging    LoggingConfig    `yaml:"logging" envconfig:"LOGGING"`
	Paths      PathsConfig      `yaml:"paths" envconfig:"PATHS"`
	Store      StoreConfig      `yaml:"store" envconfig:"STORE"`
	Simulation SimulationConfig `yaml:"simulation" envconfig:"SIMULATION"`
	Analysis   AnalysisConfig   `yaml:"analysis" envconfig:"ANALYSIS"`
	Pipeline   PipelineConfig   `yaml:"pipeline" envconfig:"PIPELINE"`
	Server     ServerConfig     `yaml:"server" envconfig:"SERVER"`
	Telemetry  TelemetryConfig  `yaml:"telemetry" envconfig:"TELEMETRY"`

	// Capacities is the ordered item capacity table. Lists cannot be expressed
	// as env vars, so EMS_CAPACITY_OVERRIDES=Gloves:800,Masks:300 adjusts or
	// extends it instead.
	Capacities        []domain.ItemCapacity `yaml:"capacities" ignored:"true" validate:"dive"`
	CapacityOverrides map[string]int        `yaml:"capacity_overrides" envconfig:"CAPACITY_OVERRIDES"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" validate:"oneof=debug info warn warning error"`
	Output   string `yaml:"output" envconfig:"OUTPUT" validate:"oneof=console file both"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH"`
}

// PathsConfig contains file system paths configuration. Relative paths are
// resolved against BaseDir, which defaults to the working directory.
type PathsConfig struct {
	BaseDir    string `yaml:"base_dir" envconfig:"BASE_DIR"`
	DataDir    string `yaml:"data_dir" envconfig:"DATA_DIR" validate:"required"`
	ReportsDir string `yaml:"reports_dir" envconfig:"REPORTS_DIR" validate:"required"`
	LogsDir    string `yaml:"logs_dir" envconfig:"LOGS_DIR" validate:"required"`
	DatasetCSV string `yaml:"dataset_csv" envconfig:"DATASET_CSV" validate:"required"`
}

// StoreConfig selects the tabular store backend
type StoreConfig struct {
	Driver string `yaml:"driver" envconfig:"DRIVER" validate:"oneof=sqlite mysql csv"`
	// DSN is a file path for sqlite, a go-sql-driver DSN for mysql and a
	// directory for csv. Empty means the default location under the data dir.
	DSN          string `yaml:"dsn" envconfig:"DSN"`
	RawTable     string `yaml:"raw_table" envconfig:"RAW_TABLE" validate:"required"`
	CleanedTable string `yaml:"cleaned_table" envconfig:"CLEANED_TABLE" validate:"required,nefield=RawTable"`
}

// SimulationConfig controls synthetic dataset generation
type SimulationConfig struct {
	StartYear          int     `yaml:"start_year" envconfig:"START_YEAR" validate:"gte=1900,lte=9999"`
	EndYear            int     `yaml:"end_year" envconfig:"END_YEAR" validate:"gtefield=StartYear,lte=9999"`
	RestockProbability float64 `yaml:"restock_probability" envconfig:"RESTOCK_PROBABILITY" validate:"gte=0,lte=1"`
	// Seed 0 derives a seed from the clock
	Seed uint64 `yaml:"seed" envconfig:"SEED"`
}

// AnalysisConfig controls the advisory analyses
type AnalysisConfig struct {
	SmoothingWindow       int     `yaml:"smoothing_window" envconfig:"SMOOTHING_WINDOW" validate:"gte=1"`
	RestockThresholdRatio float64 `yaml:"restock_threshold_ratio" envconfig:"RESTOCK_THRESHOLD_RATIO" validate:"gt=0,lte=1"`
}

// PipelineConfig tunes how pipeline steps are executed
type PipelineConfig struct {
	// StepTimeout applies to steps without an entry in StepTimeouts
	StepTimeout  time.Duration            `yaml:"step_timeout" envconfig:"STEP_TIMEOUT" validate:"gt=0"`
	StepTimeouts map[string]time.Duration `yaml:"step_timeouts" envconfig:"STEP_TIMEOUTS" validate:"dive,keys,oneof=simulate ingest preprocess analyze,endkeys,gt=0"`
	// RetryAttempts counts the first attempt; storage failures are retried
	RetryAttempts   int           `yaml:"retry_attempts" envconfig:"RETRY_ATTEMPTS" validate:"gte=1,lte=10"`
	RetryDelay      time.Duration `yaml:"retry_delay" envconfig:"RETRY_DELAY" validate:"gte=0"`
	RetryMaxDelay   time.Duration `yaml:"retry_max_delay" envconfig:"RETRY_MAX_DELAY" validate:"gtefield=RetryDelay"`
	ContinueOnError bool          `yaml:"continue_on_error" envconfig:"CONTINUE_ON_ERROR"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port            int             `yaml:"port" envconfig:"PORT" validate:"gte=1,lte=65535"`
	ReadTimeout     time.Duration   `yaml:"read_timeout" envconfig:"READ_TIMEOUT" validate:"gt=0"`
	WriteTimeout    time.Duration   `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" validate:"gt=0"`
	ShutdownTimeout time.Duration   `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" validate:"gt=0"`
	RunTimeout      time.Duration   `yaml:"run_timeout" envconfig:"RUN_TIMEOUT" validate:"gt=0"`
	RateLimit       RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
}

// RateLimitConfig contains rate limiting configuration
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" envconfig:"ENABLED"`
	RPS     float64 `yaml:"rps" envconfig:"RPS" validate:"gte=0"`
	Burst   int     `yaml:"burst" envconfig:"BURST" validate:"gte=0"`
}

// TelemetryConfig toggles the OpenTelemetry exporters
type TelemetryConfig struct {
	ServiceName   string `yaml:"service_name" envconfig:"SERVICE_NAME" validate:"required"`
	EnableTracing bool   `yaml:"enable_tracing" envconfig:"ENABLE_TRACING"`
	EnableMetrics bool   `yaml:"enable_metrics" envconfig:"ENABLE_METRICS"`
	TraceToStdout bool   `yaml:"trace_to_stdout" envconfig:"TRACE_TO_STDOUT"`
}

// DefaultCapacities returns the standard ambulance supply capacities
func DefaultCapacities() []domain.ItemCapacity {
	return []domain.ItemCapacity{
		{Item: "Bandages", Capacity: 500},
		{Item: "Oxygen Tanks", Capacity: 20},
		{Item: "IV Kits", Capacity: 100},
		{Item: "Defibrillator Pads", Capacity: 50},
		{Item: "Gloves", Capacity: 1000},
		{Item: "Syringes", Capacity: 500},
		{Item: "Splints", Capacity: 200},
		{Item: "Medications", Capacity: 300},
	}
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:    "info",
			Output:   "console",
			FilePath: "logs/ems-inventory.log",
		},
		Paths: PathsConfig{
			DataDir:    "data",
			ReportsDir: "data/reports",
			LogsDir:    "logs",
			DatasetCSV: "data/" + DefaultDatasetFile,
		},
		Store: StoreConfig{
			Driver:       DriverSQLite,
			RawTable:     domain.RawTableName,
			CleanedTable: domain.PreprocessedTableName,
		},
		Simulation: SimulationConfig{
			StartYear:          DefaultStartYear,
			EndYear:            DefaultEndYear,
			RestockProbability: DefaultRestockProbability,
		},
		Analysis: AnalysisConfig{
			SmoothingWindow:       DefaultSmoothingWindow,
			RestockThresholdRatio: DefaultRestockThresholdRatio,
		},
		Pipeline: PipelineConfig{
			StepTimeout: DefaultStepTimeout,
			StepTimeouts: map[string]time.Duration{
				"simulate":   time.Minute,
				"ingest":     2 * time.Minute,
				"preprocess": 2 * time.Minute,
				"analyze":    3 * time.Minute,
			},
			RetryAttempts:   DefaultRetryAttempts,
			RetryDelay:      DefaultRetryDelay,
			RetryMaxDelay:   DefaultRetryMaxDelay,
			ContinueOnError: true,
		},
		Server: ServerConfig{
			Port:            DefaultPort,
			ReadTimeout:     DefaultReadTimeout,
			WriteTimeout:    DefaultWriteTimeout,
			ShutdownTimeout: DefaultShutdownTimeout,
			RunTimeout:      DefaultRunTimeout,
			RateLimit: RateLimitConfig{
				Enabled: true,
				RPS:     50,
				Burst:   20,
			},
		},
		Telemetry: TelemetryConfig{
			ServiceName:   "ems-inventory",
			EnableTracing: true,
			EnableMetrics: true,
		},
		Capacities: DefaultCapacities(),
	}
}

// Load loads configuration from the first config file found in the usual
// locations and from EMS_* environment variables
func Load() (*Config, error) {
	return LoadFrom(getConfigFilePath())
}

// LoadFrom loads configuration with precedence env > file > defaults.
// An empty path skips the file layer.
func LoadFrom(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadFromFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	// Fields carry no envconfig defaults, so unset vars leave file values alone
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// loadFromFile overlays a YAML file onto cfg
func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

// Validate checks field constraints and that the capacity table can be built
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}
	if _, err := c.CapacityTable(); err != nil {
		return err
	}
	return nil
}

// CapacityTable builds the ordered capacity table. Overrides replace the
// capacity of listed items; unknown items are appended in name order.
func (c *Config) CapacityTable() (domain.CapacityTable, error) {
	entries := make([]domain.ItemCapacity, len(c.Capacities))
	copy(entries, c.Capacities)

	seen := make(map[string]bool, len(entries))
	for i := range entries {
		name := strings.TrimSpace(entries[i].Item)
		seen[name] = true
		if v, ok := c.CapacityOverrides[name]; ok {
			entries[i].Capacity = v
		}
	}

	var extra []string
	for name := range c.CapacityOverrides {
		if !seen[strings.TrimSpace(name)] {
			extra = append(extra, name)
		}
	}
	sort.Strings(extra)
	for _, name := range extra {
		entries = append(entries, domain.ItemCapacity{Item: name, Capacity: c.CapacityOverrides[name]})
	}

	table, err := domain.NewCapacityTable(entries...)
	if err != nil {
		return domain.CapacityTable{}, fmt.Errorf("invalid capacity table: %w", err)
	}
	return table, nil
}

// getConfigFilePath returns the path to the config file
func getConfigFilePath() string {
	if p := os.Getenv(EnvPrefix + "_CONFIG_FILE"); p != "" {
		return p
	}

	locations := []string{
		"config.yaml",
		"configs/config.yaml",
		"../configs/config.yaml",
	}
	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}

	return "" // No config file found, use env vars only
}
