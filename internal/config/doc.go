// Package config provides centralized configuration for the EMS inventory
// pipeline. It loads settings from defaults, an optional YAML file and
// environment variables, validates them, and resolves file system paths.
//
// # Configuration Sources
//
// Sources are applied in this order, later ones winning:
//
//  1. Default values (Default)
//  2. YAML file (EMS_CONFIG_FILE, config.yaml or configs/config.yaml)
//  3. Environment variables (highest priority)
//
// # Environment Variables
//
// All environment variables follow the pattern EMS_<SECTION>_<FIELD>:
//
//	EMS_STORE_DRIVER=mysql
//	EMS_STORE_DSN=ems:secret@tcp(localhost:3306)/ems
//	EMS_SIMULATION_SEED=42
//	EMS_ANALYSIS_SMOOTHING_WINDOW=6
//	EMS_LOGGING_LEVEL=debug
//	EMS_PIPELINE_RETRY_ATTEMPTS=1
//	EMS_PIPELINE_STEP_TIMEOUTS=preprocess:30s,analyze:1m
//	EMS_CAPACITY_OVERRIDES=Gloves:800,Masks:300
//
// # Capacity Table
//
// The item capacity table is an ordered list in the YAML file:
//
//	capacities:
//	  - item: Bandages
//	    capacity: 500
//	  - item: Oxygen Tanks
//	    capacity: 20
//
// Config.CapacityTable builds the immutable domain.CapacityTable handed to
// preprocessing and analysis.
//
// # Paths
//
// Config.ResolvePaths turns the configured relative paths into absolute ones
// rooted at Paths.BaseDir (the working directory by default):
//
//	paths, err := cfg.ResolvePaths()
//	reportPath := paths.GetReportPath(config.UsageTrendsWorkbook)
package config
