// Package app wires the inventory report service together and manages its
// lifecycle.
//
// NewApplication resolves paths, initializes OpenTelemetry, builds the
// pipeline (simulate, ingest, preprocess, analyze) on an operations
// manager, creates the services and mounts the chi router:
//
//	/ws          pipeline snapshots over WebSocket
//	/metrics     Prometheus exposition
//	/api/...     JSON API, see package transport/http
//
// Run serves until the context is cancelled or SIGINT/SIGTERM arrives.
// Shutdown drains HTTP requests, cancels a running pipeline, closes
// WebSocket clients and flushes telemetry. Errors are returned to main,
// the package never calls os.Exit.
package app
