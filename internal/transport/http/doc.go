// Package http implements the chi handlers of the inventory report service.
//
// Handlers stay thin: they parse and validate the request, call a service
// and render the result. Every failure goes through the shared
// errors.ErrorHandler so clients always receive RFC 7807 problem details.
//
// # Routes
//
//	GET  /api/health                       service and store health
//	GET  /api/v1/items                     per-item summaries
//	GET  /api/v1/items/{item}/trend        monthly usage with moving average
//	GET  /api/v1/reports/analysis          restock and critical month report
//	POST /api/v1/pipeline/runs             start a pipeline run (202)
//	GET  /api/v1/pipeline/runs/latest      snapshot of the latest run
//	GET  /api/v1/pipeline/runs/{id}        snapshot of a run
//
// Service errors are mapped as follows: a missing dataset is 404
// DATASET_NOT_FOUND, an unknown item or run is 404 NOT_FOUND, a busy
// pipeline is 409 RUN_IN_PROGRESS and bad parameters are 400
// VALIDATION_FAILED.
package http
