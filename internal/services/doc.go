// Package services implements the business logic behind the HTTP report
// service. Handlers stay thin: they parse and validate the request, call a
// service and render the result or the error.
//
// # Available Services
//
//   - DataService: reads the preprocessed inventory and runs the advisory
//     analyses on demand (item list, usage trends, analysis report)
//   - OperationService: triggers pipeline runs, one at a time, and reports
//     their progress snapshots
//   - HealthService: liveness plus store and websocket status
//
// # Error Handling
//
// Services return errors from the internal/errors taxonomy or the sentinels
// in this package. Handlers map them onto RFC 7807 problem details:
//
//   - INPUT_NOT_FOUND when no preprocessed dataset has been stored yet
//   - ErrItemNotFound for an unknown item
//   - ErrRunInProgress while another pipeline run holds the run lock
//   - VALIDATION for rejected parameters such as a zero smoothing window
//
// # Testing
//
// Services take their collaborators as constructor arguments, so tests wire
// a temporary CSV or SQLite store and a real operations.Manager.
package services
