// Package analysis runs the advisory analyses over a preprocessed inventory
// dataset: usage trend smoothing, restock detection and critical stock
// detection.
//
// Every analysis is read-only. Items that cannot be analyzed (absent from
// the dataset, without a usage series, without a configured capacity) are
// reported as skip notices on the result rather than failing the run.
//
//	a, err := analysis.NewAnalyzer(logger, analysis.DefaultOptions())
//	report, err := a.Analyze(ctx, ds, capacities)
//	trends, skipped := a.Trends(ctx, ds)
package analysis
