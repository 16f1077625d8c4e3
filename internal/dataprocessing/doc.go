// Package dataprocessing turns raw monthly inventory tables into clean,
// chronologically ordered datasets with derived usage series.
//
// # Pipeline
//
// Preprocess applies six steps in a fixed order:
//
//  1. Rows with any missing cell are dropped. Inf and NaN count as missing.
//  2. Exact duplicate rows are dropped, keeping the first.
//  3. Per numeric column, in column order, rows outside mean ± 3 sample
//     standard deviations are dropped. Each column sees only the rows that
//     survived the columns before it.
//  4. Month keys are parsed and rows sorted chronologically.
//  5. Usage is derived per item from consecutive stock levels.
//  6. Rows left with a non-finite value are dropped. After step 1 this
//     only guards against arithmetic overflow.
//
// Usage for month t is stock[t-1] - stock[t], forced to 0 when the stock
// rose (a restock), when the stock equals the item's capacity, and for the
// first month. Usage is therefore never negative.
//
// # Usage
//
//	p := dataprocessing.NewPreprocessor(logger, dataprocessing.DefaultOptions())
//	ds, stats, err := p.PreprocessWithStats(ctx, raw, capacities)
//
// The raw table is never modified.
package dataprocessing
