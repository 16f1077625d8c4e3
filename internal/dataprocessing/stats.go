package dataprocessing

// Stats reports how many rows each preprocessing step removed
type Stats struct {
	InputRows              int            `json:"input_rows"`
	MissingDropped         int            `json:"missing_dropped"`
	DuplicatesDropped      int            `json:"duplicates_dropped"`
	OutliersDropped        int            `json:"outliers_dropped"`
	OutliersByColumn       map[string]int `json:"outliers_by_column,omitempty"`
	DuplicateMonthsDropped int            `json:"duplicate_months_dropped"`
	NonFiniteDropped       int            `json:"non_finite_dropped"`
	OutputRows             int            `json:"output_rows"`
	Items                  []string       `json:"items"`
	DroppedColumns         []string       `json:"dropped_columns,omitempty"`
}

// RowsDropped returns the total number of rows removed
func (s Stats) RowsDropped() int {
	return s.InputRows - s.OutputRows
}
