package domain

// FileReport counts what a single file contributed to a load.
type FileReport struct {
	Path          string `json:"path"`
	Slot          int    `json:"slot"`           // Two-digit slot code parsed from the file name.
	Rows          int    `json:"rows"`           // Data rows read (header lines excluded).
	SkippedRows   int    `json:"skipped_rows"`   // Non-blank rows without a parseable lat/lon.
	SkippedFields int    `json:"skipped_fields"` // Non-blank values that did not parse or exceeded the depth axis.
}

// LoadReport holds per-file diagnostics in time-slot order.
type LoadReport struct {
	Files []FileReport `json:"files"`
}

// SkippedRows returns the total number of skipped rows across all files.
func (r *LoadReport) SkippedRows() int {
	n := 0
	for _, f := range r.Files {
		n += f.SkippedRows
	}
	return n
}

// SkippedFields returns the total number of skipped values across all files.
func (r *LoadReport) SkippedFields() int {
	n := 0
	for _, f := range r.Files {
		n += f.SkippedFields
	}
	return n
}
