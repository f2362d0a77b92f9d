package dto

// RosterImportResult reports how many rows a roster import inserted.
type RosterImportResult struct {
	StudentsInserted    int `json:"students_inserted"`
	InstructorsInserted int `json:"instructors_inserted"`
	ClassesInserted     int `json:"classes_inserted"`
	EnrollmentsAdded    int `json:"enrollments_added"`
	RowsSkipped         int `json:"rows_skipped"`
}
