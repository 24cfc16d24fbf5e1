package app

// RunRecord tracks a CLI command that may mutate the index. Records are
// created in memory with ID=0; only mutating commands persist them, which
// assigns the auto-increment id used as the archive version.
type RunRecord struct {
	ID         int64
	Operation  string
	Parameters string
	Status     string // "success" or "error"
}

// NewRunRecord creates a new in-memory run record.
func NewRunRecord(operation, parameters string) *RunRecord {
	return &RunRecord{
		Operation:  operation,
		Parameters: parameters,
		Status:     "success",
	}
}

// Persisted returns true if this run has been saved to the database.
func (r *RunRecord) Persisted() bool {
	return r.ID != 0
}
