package syncrun

import "time"

// Options selects the date window for a run. Full syncs walk every record
// ever created; incremental syncs only chase recent modifications.
type Options struct {
	Full          bool
	ModifiedSince time.Time // zero means "24 hours before now"
}

// RecordError identifies one legacy record that could not be reconciled.
// A transport-level failure is reported as a single synthetic entry with
// ExternalID 0.
type RecordError struct {
	ExternalID int64  `json:"external_id"`
	Message    string `json:"error"`
}

// Result summarises one sync run for the caller. It is transient: the
// audit sink keeps the durable record.
type Result struct {
	EntityType     string        `json:"entity_type"`
	OfficeID       string        `json:"office_id"`
	Success        bool          `json:"success"`
	RecordsSynced  int           `json:"records_synced"`
	RecordsCreated int           `json:"records_created"`
	RecordsUpdated int           `json:"records_updated"`
	RecordsFailed  int           `json:"records_failed"`
	DurationMs     int64         `json:"duration_ms"`
	Errors         []RecordError `json:"errors,omitempty"`
}
