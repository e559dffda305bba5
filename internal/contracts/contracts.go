package contracts

import "time"

// Entity types that can be synced from the legacy Caseworker system.
const (
	EntityCases        = "cases"
	EntityConstituents = "constituents"
	EntityEmails       = "emails"
)

// Sync modes carried on commands and sync.started events.
const (
	ModeFull        = "full"
	ModeIncremental = "incremental"
)

// Event types published on the SYNC_EVENTS stream.
const (
	EventSyncStarted   = "sync.started"
	EventSyncCompleted = "sync.completed"
	EventSyncFailed    = "sync.failed"
	EventEntityCreated = "entity.created"
	EventEntityUpdated = "entity.updated"
)

// SyncCommand is published by sync-api and processed by sync-worker.
// CommandID doubles as the run ID reported back to the caller.
type SyncCommand struct {
	CommandID     string     `json:"command_id"`
	OfficeID      string     `json:"office_id"`
	EntityType    string     `json:"entity_type"`
	Full          bool       `json:"full"`
	ModifiedSince *time.Time `json:"modified_since,omitempty"`
	RequestedBy   string     `json:"requested_by"`
	CreatedAt     time.Time  `json:"created_at"`
}

// SyncEvent is published by sync-worker and consumed by the audit sink and
// any progress subscriber. EventType tags which optional fields are
// meaningful: entity.* events carry InternalID/ExternalID/ChangedFields,
// sync.completed carries counts and duration, sync.failed carries Message
// and the records synced before the failure.
type SyncEvent struct {
	EventID       string    `json:"event_id"`
	RunID         string    `json:"run_id"`
	OfficeID      string    `json:"office_id"`
	EntityType    string    `json:"entity_type"`
	EventType     string    `json:"event_type"`
	Mode          string    `json:"mode,omitempty"`
	InternalID    string    `json:"internal_id,omitempty"`
	ExternalID    int64     `json:"external_id,omitempty"`
	ChangedFields []string  `json:"changed_fields,omitempty"`
	RecordsSynced int       `json:"records_synced,omitempty"`
	DurationMs    int64     `json:"duration_ms,omitempty"`
	Message       string    `json:"message,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
	ShardID       int       `json:"shard_id"`
}

// IsValidEntityType reports whether t names a syncable entity type.
func IsValidEntityType(t string) bool {
	switch t {
	case EntityCases, EntityConstituents, EntityEmails:
		return true
	default:
		return false
	}
}
