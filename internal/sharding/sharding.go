package sharding

import (
	"fmt"
	"hash/crc32"
)

// ShardCount is the fixed number of subject partitions. Commands and events
// for one office always land on the same shard, which preserves per-office
// ordering end to end.
const ShardCount = 256

// GetShardID calculates the deterministic shard ID for a given office ID.
func GetShardID(officeID string) int {
	checksum := crc32.ChecksumIEEE([]byte(officeID))
	return int(checksum % ShardCount)
}

// CommandSubject returns the NATS subject for a sync command.
// Format: sync.command.{shard_id}.{entity_type}.{office_id}
func CommandSubject(entityType, officeID string) string {
	return fmt.Sprintf("sync.command.%d.%s.%s", GetShardID(officeID), entityType, officeID)
}

// EventSubject returns the NATS subject for a sync event.
// Format: sync.event.{shard_id}.office.{office_id}
func EventSubject(officeID string) string {
	return fmt.Sprintf("sync.event.%d.office.%s", GetShardID(officeID), officeID)
}
