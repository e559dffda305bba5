package sharding

import (
	"fmt"
	"strings"
	"testing"
)

func TestGetShardIDIsStable(t *testing.T) {
	id := "office-westminster"
	shard1 := GetShardID(id)
	shard2 := GetShardID(id)

	if shard1 != shard2 {
		t.Errorf("sharding is not deterministic: %d != %d", shard1, shard2)
	}
	if shard1 < 0 || shard1 >= ShardCount {
		t.Errorf("shard %d out of range [0, %d)", shard1, ShardCount)
	}
}

func TestSubjectsShareTheOfficeShard(t *testing.T) {
	office := "office-1"
	shard := GetShardID(office)

	command := CommandSubject("cases", office)
	if want := fmt.Sprintf("sync.command.%d.cases.office-1", shard); command != want {
		t.Errorf("CommandSubject = %v, want %v", command, want)
	}

	event := EventSubject(office)
	if want := fmt.Sprintf("sync.event.%d.office.office-1", shard); event != want {
		t.Errorf("EventSubject = %v, want %v", event, want)
	}

	// Per-office ordering relies on commands and events using one shard.
	if !strings.Contains(event, fmt.Sprintf(".%d.", shard)) {
		t.Errorf("event subject %q missing shard %d", event, shard)
	}
}

func TestDistribution(t *testing.T) {
	// Rough check to ensure we don't map everything to shard 0
	distribution := make(map[int]int)
	for i := 0; i < 1000; i++ {
		key := fmt.Sprintf("office-%d", i)
		shard := GetShardID(key)
		distribution[shard]++
	}

	if len(distribution) < 100 {
		t.Errorf("sharding distribution is too poor. Only %d unique shards used for 1000 keys", len(distribution))
	}
}
