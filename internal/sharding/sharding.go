package sharding

import (
	"fmt"
	"hash/crc32"
	"strconv"
	"strings"
)

// ShardCount is the fixed number of partitions for activity subjects.
const ShardCount = 1024

// GetShardID calculates the deterministic shard ID for a workspace.
func GetShardID(workspaceID string) int {
	checksum := crc32.ChecksumIEEE([]byte(workspaceID))
	return int(checksum % ShardCount)
}

// ActivitySubject returns the NATS subject for a workspace's activity events.
// Format: app.activity.{shard_id}.workspace.{workspace_id}
func ActivitySubject(workspaceID string) string {
	return fmt.Sprintf("app.activity.%d.workspace.%s", GetShardID(workspaceID), workspaceID)
}

// WorkspaceWildcard matches every shard for one workspace.
func WorkspaceWildcard(workspaceID string) string {
	return "app.activity.*.workspace." + workspaceID
}

// ShardFromSubject extracts the shard from a subject, falling back to the
// workspace hash when the subject is malformed.
func ShardFromSubject(workspaceID, subject string) int {
	parts := strings.Split(subject, ".")
	if len(parts) > 2 {
		if shard, err := strconv.Atoi(parts[2]); err == nil {
			return shard
		}
	}
	return GetShardID(workspaceID)
}
