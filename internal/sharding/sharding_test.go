package sharding

import (
	"fmt"
	"strings"
	"testing"
)

func TestGetShardIDStable(t *testing.T) {
	id := "ws-stable"
	if GetShardID(id) != GetShardID(id) {
		t.Fatal("shard id is not deterministic")
	}
}

func TestActivitySubjectShape(t *testing.T) {
	subject := ActivitySubject("ws-1")
	if !strings.HasPrefix(subject, "app.activity.") {
		t.Fatalf("unexpected subject prefix: %q", subject)
	}
	if !strings.HasSuffix(subject, ".workspace.ws-1") {
		t.Fatalf("unexpected subject suffix: %q", subject)
	}
	want := fmt.Sprintf("app.activity.%d.workspace.ws-1", GetShardID("ws-1"))
	if subject != want {
		t.Fatalf("ActivitySubject = %q, want %q", subject, want)
	}
}

func TestShardFromSubject(t *testing.T) {
	if got := ShardFromSubject("ws-1", "app.activity.77.workspace.ws-1"); got != 77 {
		t.Fatalf("expected shard 77, got %d", got)
	}
	if got := ShardFromSubject("ws-2", "bad.subject"); got != GetShardID("ws-2") {
		t.Fatalf("expected fallback shard %d, got %d", GetShardID("ws-2"), got)
	}
}

func TestDistribution(t *testing.T) {
	distribution := make(map[int]int)
	for i := 0; i < 1000; i++ {
		distribution[GetShardID(fmt.Sprintf("workspace-%d", i))]++
	}
	if len(distribution) < 100 {
		t.Errorf("sharding distribution is too poor: %d unique shards for 1000 keys", len(distribution))
	}
}
