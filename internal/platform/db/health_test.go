package db

import (
	"encoding/json"
	"testing"
)

func TestPoolStats_JSONShape(t *testing.T) {
	stats := &PoolStats{
		TotalConns:      4,
		IdleConns:       3,
		AcquiredConns:   1,
		MaxConns:        20,
		AcquireCount:    250,
		AcquireDuration: "1.5s",
		Healthy:         true,
	}

	raw, err := json.Marshal(stats)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	for _, key := range []string{
		"total_conns", "idle_conns", "acquired_conns", "max_conns",
		"acquire_count", "acquire_duration", "healthy",
	} {
		if _, ok := m[key]; !ok {
			t.Errorf("missing key %q in health payload", key)
		}
	}
	if m["healthy"] != true {
		t.Errorf("expected healthy true, got %v", m["healthy"])
	}
}

func TestPoolStats_EmptyPoolIsUnhealthy(t *testing.T) {
	stats := &PoolStats{MaxConns: 20, AcquireDuration: "0s"}
	if stats.Healthy {
		t.Error("a pool with zero connections must not report healthy")
	}
}
