package db

import (
	"encoding/json"
	"testing"
)

func TestHealthReport_JSONShape(t *testing.T) {
	report := healthReport{
		Status: "healthy",
		Pool: PoolStats{
			TotalConns:      4,
			IdleConns:       3,
			AcquiredConns:   1,
			MaxConns:        10,
			AcquireCount:    250,
			AcquireDuration: "1.2ms",
		},
	}

	raw, err := json.Marshal(report)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if decoded["status"] != "healthy" {
		t.Errorf("status = %v, want healthy", decoded["status"])
	}
	if _, ok := decoded["error"]; ok {
		t.Error("error field should be omitted when empty")
	}

	pool, ok := decoded["pool"].(map[string]interface{})
	if !ok {
		t.Fatalf("pool field missing or wrong type: %v", decoded["pool"])
	}
	for _, key := range []string{"total_conns", "idle_conns", "acquired_conns", "max_conns", "acquire_count", "acquire_duration"} {
		if _, ok := pool[key]; !ok {
			t.Errorf("pool snapshot missing %q", key)
		}
	}
}

func TestHealthReport_IncludesErrorWhenUnhealthy(t *testing.T) {
	report := healthReport{Status: "unhealthy", Error: "connection refused"}

	raw, err := json.Marshal(report)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded["status"] != "unhealthy" {
		t.Errorf("status = %v, want unhealthy", decoded["status"])
	}
	if decoded["error"] != "connection refused" {
		t.Errorf("error = %v, want connection refused", decoded["error"])
	}
}
