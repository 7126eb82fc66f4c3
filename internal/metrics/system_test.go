package metrics

import (
	"context"
	"encoding/json"
	"testing"
	"time"
)

func TestCollectSystemMetrics(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	snapshot, err := CollectSystemMetrics(ctx)
	if err != nil {
		t.Fatalf("CollectSystemMetrics: %v", err)
	}

	if snapshot.Timestamp.IsZero() {
		t.Error("timestamp is zero")
	}
	if snapshot.Process.GoRoutines < 1 {
		t.Errorf("go_routines = %d, want >= 1", snapshot.Process.GoRoutines)
	}
	if snapshot.Process.HeapAlloc == 0 {
		t.Error("heap_alloc is zero")
	}

	t.Run("payload is host stats only", func(t *testing.T) {
		data, err := json.Marshal(snapshot)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		var decoded map[string]interface{}
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		for _, section := range []string{"host", "cpu", "memory", "disk", "network", "process"} {
			if _, ok := decoded[section]; !ok {
				t.Errorf("payload missing %q section", section)
			}
		}
		if _, ok := decoded["gpu"]; ok {
			t.Error("payload carries a gpu section")
		}
	})
}
