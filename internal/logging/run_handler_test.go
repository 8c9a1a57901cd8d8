package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
)

func decodeRecord(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("decode %q: %v", buf.String(), err)
	}
	return record
}

func TestRunIDStampedOnDaemonRecords(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(withRunID(slog.NewJSONHandler(&buf, nil), "run-7")).With("component", "pipeline")
	logger.Info("job finished", "job_id", "job-1")

	record := decodeRecord(t, &buf)
	if record[FieldRunID] != "run-7" {
		t.Fatalf("expected run_id run-7, got %v", record[FieldRunID])
	}
	if record["component"] != "pipeline" || record["job_id"] != "job-1" {
		t.Fatalf("expected component and job_id to survive, got %v", record)
	}
}

func TestRunIDStaysTopLevelInsideGroups(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(withRunID(slog.NewJSONHandler(&buf, nil), "run-7")).WithGroup("upload")
	logger.Info("sent", "bytes", 1024)

	record := decodeRecord(t, &buf)
	if record[FieldRunID] != "run-7" {
		t.Fatalf("expected top-level run_id, got %v", record)
	}
	group, ok := record["upload"].(map[string]any)
	if !ok || group["bytes"] != float64(1024) {
		t.Fatalf("expected grouped bytes, got %v", record["upload"])
	}
	if _, nested := group[FieldRunID]; nested {
		t.Fatalf("run_id should not be nested under the group: %v", group)
	}
}

func TestWithRunIDPassThrough(t *testing.T) {
	if _, ok := withRunID(nil, "run-1").(NoopHandler); !ok {
		t.Fatal("expected NoopHandler for nil base")
	}
	base := slog.NewJSONHandler(&bytes.Buffer{}, nil)
	if withRunID(base, "") != slog.Handler(base) {
		t.Fatal("expected base handler when run id is empty")
	}
}
