package main

import (
	"fmt"
	"io"
	"strings"
	"testing"

	"mediabot/internal/deps"
)

func TestRenderStatusLineNoColor(t *testing.T) {
	got := renderStatusLine("Daemon", statusError, "Not running", false)
	want := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, "Daemon:", "[ERROR] Not running")
	if got != want {
		t.Fatalf("renderStatusLine mismatch\n got: %q\nwant: %q", got, want)
	}
}

func TestRenderStatusLineWithColor(t *testing.T) {
	got := renderStatusLine("Daemon", statusOK, "Running", true)
	if !strings.HasPrefix(got, ansiGreen) {
		t.Fatalf("expected green prefix, got %q", got)
	}
	if !strings.HasSuffix(got, ansiReset) {
		t.Fatalf("expected reset suffix, got %q", got)
	}
}

func TestDependencyLines(t *testing.T) {
	statuses := []deps.Status{
		{Name: "yt-dlp", Available: false, Detail: "binary \"yt-dlp\" not found", Description: "downloads media"},
		{Name: "FFmpeg", Available: true, Path: "/usr/bin/ffmpeg"},
		{Name: "FFprobe", Available: false, Optional: true, Detail: "binary \"ffprobe\" not found", Description: "stream inspection"},
	}
	lines := dependencyLines(statuses, false)
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}
	if !strings.Contains(lines[0], "[ERROR]") {
		t.Fatalf("expected error for required tool, got %q", lines[0])
	}
	if !strings.Contains(lines[1], "[OK] /usr/bin/ffmpeg") {
		t.Fatalf("expected path for available tool, got %q", lines[1])
	}
	if !strings.Contains(lines[2], "[WARN]") || !strings.Contains(lines[2], "optional") {
		t.Fatalf("expected optional warning, got %q", lines[2])
	}
}

func TestBuildJobStateRowsSorted(t *testing.T) {
	rows := buildJobStateRows(map[string]int{"failed": 2, "completed": 5})
	if len(rows) != 2 || rows[0][0] != "completed" || rows[1][1] != "2" {
		t.Fatalf("unexpected rows %v", rows)
	}
}

func TestShouldColorizeNonFile(t *testing.T) {
	if shouldColorize(io.Discard) {
		t.Fatalf("expected non-file writer to disable color")
	}
}

func TestStatusCommand(t *testing.T) {
	env := setupCLITestEnv(t)
	seedJob(t, env, jobRecord("0190f1c2-0000-7000-8000-000000000001", "completed"))

	out, _, err := runCLI(t, []string{"status"}, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "== System Status ==")
	requireContains(t, out, "[INFO] Not running")
	requireContains(t, out, "[OK] Configured")
	requireContains(t, out, "== Dependencies ==")
	requireContains(t, out, "== Accounts ==")
	requireContains(t, out, "completed")
}
