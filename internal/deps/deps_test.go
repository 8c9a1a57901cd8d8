package deps

import (
	"os"
	"path/filepath"
	"testing"

	"mediabot/internal/config"
)

func TestCheckBinaries(t *testing.T) {
	binDir := t.TempDir()
	present := filepath.Join(binDir, "present")
	script := []byte("#!/bin/sh\nexit 0\n")
	if err := os.WriteFile(present, script, 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	reqs := []Requirement{
		{Name: "Present", Command: present},
		{Name: "Missing", Command: "clearly-not-present-binary"},
		{Name: "Blank", Command: "  "},
	}

	results := CheckBinaries(reqs)
	if len(results) != len(reqs) {
		t.Fatalf("expected %d results, got %d", len(reqs), len(results))
	}
	if !results[0].Available || results[0].Path != present {
		t.Fatalf("expected first requirement to resolve to %s, got %#v", present, results[0])
	}
	if results[0].Detail != "" {
		t.Fatalf("unexpected detail for available dependency: %s", results[0].Detail)
	}
	if results[1].Available {
		t.Fatal("expected missing binary to be unavailable")
	}
	if results[1].Detail != `binary "clearly-not-present-binary" not found` {
		t.Fatalf("unexpected detail: %q", results[1].Detail)
	}
	if results[2].Detail != "command not configured" {
		t.Fatalf("unexpected detail for blank command: %q", results[2].Detail)
	}
}

func TestMissingRequiredSkipsOptional(t *testing.T) {
	statuses := []Status{
		{Name: "a", Available: true},
		{Name: "b", Optional: true},
		{Name: "c"},
	}
	missing := MissingRequired(statuses)
	if len(missing) != 1 || missing[0].Name != "c" {
		t.Fatalf("expected only c to be missing, got %#v", missing)
	}
}

func TestForConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Downloader.YTDLPBinary = ""
	cfg.Downloader.MergeFormat = ""
	cfg.Watermark.AssetPath = ""
	cfg.Watermark.FFmpegBinary = "/opt/ffmpeg/bin/ffmpeg"

	reqs := ForConfig(&cfg)
	if len(reqs) != 3 {
		t.Fatalf("expected 3 requirements, got %d", len(reqs))
	}
	if reqs[0].Command != "yt-dlp" || reqs[0].Optional {
		t.Fatalf("yt-dlp should be required with the default command, got %#v", reqs[0])
	}
	if reqs[1].Command != "/opt/ffmpeg/bin/ffmpeg" || !reqs[1].Optional {
		t.Fatalf("ffmpeg should be optional without merge or watermark, got %#v", reqs[1])
	}
	if !reqs[2].Optional {
		t.Fatal("ffprobe should be optional")
	}

	cfg.Watermark.AssetPath = "/srv/logo.png"
	if ForConfig(&cfg)[1].Optional {
		t.Fatal("ffmpeg should be required once a watermark asset is configured")
	}
}
