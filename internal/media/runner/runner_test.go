package runner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

func writeScript(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts unavailable on windows")
	}
	path := filepath.Join(t.TempDir(), "tool")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return path
}

func TestCommandExecutorForwardsStdout(t *testing.T) {
	script := writeScript(t, "echo one\necho two\necho noise 1>&2")
	out, err := Output(context.Background(), CommandExecutor{}, script, nil)
	if err != nil {
		t.Fatalf("Output: %v", err)
	}
	if out != "one\ntwo\n" {
		t.Fatalf("unexpected stdout %q", out)
	}
}

func TestCommandExecutorReportsStderrTail(t *testing.T) {
	script := writeScript(t, "echo 'ERROR: Private video' 1>&2\nexit 3")
	err := CommandExecutor{}.Run(context.Background(), script, nil, nil)
	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("expected ExitError, got %v", err)
	}
	if !strings.Contains(exitErr.StderrText(), "Private video") {
		t.Fatalf("stderr tail missing: %q", exitErr.StderrText())
	}
}

func TestCommandExecutorHonorsDeadline(t *testing.T) {
	script := writeScript(t, "exec sleep 5")
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	err := CommandExecutor{}.Run(ctx, script, nil, nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
}

func TestCommandExecutorMissingBinary(t *testing.T) {
	err := CommandExecutor{}.Run(context.Background(), filepath.Join(t.TempDir(), "missing"), nil, nil)
	if err == nil {
		t.Fatal("expected start error")
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		t.Fatalf("start failure should not be an ExitError: %v", err)
	}
}
