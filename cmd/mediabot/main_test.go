package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"mediabot/internal/services"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"ok", nil, exitOK},
		{"interrupted", fmt.Errorf("daemon: %w", context.Canceled), exitInterrupted},
		{"bad input", services.Wrap(services.ErrValidation, "ledger", "grant", `unknown plan "gold"`, nil), exitBadInput},
		{"other", errors.New("database is locked"), exitFailure},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := exitCode(tc.err); got != tc.want {
				t.Fatalf("exitCode(%v) = %d, want %d", tc.err, got, tc.want)
			}
		})
	}
}

func TestRunReportsErrorsWithPrefix(t *testing.T) {
	var stderr bytes.Buffer
	if code := run([]string{"no-such-command"}, &stderr); code != exitFailure {
		t.Fatalf("expected exit %d, got %d", exitFailure, code)
	}
	if !strings.HasPrefix(stderr.String(), "mediabot: ") {
		t.Fatalf("expected prefixed error, got %q", stderr.String())
	}
}
