// Package runner executes the external media tools (yt-dlp, ffmpeg, ffprobe)
// behind a small interface so callers can substitute a stub in tests.
package runner

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
)

// maxLineBytes bounds a single output line. yt-dlp prints its metadata as one
// JSON line that can run to several megabytes.
const maxLineBytes = 64 << 20

// stderrTailLines is how many trailing stderr lines an ExitError keeps.
const stderrTailLines = 20

// Executor runs binary with args. onStdout receives each stdout line; stderr is
// collected and reported through *ExitError when the command fails.
type Executor interface {
	Run(ctx context.Context, binary string, args []string, onStdout func(string)) error
}

// ExitError describes a command that started but did not exit cleanly.
type ExitError struct {
	Binary string
	Err    error
	Stderr []string
}

func (e *ExitError) Error() string {
	tail := strings.TrimSpace(e.StderrText())
	if tail == "" {
		return fmt.Sprintf("%s: %v", e.Binary, e.Err)
	}
	return fmt.Sprintf("%s: %v: %s", e.Binary, e.Err, tail)
}

func (e *ExitError) Unwrap() error { return e.Err }

// StderrText joins the captured stderr tail.
func (e *ExitError) StderrText() string {
	return strings.Join(e.Stderr, "\n")
}

// CommandExecutor runs real processes via os/exec.
type CommandExecutor struct{}

// Run implements Executor.
func (CommandExecutor) Run(ctx context.Context, binary string, args []string, onStdout func(string)) error {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", binary, err)
	}

	var (
		wg      sync.WaitGroup
		once    sync.Once
		scanErr error
		tailMu  sync.Mutex
		tail    []string
	)
	scan := func(r io.Reader, forward func(string)) {
		defer wg.Done()
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
		for scanner.Scan() {
			forward(scanner.Text())
		}
		if err := scanner.Err(); err != nil {
			once.Do(func() { scanErr = err })
			_, _ = io.Copy(io.Discard, r)
		}
	}

	wg.Add(2)
	go scan(stdout, func(line string) {
		if onStdout != nil {
			onStdout(line)
		}
	})
	go scan(stderr, func(line string) {
		tailMu.Lock()
		tail = append(tail, line)
		if len(tail) > stderrTailLines {
			tail = tail[len(tail)-stderrTailLines:]
		}
		tailMu.Unlock()
	})
	wg.Wait()

	waitErr := cmd.Wait()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if waitErr != nil {
		return &ExitError{Binary: binary, Err: waitErr, Stderr: tail}
	}
	if scanErr != nil {
		return fmt.Errorf("scan %s output: %w", binary, scanErr)
	}
	return nil
}

// Output runs the command and returns its stdout joined by newlines.
func Output(ctx context.Context, exec Executor, binary string, args []string) (string, error) {
	if exec == nil {
		return "", errors.New("runner: nil executor")
	}
	var b strings.Builder
	err := exec.Run(ctx, binary, args, func(line string) {
		b.WriteString(line)
		b.WriteByte('\n')
	})
	return b.String(), err
}
