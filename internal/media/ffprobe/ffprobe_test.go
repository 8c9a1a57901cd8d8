package ffprobe

import (
	"context"
	"errors"
	"math"
	"testing"
)

type stubExecutor struct {
	output string
	err    error
	args   []string
}

func (s *stubExecutor) Run(_ context.Context, _ string, args []string, onStdout func(string)) error {
	s.args = append([]string(nil), args...)
	if onStdout != nil && s.output != "" {
		onStdout(s.output)
	}
	return s.err
}

func TestInspectParsesStreams(t *testing.T) {
	exec := &stubExecutor{output: `{"streams":[{"index":0,"codec_type":"video","width":1280,"height":720},{"index":1,"codec_type":"audio"}],"format":{"duration":"12.5","size":"2048"}}`}
	result, err := New("", exec).Inspect(context.Background(), "/tmp/clip.mp4")
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if result.VideoStreamCount() != 1 || result.AudioStreamCount() != 1 {
		t.Fatalf("unexpected stream counts: %+v", result.Streams)
	}
	if result.AudioOnly() {
		t.Fatal("video container reported as audio only")
	}
	if result.DurationSeconds() != 12.5 || result.SizeBytes() != 2048 {
		t.Fatalf("unexpected format: %+v", result.Format)
	}
	if got := exec.args[len(exec.args)-1]; got != "/tmp/clip.mp4" {
		t.Fatalf("expected path as final argument, got %q", got)
	}
}

func TestAudioOnlyIgnoresCoverArt(t *testing.T) {
	result := Result{Streams: []Stream{
		{CodecType: "audio"},
		{CodecType: "video", Disposition: map[string]int{"attached_pic": 1}},
	}}
	if !result.AudioOnly() {
		t.Fatal("expected cover art to be ignored")
	}
}

func TestInspectErrors(t *testing.T) {
	if _, err := New("", &stubExecutor{}).Inspect(context.Background(), " "); err == nil {
		t.Fatal("expected error for empty path")
	}
	if _, err := New("", &stubExecutor{err: errors.New("boom")}).Inspect(context.Background(), "x"); err == nil {
		t.Fatal("expected executor error")
	}
	if _, err := New("", &stubExecutor{output: "not json"}).Inspect(context.Background(), "x"); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestResultHelpersHandleInvalidNumbers(t *testing.T) {
	result := Result{Format: Format{Duration: "bad", Size: "-1"}}
	if !math.IsNaN(result.DurationSeconds()) {
		t.Fatalf("expected duration NaN, got %v", result.DurationSeconds())
	}
	if result.SizeBytes() != 0 {
		t.Fatalf("expected size 0, got %d", result.SizeBytes())
	}
}

func TestTitleAndVideoSize(t *testing.T) {
	exec := &stubExecutor{output: `{"streams":[{"codec_type":"video","width":320,"height":320,"disposition":{"attached_pic":1}},{"codec_type":"video","width":1920,"height":1080}],"format":{"tags":{"TITLE":" Concert "}}}`}
	result, err := New("", exec).Inspect(context.Background(), "/tmp/clip.mp4")
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if got := result.Title(); got != "Concert" {
		t.Fatalf("expected title Concert, got %q", got)
	}
	if w, h := result.VideoSize(); w != 1920 || h != 1080 {
		t.Fatalf("expected 1920x1080, got %dx%d", w, h)
	}
	if (Result{}).Title() != "" {
		t.Fatal("expected empty title without tags")
	}
}
