package logging

import "testing"

func TestNewProgressSamplerDefaults(t *testing.T) {
	if s := NewProgressSampler(0); s.bucketSize != 10 {
		t.Fatalf("bucketSize = %v, want 10", s.bucketSize)
	}
	if s := NewProgressSampler(25); s.bucketSize != 25 || s.lastBucket != -1 {
		t.Fatalf("unexpected sampler state: %+v", s)
	}
}

func TestProgressSamplerNilAlwaysLogs(t *testing.T) {
	var s *ProgressSampler
	if !s.ShouldLog(50, "download") {
		t.Fatal("nil sampler should always log")
	}
	s.Reset()
}

func TestProgressSamplerBuckets(t *testing.T) {
	s := NewProgressSampler(10)
	steps := []struct {
		percent float64
		want    bool
	}{
		{0, true},
		{4, false},
		{9.9, false},
		{10, true},
		{15, false},
		{35, true},
		{30, false},
		{100, true},
		{140, false},
	}
	for _, step := range steps {
		if got := s.ShouldLog(step.percent, "download"); got != step.want {
			t.Fatalf("ShouldLog(%v) = %v, want %v", step.percent, got, step.want)
		}
	}
}

func TestProgressSamplerPhaseChangeResetsBucket(t *testing.T) {
	s := NewProgressSampler(10)
	s.ShouldLog(80, "download")
	if !s.ShouldLog(5, " merge ") {
		t.Fatal("phase change should log")
	}
	if s.lastPhase != "merge" {
		t.Fatalf("lastPhase = %q, want merge", s.lastPhase)
	}
	if s.ShouldLog(5, "merge") {
		t.Fatal("same bucket in same phase should not log")
	}
}

func TestProgressSamplerUnknownPercent(t *testing.T) {
	s := NewProgressSampler(10)
	if !s.ShouldLog(-1, "download") {
		t.Fatal("first phase sample should log even without percent")
	}
	if s.ShouldLog(-1, "download") {
		t.Fatal("unknown percent in same phase should not log")
	}
	s.Reset()
	if !s.ShouldLog(0, "") {
		t.Fatal("after reset bucket 0 should log")
	}
}
