package testsupport

import (
	"io"
	"os"
	"path/filepath"
	"testing"
)

// filler is an endless stream of one byte value.
type filler byte

func (f filler) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = byte(f)
	}
	return len(p), nil
}

// WriteFile creates path, and its parent directories, as a stand-in media
// artifact of exactly size bytes. Sizes below one produce a one-byte file so
// that the artifact is never mistaken for a failed download.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	if _, err := io.CopyN(f, filler('M'), max(size, 1)); err != nil {
		_ = f.Close()
		t.Fatalf("write %s: %v", path, err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close %s: %v", path, err)
	}
}
