package download

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lrstanley/go-ytdlp"
)

const rawStem = "raw"

// YTDLPFetcher downloads with the yt-dlp binary through go-ytdlp.
type YTDLPFetcher struct {
	Binary           string
	ProgressInterval time.Duration
}

// NewYTDLPFetcher constructs a fetcher for binary ("yt-dlp" when empty).
func NewYTDLPFetcher(binary string) *YTDLPFetcher {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "yt-dlp"
	}
	return &YTDLPFetcher{Binary: binary, ProgressInterval: 500 * time.Millisecond}
}

// Fetch implements Fetcher. Output lands in req.Dir as raw.<ext>.
func (f *YTDLPFetcher) Fetch(ctx context.Context, req Request, onProgress func(Progress)) (string, error) {
	if strings.TrimSpace(req.Dir) == "" {
		return "", errors.New("fetch: destination directory required")
	}
	dl := ytdlp.New().
		SetExecutable(f.Binary).
		NoPlaylist().
		ForceOverwrites().
		Output(filepath.Join(req.Dir, rawStem+".%(ext)s"))
	if req.Format != "" {
		dl = dl.Format(req.Format)
	}
	if req.MergeFormat != "" {
		dl = dl.MergeOutputFormat(req.MergeFormat)
	}
	if onProgress != nil {
		dl.ProgressFunc(f.ProgressInterval, func(update ytdlp.ProgressUpdate) {
			onProgress(progressFromUpdate(&update))
		})
	}

	result, err := dl.Run(ctx, req.URL)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		if result != nil && strings.TrimSpace(result.Stderr) != "" {
			return "", fmt.Errorf("yt-dlp: %w: %s", err, strings.TrimSpace(result.Stderr))
		}
		return "", fmt.Errorf("yt-dlp: %w", err)
	}

	path, err := findOutput(req.Dir)
	if err != nil {
		return "", err
	}
	if req.Track != nil {
		req.Track(path)
	}
	return path, nil
}

func progressFromUpdate(update *ytdlp.ProgressUpdate) Progress {
	p := Progress{
		Percent:         -1,
		DownloadedBytes: int64(update.DownloadedBytes),
		TotalBytes:      int64(update.TotalBytes),
		ETA:             update.ETA(),
	}
	if p.TotalBytes > 0 {
		p.Percent = float64(p.DownloadedBytes) / float64(p.TotalBytes) * 100
		if p.Percent > 100 {
			p.Percent = 100
		}
	}
	if !update.Started.IsZero() {
		if elapsed := time.Since(update.Started).Seconds(); elapsed > 0 {
			p.Rate = float64(p.DownloadedBytes) / elapsed
		}
	}
	return p
}

// findOutput returns the largest finished raw.* file in dir.
func findOutput(dir string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, rawStem+".*"))
	if err != nil {
		return "", fmt.Errorf("inspect fetch output: %w", err)
	}
	var (
		best     string
		bestSize int64 = -1
	)
	for _, m := range matches {
		if isPartial(m) {
			continue
		}
		info, err := os.Stat(m)
		if err != nil || info.IsDir() {
			continue
		}
		if info.Size() > bestSize {
			best, bestSize = m, info.Size()
		}
	}
	if best == "" {
		return "", errors.New("yt-dlp produced no output file")
	}
	return best, nil
}

func isPartial(path string) bool {
	lower := strings.ToLower(path)
	for _, suffix := range []string{".part", ".ytdl", ".temp", ".tmp"} {
		if strings.HasSuffix(lower, suffix) {
			return true
		}
	}
	return strings.Contains(filepath.Base(lower), ".part-frag")
}
