package download_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediabot/internal/config"
	"mediabot/internal/download"
	"mediabot/internal/extract"
	"mediabot/internal/job"
	"mediabot/internal/services"
	"mediabot/internal/workerpool"
)

type fakeFetcher struct {
	samples []float64
	pause   time.Duration
	tail    time.Duration
	size    int64
	ext     string
	err     error
	block   bool
	got     download.Request
}

func (f *fakeFetcher) Fetch(ctx context.Context, req download.Request, onProgress func(download.Progress)) (string, error) {
	f.got = req
	for _, pct := range f.samples {
		onProgress(download.Progress{Percent: pct})
		if f.pause > 0 {
			time.Sleep(f.pause)
		}
	}
	if f.tail > 0 {
		time.Sleep(f.tail)
	}
	if f.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if f.err != nil {
		return "", f.err
	}
	ext := f.ext
	if ext == "" {
		ext = ".mp4"
	}
	path := filepath.Join(req.Dir, "raw"+ext)
	req.Track(path)
	if f.size >= 0 {
		size := f.size
		if size == 0 {
			size = 64
		}
		if err := os.WriteFile(path, make([]byte, size), 0o644); err != nil {
			return "", err
		}
	}
	return path, nil
}

type recordingSink struct {
	mu   sync.Mutex
	seen []float64
}

func (r *recordingSink) sink(_ context.Context, p download.Progress) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, p.Percent)
}

func (r *recordingSink) values() []float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]float64(nil), r.seen...)
}

func newOrchestrator(t *testing.T, fetcher download.Fetcher, progress config.Progress, opts ...download.Option) *download.Orchestrator {
	t.Helper()
	pool := workerpool.New(2, nil)
	require.NoError(t, pool.Start())
	t.Cleanup(pool.Close)
	dl := config.Default().Downloader
	dl.FetchTimeout = 5
	return download.New(fetcher, pool, dl, progress, opts...)
}

func newJob(t *testing.T, title string) *job.Job {
	t.Helper()
	j, err := job.New(t.TempDir(), 1, 1, "https://video.example/v")
	require.NoError(t, err)
	j.SetMetadata(extract.Metadata{ID: "vid42", Title: title})
	return j
}

func TestThrottleDualGate(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	th := download.NewThrottle(3*time.Second, 5)

	assert.False(t, th.Allow(download.Progress{Percent: 4}, start), "below delta")
	assert.True(t, th.Allow(download.Progress{Percent: 5}, start))
	assert.False(t, th.Allow(download.Progress{Percent: 50}, start.Add(2*time.Second)), "inside interval")
	assert.False(t, th.Allow(download.Progress{Percent: 8}, start.Add(4*time.Second)), "delta not reached")
	assert.True(t, th.Allow(download.Progress{Percent: 10}, start.Add(4*time.Second)))
	assert.False(t, th.Allow(download.Progress{Percent: 9}, start.Add(10*time.Second)), "never decreases")
	assert.False(t, th.Allow(download.Progress{Percent: -1}, start.Add(10*time.Second)), "unknown percent")

	last, ok := th.Last()
	assert.True(t, ok)
	assert.Equal(t, 10.0, last)
}

func TestFetchRenamesAndEmitsMonotonicProgress(t *testing.T) {
	fetcher := &fakeFetcher{samples: []float64{1, 3, 6, 8, 12, 20, 21, 40, 100}}
	o := newOrchestrator(t, fetcher, config.Progress{MinIntervalSeconds: 0, MinDeltaPercent: 5})
	j := newJob(t, `My: Clip?`)
	rec := &recordingSink{}

	path, err := o.Fetch(context.Background(), j, extract.QualityProfile{Name: "best", Format: "best"}, rec.sink)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(j.Dir(), "My Clip.mp4"), path)
	_, err = os.Stat(path)
	require.NoError(t, err)
	assert.Contains(t, j.Tracked(), path)
	assert.Contains(t, j.Tracked(), j.Dir())
	assert.Equal(t, "best", fetcher.got.Format)
	assert.Equal(t, "mp4", fetcher.got.MergeFormat)

	seen := rec.values()
	for i := 1; i < len(seen); i++ {
		assert.GreaterOrEqual(t, seen[i], seen[i-1]+5, "emissions advance by the delta: %v", seen)
	}
	for _, pct := range seen {
		assert.GreaterOrEqual(t, pct, 5.0)
	}
}

func TestFetchTickReoffersPendingSample(t *testing.T) {
	fetcher := &fakeFetcher{samples: []float64{10, 20}, tail: 300 * time.Millisecond}
	o := newOrchestrator(t, fetcher,
		config.Progress{MinIntervalSeconds: 0.1, MinDeltaPercent: 5},
		download.WithTickInterval(10*time.Millisecond),
	)
	rec := &recordingSink{}
	_, err := o.Fetch(context.Background(), newJob(t, "Clip"), extract.QualityProfile{Name: "best"}, rec.sink)
	require.NoError(t, err)

	seen := rec.values()
	require.NotEmpty(t, seen)
	assert.Equal(t, 20.0, seen[len(seen)-1])
}

func TestFetchFallsBackToItemID(t *testing.T) {
	o := newOrchestrator(t, &fakeFetcher{ext: ".webm"}, config.Progress{MinDeltaPercent: 5})
	j := newJob(t, "???")
	path, err := o.Fetch(context.Background(), j, extract.QualityProfile{}, nil)
	require.NoError(t, err)
	assert.Equal(t, "vid42.webm", filepath.Base(path))
}

func TestFetchAudioProfileSkipsMerge(t *testing.T) {
	fetcher := &fakeFetcher{ext: ".m4a"}
	o := newOrchestrator(t, fetcher, config.Progress{MinDeltaPercent: 5})
	_, err := o.Fetch(context.Background(), newJob(t, "Song"), extract.QualityProfile{Name: "audio", Format: "bestaudio", AudioOnly: true}, nil)
	require.NoError(t, err)
	assert.Empty(t, fetcher.got.MergeFormat)
}

func TestFetchClassifiesErrors(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want error
	}{
		{"tool", errors.New("yt-dlp: exit status 1: ERROR: ffmpeg not found"), services.ErrExternalTool},
		{"private", errors.New("yt-dlp: exit status 1: ERROR: Private video"), services.ErrPrivateOrUnavailable},
		{"unsupported", errors.New("ERROR: Unsupported URL: x"), services.ErrUnsupportedSource},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			o := newOrchestrator(t, &fakeFetcher{err: tc.err}, config.Progress{MinDeltaPercent: 5})
			_, err := o.Fetch(context.Background(), newJob(t, "x"), extract.QualityProfile{}, nil)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestFetchTimeout(t *testing.T) {
	pool := workerpool.New(1, nil)
	require.NoError(t, pool.Start())
	t.Cleanup(pool.Close)
	dl := config.Default().Downloader
	dl.FetchTimeout = 1
	o := download.New(&fakeFetcher{block: true}, pool, dl, config.Progress{MinDeltaPercent: 5})

	_, err := o.Fetch(context.Background(), newJob(t, "slow"), extract.QualityProfile{}, nil)
	assert.ErrorIs(t, err, services.ErrTimeout)
}

func TestFetchRejectsEmptyOutput(t *testing.T) {
	o := newOrchestrator(t, &fakeFetcher{size: -1}, config.Progress{MinDeltaPercent: 5})
	_, err := o.Fetch(context.Background(), newJob(t, "x"), extract.QualityProfile{}, nil)
	assert.ErrorIs(t, err, services.ErrExternalTool)
}

func TestFetchFailureLeavesNothingAfterCleanup(t *testing.T) {
	o := newOrchestrator(t, &fakeFetcher{err: errors.New("boom")}, config.Progress{MinDeltaPercent: 5})
	j := newJob(t, "x")
	_, err := o.Fetch(context.Background(), j, extract.QualityProfile{}, nil)
	require.Error(t, err)

	j.Cleanup(nil)
	for _, p := range j.Tracked() {
		_, statErr := os.Stat(p)
		assert.True(t, os.IsNotExist(statErr), p)
	}
}
