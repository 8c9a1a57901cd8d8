package extract_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediabot/internal/config"
	"mediabot/internal/extract"
	"mediabot/internal/media/runner"
	"mediabot/internal/services"
)

type stubExecutor struct {
	output string
	err    error
	calls  int
	binary string
	args   []string
	block  bool
}

func (s *stubExecutor) Run(ctx context.Context, binary string, args []string, onStdout func(string)) error {
	s.calls++
	s.binary = binary
	s.args = append([]string(nil), args...)
	if s.block {
		<-ctx.Done()
		return ctx.Err()
	}
	if s.output != "" {
		onStdout(s.output)
	}
	return s.err
}

func downloaderConfig() config.Downloader {
	return config.Default().Downloader
}

const videoJSON = `{
  "id": "abc123",
  "webpage_url": "https://video.example/watch?v=abc123",
  "extractor": "youtube",
  "extractor_key": "Youtube",
  "title": "  A Clip  ",
  "duration": 94.6,
  "formats": [
    {"format_id": "140", "ext": "m4a", "vcodec": "none", "acodec": "mp4a", "filesize": 1000},
    {"format_id": "18", "ext": "mp4", "height": 360, "vcodec": "avc1", "acodec": "mp4a", "filesize": 5000},
    {"format_id": "22", "ext": "mp4", "height": 720, "vcodec": "avc1", "acodec": "mp4a", "filesize_approx": 9000}
  ]
}`

func TestResolveParsesMetadata(t *testing.T) {
	exec := &stubExecutor{output: videoJSON}
	r := extract.New(downloaderConfig(), extract.WithExecutor(exec))

	meta, err := r.Resolve(context.Background(), "https://video.example/watch?v=abc123")
	require.NoError(t, err)

	assert.Equal(t, "yt-dlp", exec.binary)
	assert.Contains(t, exec.args, "--dump-single-json")
	assert.Contains(t, exec.args, "--skip-download")
	assert.Contains(t, exec.args, "--no-playlist")

	assert.Equal(t, "abc123", meta.ID)
	assert.Equal(t, "youtube", meta.Extractor)
	assert.Equal(t, "A Clip", meta.Title)
	assert.Equal(t, 95, meta.DurationSeconds)
	assert.Equal(t, int64(9000), meta.ApproxSizeBytes)
	assert.Equal(t, 720, meta.Height)
	assert.False(t, meta.AudioOnly)
	assert.Equal(t, []string{"best", "720p", "480p", "360p", "audio"}, meta.ProfileNames())

	best, ok := meta.ProfileByName("BEST")
	require.True(t, ok)
	assert.Equal(t, config.Default().Downloader.Format, best.Format)
	_, ok = meta.ProfileByName("1080p")
	assert.False(t, ok)
}

func TestResolveAudioOnly(t *testing.T) {
	exec := &stubExecutor{output: `{"id":"s1","title":"Song","duration":200,"filesize":4000,"formats":[{"format_id":"a","vcodec":"none","acodec":"opus"}]}`}
	meta, err := extract.New(downloaderConfig(), extract.WithExecutor(exec)).Resolve(context.Background(), "https://audio.example/s1")
	require.NoError(t, err)
	assert.True(t, meta.AudioOnly)
	assert.Equal(t, int64(4000), meta.ApproxSizeBytes)
	assert.Equal(t, "https://audio.example/s1", meta.URL)
	audio, ok := meta.ProfileByName("audio")
	require.True(t, ok)
	assert.True(t, audio.AudioOnly)
}

func TestResolveRejectsPlaylist(t *testing.T) {
	exec := &stubExecutor{output: `{"_type":"playlist","id":"pl"}`}
	_, err := extract.New(downloaderConfig(), extract.WithExecutor(exec)).Resolve(context.Background(), "https://video.example/list")
	assert.ErrorIs(t, err, services.ErrUnsupportedSource)
}

func TestResolveClassifiesFailures(t *testing.T) {
	cases := []struct {
		name   string
		stderr string
		want   error
	}{
		{"unsupported", "ERROR: Unsupported URL: https://nope.example", services.ErrUnsupportedSource},
		{"private", "ERROR: [youtube] abc: Private video. Sign in if you've been granted access", services.ErrPrivateOrUnavailable},
		{"removed", "ERROR: This video has been removed by the uploader", services.ErrPrivateOrUnavailable},
		{"geo", "ERROR: [youtube] abc: The uploader has not made this video available in your country", services.ErrPrivateOrUnavailable},
		{"not available", "ERROR: [vimeo] 42: This video is not available", services.ErrPrivateOrUnavailable},
		{"format", "ERROR: [youtube] abc: Requested format is not available. Use --list-formats for a list of available formats", services.ErrExternalTool},
		{"other", "ERROR: something odd", services.ErrTransient},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			exec := &stubExecutor{err: &runner.ExitError{Binary: "yt-dlp", Err: errors.New("exit status 1"), Stderr: []string{tc.stderr}}}
			_, err := extract.New(downloaderConfig(), extract.WithExecutor(exec)).Resolve(context.Background(), "https://x.example/v")
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestResolveTimeout(t *testing.T) {
	cfg := downloaderConfig()
	cfg.ResolveTimeout = 1
	exec := &stubExecutor{block: true}
	r := extract.New(cfg, extract.WithExecutor(exec))

	started := time.Now()
	_, err := r.Resolve(context.Background(), "https://slow.example/v")
	assert.ErrorIs(t, err, services.ErrTimeout)
	assert.Less(t, time.Since(started), 5*time.Second)
}

func TestResolveEmptyURL(t *testing.T) {
	exec := &stubExecutor{}
	_, err := extract.New(downloaderConfig(), extract.WithExecutor(exec)).Resolve(context.Background(), "  ")
	assert.ErrorIs(t, err, services.ErrUnsupportedSource)
	assert.Zero(t, exec.calls)
}

func TestResolveBadJSON(t *testing.T) {
	exec := &stubExecutor{output: "not json"}
	_, err := extract.New(downloaderConfig(), extract.WithExecutor(exec)).Resolve(context.Background(), "https://x.example/v")
	assert.ErrorIs(t, err, services.ErrTransient)
}

func TestSourceMarker(t *testing.T) {
	assert.ErrorIs(t, extract.SourceMarker(errors.New("ERROR: Unsupported URL: x")), services.ErrUnsupportedSource)
	assert.ErrorIs(t, extract.SourceMarker(errors.New("Video unavailable")), services.ErrPrivateOrUnavailable)
	assert.ErrorIs(t, extract.SourceMarker(errors.New("ERROR: Requested format is not available")), services.ErrExternalTool)
	assert.NotErrorIs(t, extract.SourceMarker(errors.New("ERROR: Requested format is not available")), services.ErrPrivateOrUnavailable)
	assert.Nil(t, extract.SourceMarker(errors.New("disk full")))
	assert.Nil(t, extract.SourceMarker(nil))
}
