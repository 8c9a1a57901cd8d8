package videoinfo_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediabot/internal/logging"
	"mediabot/internal/media/ffprobe"
	"mediabot/internal/messaging"
	"mediabot/internal/messaging/messagingtest"
	"mediabot/internal/testsupport"
	"mediabot/internal/videoinfo"
)

type fakeFetcher struct {
	err     error
	fetched []string
}

func (f *fakeFetcher) Fetch(_ context.Context, fileID, dst string) error {
	f.fetched = append(f.fetched, dst)
	if f.err != nil {
		return f.err
	}
	return os.WriteFile(dst, []byte(fileID), 0o644)
}

type fakeInspector struct {
	result ffprobe.Result
	err    error
	paths  []string
}

func (f *fakeInspector) Inspect(_ context.Context, path string) (ffprobe.Result, error) {
	f.paths = append(f.paths, path)
	if _, err := os.Stat(path); err != nil {
		return ffprobe.Result{}, err
	}
	return f.result, f.err
}

func userVideo() videoinfo.Request {
	return videoinfo.Request{
		Message:         messaging.MessageRef{Chat: messaging.Chat(42), MessageID: 7},
		FileID:          "file-1",
		FileSize:        1 << 20,
		Width:           640,
		Height:          360,
		DurationSeconds: 30,
	}
}

func newService(t *testing.T, fetcher videoinfo.Fetcher, inspector videoinfo.Inspector) (*videoinfo.Service, *messagingtest.Recorder, string) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	cfg.Telegram.AuditMediaChannel = "@audit_media"
	rec := messagingtest.New()
	return videoinfo.New(rec, fetcher, inspector, cfg, videoinfo.WithLogger(logging.NewNop())), rec, cfg.Paths.WorkDir
}

func TestDescribeRepliesWithContainerDetails(t *testing.T) {
	fetcher := &fakeFetcher{}
	inspector := &fakeInspector{result: ffprobe.Result{
		Streams: []ffprobe.Stream{{CodecType: "video", Width: 1920, Height: 1080}},
		Format:  ffprobe.Format{Duration: "65.4", Tags: map[string]string{"title": "Concert"}},
	}}
	svc, rec, workDir := newService(t, fetcher, inspector)

	require.NoError(t, svc.Describe(context.Background(), userVideo()))

	assert.Equal(t, []string{
		"Reading video details...",
		"Title: Concert\nResolution: 1920x1080\nDuration: 01:05",
	}, rec.Texts())

	forwards := rec.CallsOf(messagingtest.OpForward)
	require.Len(t, forwards, 1)
	assert.Equal(t, "@audit_media", forwards[0].To.String())
	assert.Equal(t, userVideo().Message, forwards[0].Ref)

	require.Len(t, fetcher.fetched, 1)
	assert.NoDirExists(t, filepath.Dir(fetcher.fetched[0]))
	entries, err := os.ReadDir(workDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDescribeFallsBackToReportedMetadata(t *testing.T) {
	svc, rec, _ := newService(t, &fakeFetcher{}, &fakeInspector{})

	require.NoError(t, svc.Describe(context.Background(), userVideo()))
	assert.Equal(t, "Title: Title not found\nResolution: 640x360\nDuration: 00:30", rec.LastText())
}

func TestDescribeSkipsFilesTooLargeToFetch(t *testing.T) {
	fetcher := &fakeFetcher{}
	svc, rec, _ := newService(t, fetcher, &fakeInspector{})
	req := userVideo()
	req.FileSize = videoinfo.MaxFetchBytes + 1

	require.NoError(t, svc.Describe(context.Background(), req))
	assert.Empty(t, fetcher.fetched)
	assert.Contains(t, rec.LastText(), "Resolution: 640x360")
	assert.Len(t, rec.CallsOf(messagingtest.OpForward), 1)
}

func TestDescribeFailureEditsErrorAndCleansUp(t *testing.T) {
	fetcher := &fakeFetcher{}
	inspector := &fakeInspector{err: errors.New("moov atom not found")}
	svc, rec, _ := newService(t, fetcher, inspector)

	err := svc.Describe(context.Background(), userVideo())
	require.Error(t, err)
	assert.Equal(t, "Could not read this video's details.", rec.LastText())
	assert.Empty(t, rec.CallsOf(messagingtest.OpForward))
	require.Len(t, fetcher.fetched, 1)
	assert.NoDirExists(t, filepath.Dir(fetcher.fetched[0]))
}

func TestDescribeFailureRepliesAfterCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	fetcher := &fakeFetcher{err: context.Canceled}
	svc, rec, _ := newService(t, fetcher, &fakeInspector{})

	// The recorder ignores ctx, so cancel before the failure path runs to
	// show the error reply is sent regardless.
	cancel()
	require.Error(t, svc.Describe(ctx, userVideo()))
	assert.Equal(t, "Could not read this video's details.", rec.LastText())
}

func TestStartRunsInBackground(t *testing.T) {
	svc, rec, _ := newService(t, &fakeFetcher{}, &fakeInspector{})
	svc.Start(context.Background(), userVideo())
	svc.Wait()
	assert.Len(t, rec.CallsOf(messagingtest.OpEdit), 1)
}

func TestDescribeWithoutAuditChannelDoesNotForward(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	rec := messagingtest.New()
	svc := videoinfo.New(rec, &fakeFetcher{}, &fakeInspector{}, cfg)

	require.NoError(t, svc.Describe(context.Background(), userVideo()))
	assert.Empty(t, rec.CallsOf(messagingtest.OpForward))
}
