package messaging_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediabot/internal/messaging"
)

type linkFunc func(string) (string, error)

func (f linkFunc) GetFileDirectURL(fileID string) (string, error) { return f(fileID) }

func TestFilesFetchWritesBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/file/botsecret/videos/clip.mp4" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("video-bytes"))
	}))
	t.Cleanup(srv.Close)

	files := messaging.NewFiles(linkFunc(func(id string) (string, error) {
		return srv.URL + "/file/botsecret/videos/" + id, nil
	}), srv.Client())

	dst := filepath.Join(t.TempDir(), "clip")
	require.NoError(t, files.Fetch(context.Background(), "clip.mp4", dst))
	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "video-bytes", string(data))

	err = files.Fetch(context.Background(), "missing.mp4", filepath.Join(t.TempDir(), "x"))
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "botsecret")
}

func TestFilesFetchErrors(t *testing.T) {
	files := messaging.NewFiles(linkFunc(func(string) (string, error) {
		return "", errors.New("file is too big")
	}), nil)
	require.Error(t, files.Fetch(context.Background(), " ", "unused"))

	err := files.Fetch(context.Background(), "id", "unused")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "file is too big")
}
