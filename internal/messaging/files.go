package messaging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
)

// FileLinker resolves a file id to a download link.
type FileLinker interface {
	GetFileDirectURL(fileID string) (string, error)
}

// HTTPDoer performs file downloads. *http.Client and the bot's own client
// both satisfy it.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Files downloads files users sent to the bot.
type Files struct {
	linker FileLinker
	client HTTPDoer
}

// NewFiles constructs Files. A nil client uses http.DefaultClient.
func NewFiles(linker FileLinker, client HTTPDoer) *Files {
	if client == nil {
		client = http.DefaultClient
	}
	return &Files{linker: linker, client: client}
}

// Fetch writes the file identified by fileID to dst. The resolved link
// carries the bot token and is never included in errors.
func (f *Files) Fetch(ctx context.Context, fileID, dst string) error {
	fileID = strings.TrimSpace(fileID)
	if fileID == "" {
		return errors.New("fetch file: empty file id")
	}
	link, err := f.linker.GetFileDirectURL(fileID)
	if err != nil {
		return fmt.Errorf("resolve file %s: %w", fileID, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return fmt.Errorf("fetch file %s: build request", fileID)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("fetch file %s: %w", fileID, ctxErr)
		}
		return fmt.Errorf("fetch file %s: request failed", fileID)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch file %s: %s", fileID, resp.Status)
	}

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("fetch file %s: %w", fileID, err)
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		_ = out.Close()
		return fmt.Errorf("fetch file %s: write: %w", fileID, err)
	}
	return out.Close()
}
