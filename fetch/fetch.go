package fetch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Client downloads a URL to a local path. Downloads stream to a
// ".part" file next to the destination and are renamed into place only
// after the body is fully written and any checksum has matched, so a
// failed fetch never leaves a destination artifact behind.
type Client struct {
	httpClient *http.Client
}

func NewClient() *Client {
	return &Client{
		httpClient: &http.Client{},
	}
}

func NewClientWithHTTP(httpClient *http.Client) *Client {
	return &Client{httpClient: httpClient}
}

// Result describes a completed download.
type Result struct {
	Path   string
	SHA256 string
	Size   int64
}

// Download fetches url into path. wantSHA256, when non-empty, is the
// expected hex digest of the body; a mismatch is an error.
func (c *Client) Download(ctx context.Context, url, path, wantSHA256 string) (*Result, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, errors.Wrapf(err, "failed to create directory for %s", path)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to build request for %s", url)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to fetch %s", url)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("unexpected http status %s fetching %s", resp.Status, url)
	}

	partPath := path + ".part"
	out, err := os.Create(partPath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create %s", partPath)
	}

	h := sha256.New()
	size, err := io.Copy(io.MultiWriter(out, h), resp.Body)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(partPath)
		return nil, errors.Wrapf(err, "failed to download %s", url)
	}

	gotSHA256 := hex.EncodeToString(h.Sum(nil))
	if wantSHA256 != "" && !strings.EqualFold(gotSHA256, wantSHA256) {
		os.Remove(partPath)
		return nil, errors.Errorf("checksum mismatch for %s: want %s, got %s", url, wantSHA256, gotSHA256)
	}

	if err := os.Rename(partPath, path); err != nil {
		os.Remove(partPath)
		return nil, errors.Wrapf(err, "failed to move %s into place", partPath)
	}

	return &Result{Path: path, SHA256: gotSHA256, Size: size}, nil
}

// WithTimeout returns a copy of the client whose requests time out
// after d. Zero means no timeout.
func (c *Client) WithTimeout(d time.Duration) *Client {
	httpClient := *c.httpClient
	httpClient.Timeout = d
	return &Client{httpClient: &httpClient}
}
