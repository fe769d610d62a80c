package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"depthbook/internal/feed"
)

const (
	maxSnapshotBytes      = 64 << 20
	defaultRequestTimeout = 10 * time.Second
)

var ErrUnexpectedStatus = errors.New("unexpected http status")

// HTTPSnapshots fetches depth snapshots from a REST endpoint.
type HTTPSnapshots struct {
	URL    string
	Client *http.Client
}

func NewHTTPSnapshots(url string) *HTTPSnapshots {
	return &HTTPSnapshots{
		URL:    url,
		Client: &http.Client{Timeout: defaultRequestTimeout},
	}
}

func (h *HTTPSnapshots) Snapshot(ctx context.Context) (feed.Snapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.URL, nil)
	if err != nil {
		return feed.Snapshot{}, fmt.Errorf("snapshot request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	client := h.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return feed.Snapshot{}, fmt.Errorf("fetch snapshot: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return feed.Snapshot{}, fmt.Errorf("%w: %s", ErrUnexpectedStatus, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxSnapshotBytes))
	if err != nil {
		return feed.Snapshot{}, fmt.Errorf("read snapshot: %w", err)
	}
	return feed.DecodeSnapshot(body)
}
