package framecache

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// HTTPFetcher retrieves instance buffers from a binary HTTP endpoint.
type HTTPFetcher struct {
	// URLTemplate is a printf template with a single %s for the instance id,
	// e.g. "http://pacs.local/instances/%s/file".
	URLTemplate string
	Client      *http.Client
}

// NewHTTPFetcher creates a fetcher with its own client and request timeout.
func NewHTTPFetcher(urlTemplate string, timeout time.Duration) *HTTPFetcher {
	return &HTTPFetcher{
		URLTemplate: urlTemplate,
		Client:      &http.Client{Timeout: timeout},
	}
}

// Fetch downloads the buffer for id. Any non-2xx status is an error.
func (f *HTTPFetcher) Fetch(ctx context.Context, id string) ([]byte, error) {
	if !strings.Contains(f.URLTemplate, "%s") {
		return nil, fmt.Errorf("url template %q has no %%s placeholder", f.URLTemplate)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf(f.URLTemplate, url.PathEscape(id)), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/dicom, application/octet-stream")

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}
	return data, nil
}
