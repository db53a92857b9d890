package scheduler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPImageFetcher fetches image bytes from the object-storage URLs
// stored on a Post. No storage SDK appears anywhere in the example
// pack, so this is a thin net/http client rather than a vendor-specific
// bucket client — cloudImageUrls are already public/pre-signed URLs by
// the time they reach this service.
type HTTPImageFetcher struct {
	client *http.Client
}

func NewHTTPImageFetcher() *HTTPImageFetcher {
	return &HTTPImageFetcher{client: &http.Client{Timeout: 15 * time.Second}}
}

func (f *HTTPImageFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("scheduler: image fetch returned status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
