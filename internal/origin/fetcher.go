package origin

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	platformerrors "github.com/jmgilman/go/errors"
)

const (
	DefaultTimeout  = 10 * time.Second
	DefaultMaxBytes = 5 << 20

	userAgent = "coinimage/1.0"
)

// Fetcher retrieves raw image bytes from the origin content host.
// It makes exactly one attempt per call.
type Fetcher struct {
	httpClient *http.Client
	maxBytes   int64
}

// New creates a fetcher bounded by timeout; zero values use the defaults.
func New(timeout time.Duration, maxBytes int64) *Fetcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}

	return &Fetcher{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		maxBytes: maxBytes,
	}
}

// Fetch downloads the image at address.
// Failures carry a platform error code: CodeTimeout, CodeNetwork,
// CodeUnavailable (non-2xx or oversized body) or CodeInvalidInput.
func (f *Fetcher) Fetch(ctx context.Context, address string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, address, nil)
	if err != nil {
		return nil, platformerrors.Wrap(err, platformerrors.CodeInvalidInput, "invalid origin address")
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "image/png,image/*;q=0.8")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, platformerrors.Newf(platformerrors.CodeUnavailable, "origin returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, classifyTransportError(err)
	}
	if int64(len(body)) > f.maxBytes {
		return nil, platformerrors.Newf(platformerrors.CodeUnavailable, "origin body exceeds %d bytes", f.maxBytes)
	}
	if len(body) == 0 {
		return nil, platformerrors.New(platformerrors.CodeUnavailable, "origin returned an empty body")
	}

	return body, nil
}

func classifyTransportError(err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return platformerrors.Wrap(err, platformerrors.CodeTimeout, "origin fetch timed out")
	}
	return platformerrors.Wrap(err, platformerrors.CodeNetwork, "origin unreachable")
}
