package crowdsafe

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	Ct "github.com/maroda/crowdsafe/types"
)

const (
	webTimeout = 10 * time.Second

	// a camera that misses this many snapshots in a row is considered gone
	maxSnapshotFailures = 5
)

type HTTPClient interface {
	Get(string) (*http.Response, error)
}

// Shared HTTP Client
var sharedHTTPClient = &http.Client{
	Timeout: webTimeout,
	Transport: &http.Transport{
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 2,
		IdleConnTimeout:     30 * time.Second,
	},
}

// SingleFetchWithClient handles the messy business of the HTTP connection
// and is testable with dependency injection, called by SingleFetch
func SingleFetchWithClient(url string, c HTTPClient) (int, []byte, error) {
	resp, err := c.Get(url)
	if err != nil {
		slog.Error("Fetch Error", slog.Any("Error", err))
		return 0, nil, err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Error("Close Error", slog.Any("Error", err))
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		slog.Error("Could not read body", slog.Any("Error", err))
		return 0, nil, err
	}

	return resp.StatusCode, body, nil
}

// SingleFetch returns the Response Code, raw byte stream body, and error
// This uses a Shared HTTP Client:
// - to reuse existing endpoint connections
// - to avoid stale connections that eat up OS FDs
func SingleFetch(url string) (int, []byte, error) {
	return SingleFetchWithClient(url, sharedHTTPClient)
}

// SnapshotSource polls a camera that serves still images over HTTP,
// one request per frame, paced to the configured rate
type SnapshotSource struct {
	URL      string
	Client   HTTPClient
	Interval time.Duration
	Width    int
	Height   int
	Rate     float64

	seq      uint64
	failures int
	last     time.Time
	pending  image.Image
}

// NewSnapshotSource fetches once so a dead camera fails at startup
func NewSnapshotSource(url string, c *Config, client HTTPClient) (*SnapshotSource, error) {
	rate := c.SourceFPS
	if rate <= 0 {
		rate = 1
	}
	ss := &SnapshotSource{
		URL:      url,
		Client:   client,
		Interval: time.Duration(float64(time.Second) / rate),
		Width:    c.FrameWidth,
		Height:   c.FrameHeight,
		Rate:     rate,
	}

	img, err := ss.fetch()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrSourceOpen, url, err)
	}
	ss.pending = img
	ss.last = time.Now()

	slog.Info("Opened snapshot camera", slog.String("url", url), slog.Float64("fps", rate))
	return ss, nil
}

func (ss *SnapshotSource) fetch() (image.Image, error) {
	url := UrlCat(ss.URL, queryJoin(ss.URL), "seq=", strconv.FormatUint(ss.seq, 10))
	status, body, err := SingleFetchWithClient(url, ss.Client)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("camera returned status %d", status)
	}
	img, _, err := image.Decode(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return img, nil
}

// Read waits out the rest of the interval, then fetches.
// Single failures are bad frames, a run of them is fatal.
func (ss *SnapshotSource) Read(ctx context.Context) (*Ct.Frame, error) {
	if ss.pending != nil {
		img := ss.pending
		ss.pending = nil
		ss.seq++
		return ToFrame(img, ss.seq, ss.Width, ss.Height), nil
	}

	if wait := ss.Interval - time.Since(ss.last); wait > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}
	ss.last = time.Now()
	ss.seq++

	img, err := ss.fetch()
	if err != nil {
		ss.failures++
		if ss.failures >= maxSnapshotFailures {
			return nil, fmt.Errorf("camera unreachable after %d attempts: %w", ss.failures, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrBadFrame, err)
	}
	ss.failures = 0
	return ToFrame(img, ss.seq, ss.Width, ss.Height), nil
}

func (ss *SnapshotSource) FPS() float64 { return ss.Rate }
func (ss *SnapshotSource) Close() error { return nil }

func queryJoin(url string) string {
	if strings.Contains(url, "?") {
		return "&"
	}
	return "?"
}
