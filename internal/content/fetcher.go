// Package content fetches bookmarked pages, extracts their readable text
// and classifies link liveness.
package content

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/MrSnakeDoc/linkloom/internal/domain"
	"github.com/MrSnakeDoc/linkloom/internal/utils"
)

const (
	UserAgent = "LinkLoomBot/1.0 (+https://linkloom.local)"
	accept    = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"

	// MaxTextRunes caps extracted text.
	MaxTextRunes = 200_000

	attempts = 2
)

// Extracted is the outcome of fetching and extracting one URL.
type Extracted struct {
	Title      string
	Text       string
	Status     string
	StatusCode int
	FinalURL   string
	Error      string
}

// LinkResult is the outcome of one liveness check.
type LinkResult struct {
	StatusCode int
	FinalURL   string
	Status     string
	Latency    time.Duration
	Error      string
}

// Fetcher performs outbound HTTP for content extraction and link checks.
// It is safe for concurrent use.
type Fetcher struct {
	client   *http.Client
	timeout  time.Duration
	maxBytes int64
}

// NewFetcher creates a fetcher with a per-attempt timeout and a body cap.
// Zero values pick the defaults.
func NewFetcher(timeout time.Duration, maxBytes int64) *Fetcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if maxBytes <= 0 {
		maxBytes = 2_500_000
	}
	return &Fetcher{
		client: &http.Client{
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout:   timeout,
					KeepAlive: 0,
				}).DialContext,
				TLSHandshakeTimeout: timeout,
				TLSClientConfig: &tls.Config{
					MinVersion: tls.VersionTLS12,
				},
				DisableKeepAlives: true,
			},
		},
		timeout:  timeout,
		maxBytes: maxBytes,
	}
}

// attemptTimeout grows by half the base timeout per retry.
func (f *Fetcher) attemptTimeout(attempt int) time.Duration {
	return time.Duration(float64(f.timeout) * (1 + 0.5*float64(attempt-1)))
}

// FetchAndExtract downloads url and extracts title and text when the page
// is alive. Transient failures are retried once with a longer timeout.
func (f *Fetcher) FetchAndExtract(ctx context.Context, url string) Extracted {
	for attempt := 1; attempt <= attempts; attempt++ {
		body, finalURL, code, err := f.fetchHTML(ctx, url, f.attemptTimeout(attempt))
		if err != nil {
			status := Classify(0, err)
			if attempt < attempts && domain.IsTransient(status) && ctx.Err() == nil {
				continue
			}
			return Extracted{Status: status, Error: errorText(err)}
		}

		res := Extracted{Status: Classify(code, nil), StatusCode: code, FinalURL: finalURL}
		if res.Status == domain.LinkAlive {
			res.Title, res.Text = ExtractText(body, finalURL)
		}
		return res
	}
	return Extracted{Status: domain.LinkUnreachable, Error: "Unable to fetch content."}
}

func (f *Fetcher) fetchHTML(ctx context.Context, url string, timeout time.Duration) (string, string, int, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := f.do(ctx, http.MethodGet, url)
	if err != nil {
		return "", "", 0, err
	}
	defer utils.Close(resp.Body)

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes))
	if err != nil {
		return "", "", 0, fmt.Errorf("read body: %w", err)
	}
	return strings.ToValidUTF8(string(data), ""), resp.Request.URL.String(), resp.StatusCode, nil
}

func (f *Fetcher) do(ctx context.Context, method, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", accept)
	return f.client.Do(req)
}

// CheckLink probes url with HEAD, falling back to GET when HEAD fails or
// answers with an error status. A transient result is retried once.
func (f *Fetcher) CheckLink(ctx context.Context, url string) LinkResult {
	started := time.Now()
	var res LinkResult

	for attempt := 1; attempt <= attempts; attempt++ {
		res = f.checkOnce(ctx, url, f.attemptTimeout(attempt))
		if res.Status == domain.LinkAlive {
			break
		}
		if attempt < attempts && domain.IsTransient(res.Status) && ctx.Err() == nil {
			continue
		}
		break
	}

	res.Latency = time.Since(started)
	return res
}

func (f *Fetcher) checkOnce(ctx context.Context, url string, timeout time.Duration) LinkResult {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	code, finalURL, headErr := f.probe(ctx, http.MethodHead, url)
	if headErr == nil && code < http.StatusBadRequest {
		return LinkResult{StatusCode: code, FinalURL: finalURL, Status: Classify(code, nil)}
	}

	code, finalURL, getErr := f.probe(ctx, http.MethodGet, url)
	if getErr != nil {
		return LinkResult{Status: Classify(0, getErr), Error: errorText(getErr)}
	}
	return LinkResult{StatusCode: code, FinalURL: finalURL, Status: Classify(code, nil)}
}

func (f *Fetcher) probe(ctx context.Context, method, url string) (int, string, error) {
	resp, err := f.do(ctx, method, url)
	if err != nil {
		return 0, "", err
	}
	utils.Close(resp.Body)
	return resp.StatusCode, resp.Request.URL.String(), nil
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	if msg := strings.TrimSpace(err.Error()); msg != "" {
		return msg
	}
	return fmt.Sprintf("%T", err)
}
