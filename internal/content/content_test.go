package content

import (
	"context"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrSnakeDoc/linkloom/internal/domain"
)

func TestClassifyStatusCodes(t *testing.T) {
	tests := []struct {
		code int
		want string
	}{
		{0, domain.LinkUnreachable},
		{200, domain.LinkAlive},
		{301, domain.LinkAlive},
		{403, domain.LinkAlive},
		{404, domain.LinkNotFound},
		{410, domain.LinkNotFound},
		{408, domain.LinkTimeout},
		{500, domain.LinkServerError},
		{503, domain.LinkServerError},
		{101, domain.LinkUnreachable},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("status %d", tt.code), func(t *testing.T) {
			if got := Classify(tt.code, nil); got != tt.want {
				t.Errorf("Classify(%d) = %q, want %q", tt.code, got, tt.want)
			}
		})
	}
}

func TestClassifyErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "deadline", err: fmt.Errorf("get: %w", context.DeadlineExceeded), want: domain.LinkTimeout},
		{name: "dns", err: &net.DNSError{Err: "no such host", Name: "nope.invalid"}, want: domain.LinkDNSError},
		{name: "certificate", err: fmt.Errorf("tls: %w", x509.UnknownAuthorityError{}), want: domain.LinkAlive},
		{name: "timeout text", err: errors.New("read: connection timed out"), want: domain.LinkTimeout},
		{name: "refused", err: errors.New("connect: connection refused"), want: domain.LinkUnreachable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(0, tt.err); got != tt.want {
				t.Errorf("Classify(%v) = %q, want %q", tt.err, got, tt.want)
			}
		})
	}
}

func TestFetchAndExtract(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != UserAgent {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><head><title>Hello Page</title><script>var x;</script></head>
<body><p>First paragraph.</p><p>Second paragraph.</p></body></html>`))
	}))
	defer ts.Close()

	f := NewFetcher(2*time.Second, 1<<20)
	res := f.FetchAndExtract(context.Background(), ts.URL)

	if res.Status != domain.LinkAlive {
		t.Fatalf("status = %q, want alive (err %q)", res.Status, res.Error)
	}
	if res.StatusCode != http.StatusOK {
		t.Errorf("status code = %d, want 200", res.StatusCode)
	}
	if !strings.Contains(res.Text, "First paragraph.") {
		t.Errorf("text = %q, want it to contain the body", res.Text)
	}
	if strings.Contains(res.Text, "var x") {
		t.Errorf("text should not contain script source: %q", res.Text)
	}
	if res.Title == "" {
		t.Errorf("title should be extracted")
	}
}

func TestFetchAndExtractNotFoundSkipsExtraction(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone fishing", http.StatusNotFound)
	}))
	defer ts.Close()

	res := NewFetcher(time.Second, 1024).FetchAndExtract(context.Background(), ts.URL)
	if res.Status != domain.LinkNotFound {
		t.Errorf("status = %q, want not_found", res.Status)
	}
	if res.Text != "" {
		t.Errorf("text = %q, want empty", res.Text)
	}
}

func TestFetchRetriesTransientTimeout(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			time.Sleep(300 * time.Millisecond)
		}
		_, _ = w.Write([]byte("<html><body>ok</body></html>"))
	}))
	defer ts.Close()

	res := NewFetcher(100*time.Millisecond, 1024).FetchAndExtract(context.Background(), ts.URL)
	if res.Status != domain.LinkAlive {
		t.Errorf("status = %q, want alive after retry (err %q)", res.Status, res.Error)
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Errorf("calls = %d, want 2", got)
	}
}

func TestCheckLinkFallsBackToGet(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	res := NewFetcher(time.Second, 1024).CheckLink(context.Background(), ts.URL)
	if res.Status != domain.LinkAlive || res.StatusCode != http.StatusOK {
		t.Errorf("CheckLink() = %+v, want alive 200", res)
	}
	if res.FinalURL == "" {
		t.Errorf("final url should be recorded")
	}
}

func TestCheckLinkServerErrorRetried(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer ts.Close()

	res := NewFetcher(time.Second, 1024).CheckLink(context.Background(), ts.URL)
	if res.Status != domain.LinkServerError {
		t.Errorf("status = %q, want server_error", res.Status)
	}
	// HEAD + GET per attempt, two attempts.
	if got := atomic.LoadInt32(&calls); got != 4 {
		t.Errorf("calls = %d, want 4", got)
	}
}

func TestTruncateRunes(t *testing.T) {
	if got := truncateRunes("héllo", 2); got != "hé" {
		t.Errorf("truncateRunes() = %q", got)
	}
	if got := truncateRunes("abc", 10); got != "abc" {
		t.Errorf("truncateRunes() = %q", got)
	}
}

func TestHash(t *testing.T) {
	if Hash("a") == Hash("b") || len(Hash("a")) != 64 {
		t.Errorf("Hash() should be a distinct hex sha256")
	}
}
