package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/yegors/arrival-board/pkg/logger"
)

func newTestClient(timeout time.Duration) *Client {
	return NewClient(Config{
		ConnectTimeout: time.Second,
		RequestTimeout: timeout,
		UserAgent:      "arrival-board-test",
	}, logger.NewNop())
}

func TestGet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			if r.Header.Get("User-Agent") != "arrival-board-test" {
				t.Errorf("missing user agent, got %q", r.Header.Get("User-Agent"))
			}
			w.Write([]byte(`{"ok":true}`))
		case "/missing":
			http.Error(w, "nope", http.StatusNotFound)
		case "/boom":
			http.Error(w, "boom", http.StatusBadGateway)
		}
	}))
	defer srv.Close()

	c := newTestClient(2 * time.Second)

	body, err := c.Get(context.Background(), srv.URL+"/ok")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(body) != `{"ok":true}` {
		t.Errorf("unexpected body %q", body)
	}

	for _, path := range []string{"/missing", "/boom"} {
		body, err := c.Get(context.Background(), srv.URL+path)
		if !errors.Is(err, ErrStatus) {
			t.Errorf("%s: expected ErrStatus, got %v", path, err)
		}
		if body != nil {
			t.Errorf("%s: expected no bytes on failure, got %q", path, body)
		}
	}
}

func TestGetBodyLimit(t *testing.T) {
	tests := []struct {
		name    string
		size    int64
		wantErr bool
	}{
		{name: "at limit", size: maxBodyBytes},
		{name: "over limit", size: maxBodyBytes + 100, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(strings.Repeat("x", int(tt.size))))
			}))
			defer srv.Close()

			body, err := newTestClient(5*time.Second).Get(context.Background(), srv.URL)
			if tt.wantErr {
				if !errors.Is(err, ErrBodyTooLarge) {
					t.Errorf("expected ErrBodyTooLarge, got %v", err)
				}
				if body != nil {
					t.Errorf("expected no bytes, got %d", len(body))
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if int64(len(body)) != tt.size {
				t.Errorf("expected %d bytes, got %d", tt.size, len(body))
			}
		})
	}
}

func TestGetTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := newTestClient(100 * time.Millisecond)
	start := time.Now()
	body, err := c.Get(context.Background(), srv.URL)
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if body != nil {
		t.Errorf("expected no bytes, got %q", body)
	}
	if time.Since(start) > 2*time.Second {
		t.Errorf("timeout not enforced, took %v", time.Since(start))
	}
}

func TestGetUnreachable(t *testing.T) {
	c := newTestClient(time.Second)
	if _, err := c.Get(context.Background(), "http://127.0.0.1:1/"); err == nil {
		t.Fatal("expected connection error")
	}
}

func TestRedact(t *testing.T) {
	got := redact("https://bustime.mta.info/api/siri/stop-monitoring.json?key=secret&MonitoringRef=1")
	if strings.Contains(got, "secret") {
		t.Errorf("api key leaked: %s", got)
	}
	if !strings.Contains(got, "MonitoringRef=1") {
		t.Errorf("other parameters should survive: %s", got)
	}
}
