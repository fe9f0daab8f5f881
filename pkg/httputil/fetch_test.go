package httputil

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestIsURL(t *testing.T) {
	tests := []struct {
		name string
		path string
		want bool
	}{
		{"http", "http://example.com/course.json", true},
		{"https", "https://example.com/course.json", true},
		{"localFile", "course.json", false},
		{"absolutePath", "/data/course.json", false},
		{"ftp", "ftp://example.com/course.json", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsURL(tt.path); got != tt.want {
				t.Errorf("IsURL(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

func TestFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"title":"Demo"}`))
	}))
	defer srv.Close()

	data, err := Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Fetch() failed: %v", err)
	}
	if got, want := string(data), `{"title":"Demo"}`; got != want {
		t.Errorf("got body %q, want %q", got, want)
	}
}

func TestFetch_NotFound(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	_, err := Fetch(context.Background(), srv.URL)
	if err == nil {
		t.Fatal("expected error for 404 response")
	}
	if !strings.Contains(err.Error(), "status 404") {
		t.Errorf("got error %q, want status 404 mention", err)
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("got %d requests, want 1 (4xx must not retry)", n)
	}
}

func TestFetch_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	client := &http.Client{Timeout: time.Second}
	var data []byte
	err := Retry(context.Background(), 3, time.Millisecond, func() error {
		var ferr error
		data, ferr = fetchOnce(context.Background(), client, srv.URL)
		return ferr
	})
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if string(data) != "ok" {
		t.Errorf("got body %q, want %q", data, "ok")
	}
	if n := calls.Load(); n != 2 {
		t.Errorf("got %d requests, want 2", n)
	}
}

func TestRetry_StopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Retry(ctx, 3, 50*time.Millisecond, func() error {
		return &RetryableError{Err: context.DeadlineExceeded}
	})
	if err != context.Canceled {
		t.Errorf("got error %v, want context.Canceled", err)
	}
}

func TestRetry_NonRetryableFailsFast(t *testing.T) {
	var calls int
	err := Retry(context.Background(), 3, time.Millisecond, func() error {
		calls++
		return context.DeadlineExceeded
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("got %d calls, want 1", calls)
	}
}
