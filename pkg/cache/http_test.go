package cache

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestETag(t *testing.T) {
	if got := ETag(nil); got != "" {
		t.Errorf("ETag(nil) = %q, want empty", got)
	}
	if got := ETag(&CacheEntry{Key: "abc"}); got != `"abc"` {
		t.Errorf("ETag() = %q, want %q", got, `"abc"`)
	}
}

func TestIsNotModified(t *testing.T) {
	entry := &CacheEntry{Key: "abc"}

	tests := []struct {
		name        string
		ifNoneMatch string
		want        bool
	}{
		{name: "no header", ifNoneMatch: "", want: false},
		{name: "matching etag", ifNoneMatch: `"abc"`, want: true},
		{name: "weak matching etag", ifNoneMatch: `W/"abc"`, want: true},
		{name: "list with match", ifNoneMatch: `"xyz", "abc"`, want: true},
		{name: "wildcard", ifNoneMatch: "*", want: true},
		{name: "different etag", ifNoneMatch: `"xyz"`, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/polyfill.js", nil)
			if tt.ifNoneMatch != "" {
				req.Header.Set("If-None-Match", tt.ifNoneMatch)
			}
			if got := IsNotModified(req, entry); got != tt.want {
				t.Errorf("IsNotModified() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWriteEntry(t *testing.T) {
	entry := &CacheEntry{
		Key:      "abc",
		Bundle:   Bundle{Script: "!function(){}();"},
		CachedAt: time.Now(),
	}

	t.Run("full response", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/polyfill.js", nil)
		rec := httptest.NewRecorder()

		if err := WriteEntry(rec, req, entry, time.Hour); err != nil {
			t.Fatalf("WriteEntry failed: %v", err)
		}
		if rec.Code != http.StatusOK {
			t.Errorf("status = %d, want 200", rec.Code)
		}
		if rec.Body.String() != entry.Bundle.Script {
			t.Errorf("body = %q", rec.Body.String())
		}
		if rec.Header().Get("ETag") != `"abc"` {
			t.Errorf("ETag = %q", rec.Header().Get("ETag"))
		}
		if rec.Header().Get("Cache-Control") != "public, max-age=3600" {
			t.Errorf("Cache-Control = %q", rec.Header().Get("Cache-Control"))
		}
		if rec.Header().Get("Content-Type") != ContentType {
			t.Errorf("Content-Type = %q", rec.Header().Get("Content-Type"))
		}
	})

	t.Run("conditional request", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/polyfill.js", nil)
		req.Header.Set("If-None-Match", `"abc"`)
		rec := httptest.NewRecorder()

		if err := WriteEntry(rec, req, entry, 0); err != nil {
			t.Fatalf("WriteEntry failed: %v", err)
		}
		if rec.Code != http.StatusNotModified {
			t.Errorf("status = %d, want 304", rec.Code)
		}
		if rec.Body.Len() != 0 {
			t.Errorf("304 must not carry a body, got %q", rec.Body.String())
		}
	})

	t.Run("nil entry", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/polyfill.js", nil)
		if err := WriteEntry(httptest.NewRecorder(), req, nil, 0); err == nil {
			t.Error("expected error for nil entry")
		}
	})
}
