package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/user/vidtube-go/internal/config"
)

func TestExtensionFor(t *testing.T) {
	tests := []struct {
		contentType string
		want        string
	}{
		{"image/jpeg", ".jpg"},
		{"image/PNG", ".png"},
		{"image/webp; charset=binary", ".webp"},
		{"image/gif", ".gif"},
		{"application/pdf", ".bin"},
		{"", ".bin"},
	}

	for _, tt := range tests {
		t.Run(tt.contentType, func(t *testing.T) {
			if got := ExtensionFor(tt.contentType); got != tt.want {
				t.Errorf("ExtensionFor(%q) = %q, want %q", tt.contentType, got, tt.want)
			}
		})
	}
}

func TestThumbnailKey(t *testing.T) {
	videoID := uuid.New()

	key := ThumbnailKey(videoID, "My First Vlog!", "image/png")
	prefix := "thumbnails/" + videoID.String() + "/my-first-vlog-"
	if !strings.HasPrefix(key, prefix) || !strings.HasSuffix(key, ".png") {
		t.Errorf("unexpected key %q", key)
	}

	if other := ThumbnailKey(videoID, "My First Vlog!", "image/png"); other == key {
		t.Error("expected a fresh key per call")
	}

	if key := ThumbnailKey(videoID, "  ", "image/jpeg"); !strings.Contains(key, "/thumbnail-") {
		t.Errorf("expected fallback name, got %q", key)
	}

	long := ThumbnailKey(videoID, strings.Repeat("word ", 40), "image/jpeg")
	name := long[strings.LastIndex(long, "/")+1:]
	if len(name) > 48+1+12+len(".jpg") {
		t.Errorf("name not truncated: %q", name)
	}
}

func TestNew_UnsupportedDriver(t *testing.T) {
	if _, err := New(context.Background(), &config.StorageConfig{Driver: "ftp"}); err == nil {
		t.Error("expected error for unsupported driver")
	}
}

func TestSupabase_URL(t *testing.T) {
	s := NewSupabase("https://proj.supabase.co/", "key", "thumbnails", "")
	want := "https://proj.supabase.co/storage/v1/object/public/thumbnails/a/b.jpg"
	if got := s.URL("a/b.jpg"); got != want {
		t.Errorf("URL() = %q, want %q", got, want)
	}

	s = NewSupabase("https://proj.supabase.co", "key", "thumbnails", "https://cdn.example.com/")
	if got := s.URL("/a/b.jpg"); got != "https://cdn.example.com/a/b.jpg" {
		t.Errorf("URL() with base = %q", got)
	}
}

// fakeSupabase records the storage API calls it receives
type fakeSupabase struct {
	mu       sync.Mutex
	uploads  map[string]string
	removals []string
}

func (f *fakeSupabase) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch {
	case r.Method == http.MethodPost && strings.HasPrefix(r.URL.Path, "/storage/v1/object/thumbnails/"):
		body, _ := io.ReadAll(r.Body)
		f.uploads[strings.TrimPrefix(r.URL.Path, "/storage/v1/object/thumbnails/")] = string(body)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"Key":"thumbnails/x"}`))
	case r.Method == http.MethodDelete && r.URL.Path == "/storage/v1/object/thumbnails":
		body, _ := io.ReadAll(r.Body)
		f.removals = append(f.removals, string(body))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[]`))
	default:
		http.Error(w, `{"error":"unexpected"}`, http.StatusNotFound)
	}
}

func TestSupabase_PutAndDelete(t *testing.T) {
	fake := &fakeSupabase{uploads: map[string]string{}}
	server := httptest.NewServer(fake)
	defer server.Close()

	s := NewSupabase(server.URL, "service-key", "thumbnails", "")
	ctx := context.Background()

	url, err := s.Put(ctx, "v/1.jpg", strings.NewReader("jpeg-bytes"), 10, "image/jpeg")
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if url != server.URL+"/storage/v1/object/public/thumbnails/v/1.jpg" {
		t.Errorf("unexpected url %q", url)
	}
	if fake.uploads["v/1.jpg"] != "jpeg-bytes" {
		t.Errorf("upload not received: %v", fake.uploads)
	}

	if err := s.Delete(ctx, "v/1.jpg"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if len(fake.removals) != 1 || !strings.Contains(fake.removals[0], "v/1.jpg") {
		t.Errorf("removal not received: %v", fake.removals)
	}
}

func TestSupabase_CancelledContext(t *testing.T) {
	s := NewSupabase("http://127.0.0.1:1", "key", "thumbnails", "")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := s.Put(ctx, "k", strings.NewReader(""), 0, "image/png"); err == nil {
		t.Error("expected error for cancelled context")
	}
	if err := s.Delete(ctx, "k"); err == nil {
		t.Error("expected error for cancelled context")
	}
}
