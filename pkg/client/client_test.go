package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
)

type fakeServer struct {
	mu        sync.Mutex
	video     Video
	getOnes   int32
	failNext  bool
	lastAuth  string
	mutations []string
}

func (f *fakeServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastAuth = r.Header.Get("Authorization")

	writeError := func(status int, code string) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error": map[string]string{"code": code, "message": code},
		})
	}

	switch r.URL.Path {
	case "/api/rpc/videos.getOne":
		atomic.AddInt32(&f.getOnes, 1)
		json.NewEncoder(w).Encode(f.video)
	case "/api/rpc/videoReactions.like", "/api/rpc/subscriptions.subscribe":
		f.mutations = append(f.mutations, r.URL.Path)
		if f.failNext {
			f.failNext = false
			writeError(http.StatusInternalServerError, "INTERNAL_SERVER_ERROR")
			return
		}
		w.Write([]byte(`{}`))
	case "/api/rpc/studio.getMany":
		writeError(http.StatusUnauthorized, CodeUnauthorized)
	default:
		http.NotFound(w, r)
	}
}

func setupClient(t *testing.T) (*Client, *fakeServer, *int32) {
	t.Helper()
	fake := &fakeServer{video: Video{
		ID:        uuid.New(),
		Title:     "clip",
		LikeCount: 3,
		User:      Creator{Owner: Owner{ID: uuid.New()}, SubscriberCount: 5},
	}}
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	var signIns int32
	c := New(Config{
		BaseURL:        server.URL,
		Token:          func(context.Context) (string, error) { return "session-token", nil },
		OnUnauthorized: func() { atomic.AddInt32(&signIns, 1) },
	})
	return c, fake, &signIns
}

func TestClient_GetVideoIsCached(t *testing.T) {
	c, fake, _ := setupClient(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		video, err := c.GetVideo(ctx, fake.video.ID)
		if err != nil {
			t.Fatalf("GetVideo() error = %v", err)
		}
		if video.Title != "clip" {
			t.Errorf("title = %q", video.Title)
		}
	}
	if got := atomic.LoadInt32(&fake.getOnes); got != 1 {
		t.Errorf("server saw %d getOne calls, want 1", got)
	}
	fake.mu.Lock()
	defer fake.mu.Unlock()
	if fake.lastAuth != "Bearer session-token" {
		t.Errorf("Authorization = %q", fake.lastAuth)
	}
}

func TestClient_ReactToVideo(t *testing.T) {
	c, fake, _ := setupClient(t)
	ctx := context.Background()
	id := fake.video.ID

	if _, err := c.GetVideo(ctx, id); err != nil {
		t.Fatalf("GetVideo() error = %v", err)
	}

	fake.mu.Lock()
	fake.failNext = true
	fake.mu.Unlock()
	err := c.ReactToVideo(ctx, id, ReactionLike)
	var rpcErr *Error
	if !errors.As(err, &rpcErr) || rpcErr.Status != http.StatusInternalServerError {
		t.Fatalf("ReactToVideo() error = %v, want a 500 RPC error", err)
	}
	cached, _ := c.Cache().Get(VideoKey(id))
	if v := cached.(*Video); v.LikeCount != 3 || v.ViewerReaction != nil {
		t.Errorf("rollback left %+v", v)
	}

	if err := c.ReactToVideo(ctx, id, ReactionLike); err != nil {
		t.Fatalf("ReactToVideo() error = %v", err)
	}
	cached, _ = c.Cache().Get(VideoKey(id))
	if v := cached.(*Video); v.LikeCount != 4 || v.ViewerReaction == nil || *v.ViewerReaction != ReactionLike {
		t.Errorf("optimistic like left %+v", v)
	}

	// invalidated after the call, so the next read goes to the server
	if _, err := c.GetVideo(ctx, id); err != nil {
		t.Fatalf("GetVideo() error = %v", err)
	}
	if got := atomic.LoadInt32(&fake.getOnes); got != 2 {
		t.Errorf("server saw %d getOne calls, want 2", got)
	}
}

func TestClient_SetSubscribed(t *testing.T) {
	c, fake, _ := setupClient(t)
	ctx := context.Background()
	id := fake.video.ID

	if _, err := c.GetVideo(ctx, id); err != nil {
		t.Fatalf("GetVideo() error = %v", err)
	}

	if err := c.SetSubscribed(ctx, id, fake.video.User.ID, true); err != nil {
		t.Fatalf("SetSubscribed() error = %v", err)
	}
	cached, _ := c.Cache().Get(VideoKey(id))
	during := cached.(*Video)
	if !during.User.IsSubscribed || during.User.SubscriberCount != 6 {
		t.Errorf("optimistic subscribe left %+v", during.User)
	}

	fake.mu.Lock()
	defer fake.mu.Unlock()
	if len(fake.mutations) != 1 || fake.mutations[0] != "/api/rpc/subscriptions.subscribe" {
		t.Errorf("mutations = %v", fake.mutations)
	}
}

func TestClient_UnauthorizedHook(t *testing.T) {
	c, _, signIns := setupClient(t)

	err := c.query(context.Background(), "studio.getMany", nil, nil)
	var rpcErr *Error
	if !errors.As(err, &rpcErr) || rpcErr.Code != CodeUnauthorized {
		t.Fatalf("error = %v, want UNAUTHORIZED", err)
	}
	if got := atomic.LoadInt32(signIns); got != 1 {
		t.Errorf("sign-in hook ran %d times, want 1", got)
	}
}
