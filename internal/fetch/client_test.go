package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"subwatch/pkg/logx"
)

func testLogger() logx.Logger { return logx.Nop() }

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(Config{BaseURL: srv.URL, Attempts: 1}, testLogger())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func TestLatestPostParsesSnapshot(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/post/latest" {
			http.NotFound(w, r)
			return
		}
		if got := r.URL.Query().Get("uid"); got != "42" {
			t.Errorf("uid = %s, want 42", got)
		}
		_, _ = w.Write([]byte(`{
			"code": 0,
			"data": {
				"uname": "alice",
				"post_id": 987,
				"publish_ts": 1700000000,
				"detail": {"modules": {"module_dynamic": {"desc": {"text": "hi"}}}}
			}
		}`))
	})

	snap, err := c.LatestPost(context.Background(), 42)
	if err != nil {
		t.Fatalf("LatestPost: %v", err)
	}
	if snap.ID != 987 {
		t.Fatalf("ID = %d, want 987", snap.ID)
	}
	if snap.Author != "alice" {
		t.Fatalf("Author = %s, want alice", snap.Author)
	}
	if !snap.PublishedAt.Equal(time.Unix(1700000000, 0)) {
		t.Fatalf("PublishedAt = %v", snap.PublishedAt)
	}
	if got := snap.Detail.Get("modules.module_dynamic.desc.text").String(); got != "hi" {
		t.Fatalf("detail text = %q", got)
	}
}

func TestLatestPostNoVisiblePost(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"code": 0, "data": {"uname": "alice", "post_id": 0, "publish_ts": 0}}`))
	})

	_, err := c.LatestPost(context.Background(), 42)
	if err == nil {
		t.Fatal("expected error for absent post")
	}
}

func TestAPIErrorCodeIsNotRetried(t *testing.T) {
	t.Parallel()
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		_, _ = w.Write([]byte(`{"code": -404, "message": "no such user"}`))
	}))
	t.Cleanup(srv.Close)

	c, err := NewClient(Config{BaseURL: srv.URL, Attempts: 5}, testLogger())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if _, err := c.Live(context.Background(), 42); err == nil {
		t.Fatal("expected api error")
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1 (api errors must not be retried)", calls)
	}
}

func TestLiveParsesSnapshot(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/user/live" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{
			"code": 0,
			"data": {"uname": "bob", "live_status": 1, "cover": "c.png", "title": "night", "room_id": 777}
		}`))
	})

	snap, err := c.Live(context.Background(), 42)
	if err != nil {
		t.Fatalf("Live: %v", err)
	}
	if snap.Status != StatusOnline {
		t.Fatalf("Status = %v, want online", snap.Status)
	}
	if snap.RoomID != 777 || snap.Author != "bob" || snap.Cover != "c.png" {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
}

func TestUpstreamErrorStatus(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	if _, err := c.Live(context.Background(), 42); err == nil {
		t.Fatal("expected error for 502")
	}
}

func TestStatusString(t *testing.T) {
	t.Parallel()
	tests := []struct {
		st   Status
		want string
	}{
		{StatusOffline, "offline"},
		{StatusOnline, "online"},
		{StatusLooping, "looping"},
		{Status(9), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.st.String(); got != tt.want {
			t.Fatalf("Status(%d).String() = %q, want %q", tt.st, got, tt.want)
		}
	}
}
