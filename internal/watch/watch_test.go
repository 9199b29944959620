package watch

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/tidwall/gjson"

	"subwatch/internal/fetch"
	"subwatch/internal/transport"
	"subwatch/pkg/logx"
)

// ---- in-memory fakes ----

type baselineKey struct{ chat, account int64 }

type memStore struct {
	mu        sync.Mutex
	posts     map[baselineKey]time.Time
	lives     map[baselineKey]fetch.Status
	failWrite bool
}

func newMemStore() *memStore {
	return &memStore{
		posts: map[baselineKey]time.Time{},
		lives: map[baselineKey]fetch.Status{},
	}
}

func (m *memStore) PostBaseline(_ context.Context, chat, account int64) (time.Time, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ts, ok := m.posts[baselineKey{chat, account}]
	return ts, ok, nil
}

func (m *memStore) SetPostBaseline(_ context.Context, chat, account int64, ts time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWrite {
		return errors.New("disk full")
	}
	m.posts[baselineKey{chat, account}] = ts
	return nil
}

func (m *memStore) LiveBaseline(_ context.Context, chat, account int64) (fetch.Status, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.lives[baselineKey{chat, account}]
	return st, ok, nil
}

func (m *memStore) SetLiveBaseline(_ context.Context, chat, account int64, st fetch.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWrite {
		return errors.New("disk full")
	}
	m.lives[baselineKey{chat, account}] = st
	return nil
}

func (m *memStore) postBaseline(chat, account int64) (time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ts, ok := m.posts[baselineKey{chat, account}]
	return ts, ok
}

func (m *memStore) liveBaseline(chat, account int64) (fetch.Status, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.lives[baselineKey{chat, account}]
	return st, ok
}

type fakeFetcher struct {
	mu       sync.Mutex
	posts    map[int64]*fetch.PostSnapshot
	lives    map[int64]*fetch.LiveSnapshot
	postErrs map[int64]error
	liveErrs map[int64]error
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		posts:    map[int64]*fetch.PostSnapshot{},
		lives:    map[int64]*fetch.LiveSnapshot{},
		postErrs: map[int64]error{},
		liveErrs: map[int64]error{},
	}
}

func (f *fakeFetcher) LatestPost(_ context.Context, account int64) (*fetch.PostSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.postErrs[account]; err != nil {
		return nil, err
	}
	snap, ok := f.posts[account]
	if !ok {
		return nil, fetch.ErrNoPost
	}
	return snap, nil
}

func (f *fakeFetcher) Live(_ context.Context, account int64) (*fetch.LiveSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.liveErrs[account]; err != nil {
		return nil, err
	}
	snap, ok := f.lives[account]
	if !ok {
		return nil, errors.New("no such room")
	}
	return snap, nil
}

type fakeRenderer struct {
	err   error
	calls int
}

func (r *fakeRenderer) RenderPage(_ context.Context, _, _ string) (string, error) {
	r.calls++
	if r.err != nil {
		return "", r.err
	}
	return "https://img.test/rendered.png", nil
}

type sentCall struct {
	chat  int64
	text  string
	nodes []transport.Node
}

type fakeAdapter struct {
	mu        sync.Mutex
	texts     []sentCall
	nodes     []sentCall
	failChats map[int64]bool
}

func newFakeAdapter() *fakeAdapter {
	return &fakeAdapter{failChats: map[int64]bool{}}
}

func (a *fakeAdapter) SendText(_ context.Context, to transport.ChatTarget, text string, _ *transport.SendOptions) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.failChats[to.ChatID] {
		return errors.New("transport down")
	}
	a.texts = append(a.texts, sentCall{chat: to.ChatID, text: text})
	return nil
}

func (a *fakeAdapter) SendNodes(_ context.Context, to transport.ChatTarget, nodes []transport.Node) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.failChats[to.ChatID] {
		return errors.New("transport down")
	}
	a.nodes = append(a.nodes, sentCall{chat: to.ChatID, nodes: nodes})
	return nil
}

func (a *fakeAdapter) textChats() []int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]int64, 0, len(a.texts))
	for _, c := range a.texts {
		out = append(out, c.chat)
	}
	return out
}

// ---- helpers ----

func newTestService(store Baselines, fetcher Fetcher, renderer Renderer, adapter transport.Adapter) *Service {
	return New(Config{
		PostPageURL: "https://posts.test/%d",
		LivePageURL: "https://live.test/%d",
		Selector:    "#main",
		RatePerSec:  1000,
		SendTimeout: time.Second,
	}, store, fetcher, renderer, adapter, nil, logx.Nop())
}

func postSnap(author string, id uint64, ts time.Time, detail string) *fetch.PostSnapshot {
	return &fetch.PostSnapshot{
		ID:          id,
		Author:      author,
		PublishedAt: ts,
		Detail:      gjson.Parse(detail),
	}
}

const detailWithEverything = `{
	"modules": {
		"module_dynamic": {
			"desc": {"text": "hello from the test account"},
			"major": {"draw": {"items": [{"src": "https://img.test/a.png"}, {"src": "https://img.test/b.png"}]}}
		}
	}
}`
