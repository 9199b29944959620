package watch

import (
	"context"
	"time"

	"subwatch/internal/fetch"
)

// Kind distinguishes the two independent subscription dimensions.
type Kind string

const (
	KindPost Kind = "post"
	KindLive Kind = "live"
)

// Baselines is the persisted dedup ledger consumed by the diff engine.
// Implemented by internal/storage.
type Baselines interface {
	PostBaseline(ctx context.Context, chat, account int64) (ts time.Time, ok bool, err error)
	SetPostBaseline(ctx context.Context, chat, account int64, ts time.Time) error

	LiveBaseline(ctx context.Context, chat, account int64) (st fetch.Status, ok bool, err error)
	SetLiveBaseline(ctx context.Context, chat, account int64, st fetch.Status) error
}

// Fetcher retrieves normalized snapshots for one account.
// Implemented by internal/fetch.
type Fetcher interface {
	LatestPost(ctx context.Context, account int64) (*fetch.PostSnapshot, error)
	Live(ctx context.Context, account int64) (*fetch.LiveSnapshot, error)
}

// Renderer turns a page region into an image reference.
// Implemented by internal/render.
type Renderer interface {
	RenderPage(ctx context.Context, url, selector string) (string, error)
}

// Subscription is the read-only subscription list for one run.
// Enabled is the feature switch for the whole engine.
type Subscription struct {
	Enabled bool
	Groups  []Group
}

// Group subscribes a set of chats to tracked accounts, per kind.
type Group struct {
	Chats []int64
	Posts []int64
	Lives []int64
}

type Config struct {
	// PostPageURL and LivePageURL are printf templates producing public page
	// URLs from a post id / room id.
	PostPageURL string
	LivePageURL string
	// Selector picks the page element rendered into the post image.
	Selector string

	RatePerSec  int
	SendTimeout time.Duration
	Concurrency int
}

// Stats summarizes one run.
type Stats struct {
	Sources  int // pipelines attempted (distinct account x kind)
	Failed   int // pipelines that errored (fetch or payload build)
	Notified int // chats that received a complete notification
}

// RunEvent is published on the bus as "run.completed".
type RunEvent struct {
	Bootstrap bool  `json:"bootstrap"`
	Stats     Stats `json:"stats"`
}

// NotifyEvent is published as "notify.sent" / "notify.failed".
type NotifyEvent struct {
	Kind    Kind   `json:"kind"`
	Account int64  `json:"account"`
	Chat    int64  `json:"chat"`
	Error   string `json:"error,omitempty"`
}
