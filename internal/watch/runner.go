package watch

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"subwatch/internal/eventbus"
	"subwatch/internal/transport"
	"subwatch/pkg/logx"
)

// Service coordinates subscription runs.
type Service struct {
	cfg      Config
	log      logx.Logger
	store    Baselines
	fetcher  Fetcher
	renderer Renderer
	adapter  transport.Adapter
	bus      eventbus.Bus
	limiter  *rate.Limiter

	mu  sync.RWMutex
	sub Subscription
}

func New(cfg Config, store Baselines, fetcher Fetcher, renderer Renderer, adapter transport.Adapter, bus eventbus.Bus, log logx.Logger) *Service {
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 5
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 10 * time.Second
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		cfg:      cfg,
		log:      log,
		store:    store,
		fetcher:  fetcher,
		renderer: renderer,
		adapter:  adapter,
		bus:      bus,
		limiter:  rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec),
	}
}

// Apply swaps the subscription list (config hot reload). The new list takes
// effect on the next run; an in-flight run keeps its snapshot.
func (s *Service) Apply(sub Subscription) {
	s.mu.Lock()
	s.sub = sub
	s.mu.Unlock()
}

// Run executes one full subscription pass. With bootstrap=true it only
// establishes baselines and sends nothing (first run after process start).
//
// Per-account pipelines run concurrently through a bounded group with an
// explicit join; a failed pipeline is logged and counted but never aborts
// the others.
func (s *Service) Run(ctx context.Context, bootstrap bool) Stats {
	s.mu.RLock()
	sub := s.sub
	s.mu.RUnlock()

	if !sub.Enabled {
		s.log.Debug("subscriptions disabled; skipping run")
		return Stats{}
	}

	posts := targets(sub.Groups, KindPost)
	lives := targets(sub.Groups, KindLive)

	started := time.Now()
	s.log.Info("subscription run started",
		logx.Bool("bootstrap", bootstrap),
		logx.Int("post_accounts", len(posts)), logx.Int("live_accounts", len(lives)))

	var (
		statsMu sync.Mutex
		stats   Stats
	)
	record := func(notified int, err error, kind Kind, account int64) {
		statsMu.Lock()
		stats.Sources++
		stats.Notified += notified
		if err != nil {
			stats.Failed++
		}
		statsMu.Unlock()
		if err != nil {
			s.log.Error("subscription check failed",
				logx.String("kind", string(kind)), logx.Int64("account", account), logx.Err(err))
		}
	}

	g := new(errgroup.Group)
	g.SetLimit(s.cfg.Concurrency)
	for account, chats := range posts {
		g.Go(func() error {
			n, err := s.checkPosts(ctx, account, chats, bootstrap)
			record(n, err, KindPost, account)
			return nil
		})
	}
	for account, chats := range lives {
		g.Go(func() error {
			n, err := s.checkLive(ctx, account, chats, bootstrap)
			record(n, err, KindLive, account)
			return nil
		})
	}
	_ = g.Wait()

	s.log.Info("subscription run completed",
		logx.Bool("bootstrap", bootstrap), logx.Duration("took", time.Since(started)),
		logx.Int("sources", stats.Sources), logx.Int("failed", stats.Failed),
		logx.Int("notified", stats.Notified))
	if s.bus != nil {
		s.bus.Publish(eventbus.Event{
			Type: "run.completed",
			Time: time.Now(),
			Data: RunEvent{Bootstrap: bootstrap, Stats: stats},
		})
	}
	return stats
}

// checkPosts runs the fetch -> diff -> build -> dispatch pipeline for one
// account's post subscription.
func (s *Service) checkPosts(ctx context.Context, account int64, chats []int64, bootstrap bool) (int, error) {
	snap, err := s.fetcher.LatestPost(ctx, account)
	if err != nil {
		// No snapshot: no comparison, no baseline change.
		return 0, err
	}

	res := s.diffPosts(ctx, account, snap, chats, bootstrap)
	if len(res.notify) == 0 {
		return 0, nil
	}

	// Built once per transition. Baselines are already committed, so a build
	// failure consumes the transition without delivering.
	nodes, err := s.buildPostNodes(ctx, snap)
	if err != nil {
		return 0, fmt.Errorf("build post payload: %w", err)
	}

	alert := fmt.Sprintf("%s posted a new update!", snap.Author)
	return s.dispatchPost(ctx, account, res.notify, alert, nodes), nil
}

// checkLive runs the pipeline for one account's live subscription.
func (s *Service) checkLive(ctx context.Context, account int64, chats []int64, bootstrap bool) (int, error) {
	snap, err := s.fetcher.Live(ctx, account)
	if err != nil {
		return 0, err
	}

	res := s.diffLive(ctx, account, snap, chats, bootstrap)
	if len(res.notify) == 0 {
		return 0, nil
	}

	roomURL := fmt.Sprintf(s.cfg.LivePageURL, snap.RoomID)
	text, err := buildLiveText(snap, roomURL)
	if err != nil {
		return 0, fmt.Errorf("build live payload: %w", err)
	}

	return s.dispatchText(ctx, KindLive, account, res.notify, text, &transport.SendOptions{}), nil
}

// targets collapses subscription groups into a distinct account -> chats map
// for one kind, so each account is fetched exactly once per run.
func targets(groups []Group, kind Kind) map[int64][]int64 {
	sets := map[int64]map[int64]struct{}{}
	for _, g := range groups {
		accounts := g.Posts
		if kind == KindLive {
			accounts = g.Lives
		}
		for _, acc := range accounts {
			set := sets[acc]
			if set == nil {
				set = map[int64]struct{}{}
				sets[acc] = set
			}
			for _, chat := range g.Chats {
				set[chat] = struct{}{}
			}
		}
	}

	out := make(map[int64][]int64, len(sets))
	for acc, set := range sets {
		chats := make([]int64, 0, len(set))
		for c := range set {
			chats = append(chats, c)
		}
		slices.Sort(chats)
		out[acc] = chats
	}
	return out
}
