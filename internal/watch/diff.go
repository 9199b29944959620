package watch

import (
	"context"

	"subwatch/internal/fetch"
	"subwatch/pkg/logx"
)

type diffResult struct {
	// stale chats had their baseline advanced this tick.
	stale []int64
	// notify is the subset of stale that must receive a notification.
	notify []int64
}

// diffPosts partitions chats by post-timestamp staleness and advances the
// baseline for every stale chat. A chat with no baseline row is always stale.
// Baseline advancement is unconditional; only notification is gated by
// bootstrap.
func (s *Service) diffPosts(ctx context.Context, account int64, snap *fetch.PostSnapshot, chats []int64, bootstrap bool) diffResult {
	var res diffResult
	for _, chat := range chats {
		base, ok, err := s.store.PostBaseline(ctx, chat, account)
		if err != nil {
			s.log.Error("post baseline read failed",
				logx.Int64("chat", chat), logx.Int64("account", account), logx.Err(err))
			continue
		}
		if ok && !snap.PublishedAt.After(base) {
			continue
		}
		res.stale = append(res.stale, chat)
		if err := s.store.SetPostBaseline(ctx, chat, account, snap.PublishedAt); err != nil {
			// The chat stays stale; the next tick re-detects it.
			s.log.Error("post baseline write failed",
				logx.Int64("chat", chat), logx.Int64("account", account), logx.Err(err))
		}
	}
	if bootstrap {
		return res
	}
	res.notify = res.stale
	return res
}

// diffLive partitions chats by live-status staleness. Every stale chat's
// baseline advances, but only an Online transition produces notifications:
// chats care about "went live", not every status churn.
func (s *Service) diffLive(ctx context.Context, account int64, snap *fetch.LiveSnapshot, chats []int64, bootstrap bool) diffResult {
	var res diffResult
	for _, chat := range chats {
		base, ok, err := s.store.LiveBaseline(ctx, chat, account)
		if err != nil {
			s.log.Error("live baseline read failed",
				logx.Int64("chat", chat), logx.Int64("account", account), logx.Err(err))
			continue
		}
		if ok && base == snap.Status {
			continue
		}
		res.stale = append(res.stale, chat)
		if err := s.store.SetLiveBaseline(ctx, chat, account, snap.Status); err != nil {
			s.log.Error("live baseline write failed",
				logx.Int64("chat", chat), logx.Int64("account", account), logx.Err(err))
		}
	}
	if bootstrap || snap.Status != fetch.StatusOnline {
		return res
	}
	res.notify = res.stale
	return res
}
