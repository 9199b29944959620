package watch

import (
	"context"
	"time"

	"subwatch/internal/eventbus"
	"subwatch/internal/transport"
	"subwatch/pkg/logx"
)

// dispatchText fans a single text payload out to each chat independently.
// A delivery failure is logged and skipped; remaining chats are still
// attempted and the already-committed baselines are untouched.
func (s *Service) dispatchText(ctx context.Context, kind Kind, account int64, chats []int64, text string, opt *transport.SendOptions) int {
	sent := 0
	for _, chat := range chats {
		to := transport.ChatTarget{ChatID: chat}
		if err := s.send(ctx, func(c context.Context) error {
			return s.adapter.SendText(c, to, text, opt)
		}); err != nil {
			s.log.Error("delivery failed",
				logx.String("kind", string(kind)), logx.Int64("account", account),
				logx.Int64("chat", chat), logx.Err(err))
			s.publishNotify("notify.failed", kind, account, chat, err)
			continue
		}
		sent++
		s.publishNotify("notify.sent", kind, account, chat, nil)
	}
	return sent
}

// dispatchPost delivers the post notification to each chat as two ordered
// sub-sends: the short text alert, then the rich node sequence. The pair is
// not atomic, but the order is always alert first.
func (s *Service) dispatchPost(ctx context.Context, account int64, chats []int64, alert string, nodes []transport.Node) int {
	sent := 0
	for _, chat := range chats {
		to := transport.ChatTarget{ChatID: chat}
		if err := s.send(ctx, func(c context.Context) error {
			return s.adapter.SendText(c, to, alert, nil)
		}); err != nil {
			s.log.Error("post alert delivery failed",
				logx.Int64("account", account), logx.Int64("chat", chat), logx.Err(err))
			s.publishNotify("notify.failed", KindPost, account, chat, err)
			continue
		}
		if err := s.send(ctx, func(c context.Context) error {
			return s.adapter.SendNodes(c, to, nodes)
		}); err != nil {
			s.log.Error("post nodes delivery failed",
				logx.Int64("account", account), logx.Int64("chat", chat), logx.Err(err))
			s.publishNotify("notify.failed", KindPost, account, chat, err)
			continue
		}
		sent++
		s.publishNotify("notify.sent", KindPost, account, chat, nil)
	}
	return sent
}

// send applies the shared rate limit and a per-call timeout.
func (s *Service) send(ctx context.Context, fn func(context.Context) error) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}
	cctx, cancel := context.WithTimeout(ctx, s.cfg.SendTimeout)
	defer cancel()
	return fn(cctx)
}

func (s *Service) publishNotify(typ string, kind Kind, account, chat int64, err error) {
	if s.bus == nil {
		return
	}
	ev := NotifyEvent{Kind: kind, Account: account, Chat: chat}
	if err != nil {
		ev.Error = err.Error()
	}
	s.bus.Publish(eventbus.Event{Type: typ, Time: time.Now(), Data: ev})
}
