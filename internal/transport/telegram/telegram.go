// Package telegram implements the outbound transport on Telegram.
package telegram

import (
	"context"
	"errors"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"subwatch/internal/transport"
	"subwatch/pkg/logx"
)

type Config struct {
	Token       string
	PollTimeout time.Duration
}

type Adapter struct {
	bot *tele.Bot
	log logx.Logger
}

func New(cfg Config, log logx.Logger) (*Adapter, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	timeout := cfg.PollTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	b, err := tele.NewBot(tele.Settings{
		Token:  cfg.Token,
		Poller: &tele.LongPoller{Timeout: timeout},
	})
	if err != nil {
		return nil, err
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Adapter{bot: b, log: log}, nil
}

func (a *Adapter) SendText(ctx context.Context, to transport.ChatTarget, text string, opt *transport.SendOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if opt == nil {
		opt = &transport.SendOptions{}
	}
	chat := &tele.Chat{ID: to.ChatID}
	_, err := a.bot.Send(chat, text, &tele.SendOptions{
		ParseMode:             opt.ParseMode,
		DisableWebPagePreview: opt.DisablePreview,
	})
	return err
}

// SendNodes maps the node sequence onto ordered per-node Telegram sends:
// image nodes become photos (text as caption), text nodes become messages.
// It stops at the first failed send so the receiving chat never sees a
// sequence with holes in the middle.
func (a *Adapter) SendNodes(ctx context.Context, to transport.ChatTarget, nodes []transport.Node) error {
	chat := &tele.Chat{ID: to.ChatID}
	for i, n := range nodes {
		if err := ctx.Err(); err != nil {
			return err
		}
		var err error
		switch {
		case n.ImageURL != "":
			photo := &tele.Photo{File: tele.FromURL(n.ImageURL), Caption: n.Text}
			_, err = a.bot.Send(chat, photo)
		case n.Text != "":
			_, err = a.bot.Send(chat, n.Text)
		default:
			continue
		}
		if err != nil {
			a.log.Debug("node send failed",
				logx.Int64("chat", to.ChatID), logx.Int("node", i), logx.Err(err))
			return err
		}
	}
	return nil
}
