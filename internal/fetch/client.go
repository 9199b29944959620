package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/codeGROOVE-dev/retry"
	"github.com/tidwall/gjson"

	"subwatch/pkg/logx"
)

const (
	defaultTimeout  = 10 * time.Second
	defaultAttempts = 3
	maxBodyBytes    = 4 << 20
)

var ErrNoPost = errors.New("account has no visible post")

type Config struct {
	BaseURL   string
	UserAgent string
	Timeout   time.Duration
	Attempts  int
}

// Client fetches account snapshots from the upstream subscription API.
type Client struct {
	cfg  Config
	http *http.Client
	log  logx.Logger
}

func NewClient(cfg Config, log logx.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("fetch: base_url is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Attempts <= 0 {
		cfg.Attempts = defaultAttempts
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
		log:  log,
	}, nil
}

// LatestPost returns the newest content post for the account.
func (c *Client) LatestPost(ctx context.Context, account int64) (*PostSnapshot, error) {
	doc, err := c.get(ctx, "/post/latest", account)
	if err != nil {
		return nil, err
	}

	data := doc.Get("data")
	id := data.Get("post_id").Uint()
	ts := data.Get("publish_ts").Int()
	if id == 0 || ts == 0 {
		return nil, ErrNoPost
	}

	return &PostSnapshot{
		ID:          id,
		Author:      data.Get("uname").String(),
		PublishedAt: time.Unix(ts, 0),
		Detail:      data.Get("detail"),
	}, nil
}

// Live returns the current live/room state for the account.
func (c *Client) Live(ctx context.Context, account int64) (*LiveSnapshot, error) {
	doc, err := c.get(ctx, "/user/live", account)
	if err != nil {
		return nil, err
	}

	data := doc.Get("data")
	return &LiveSnapshot{
		Status: Status(data.Get("live_status").Int()),
		Cover:  data.Get("cover").String(),
		Title:  data.Get("title").String(),
		RoomID: data.Get("room_id").Int(),
		Author: data.Get("uname").String(),
	}, nil
}

// get performs one API call with retry/backoff and returns the decoded envelope.
// API-level errors (code != 0) are not retried.
func (c *Client) get(ctx context.Context, path string, account int64) (gjson.Result, error) {
	url := c.cfg.BaseURL + path + "?uid=" + strconv.FormatInt(account, 10)

	var doc gjson.Result
	err := retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
			if err != nil {
				return retry.Unrecoverable(err)
			}
			if c.cfg.UserAgent != "" {
				req.Header.Set("User-Agent", c.cfg.UserAgent)
			}

			resp, err := c.http.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("upstream returned %s", resp.Status)
			}

			body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
			if err != nil {
				return err
			}
			if !gjson.ValidBytes(body) {
				return errors.New("upstream returned invalid JSON")
			}

			parsed := gjson.ParseBytes(body)
			if code := parsed.Get("code").Int(); code != 0 {
				return retry.Unrecoverable(fmt.Errorf("api error code=%d message=%q",
					code, parsed.Get("message").String()))
			}
			doc = parsed
			return nil
		},
		retry.Attempts(uint(c.cfg.Attempts)),
		retry.Delay(500*time.Millisecond),
		retry.MaxDelay(5*time.Second),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			c.log.Debug("retrying fetch",
				logx.String("path", path), logx.Int64("account", account),
				logx.Uint64("attempt", uint64(n)), logx.Err(err))
		}),
	)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("fetch %s for account %d: %w", path, account, err)
	}
	return doc, nil
}
