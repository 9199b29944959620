package config

import "fmt"

type Config struct {
	Telegram  TelegramConfig  `json:"telegram"`
	Logging   LoggingConfig   `json:"logging"`
	Storage   StorageConfig   `json:"storage"`
	Scheduler SchedulerConfig `json:"scheduler"`
	Fetch     FetchConfig     `json:"fetch"`
	Render    RenderConfig    `json:"render"`
	Dispatch  DispatchConfig  `json:"dispatch"`

	Subscriptions SubscriptionConfig `json:"subscriptions"`
}

type TelegramConfig struct {
	Token string `json:"token" env:"SUBWATCH_TELEGRAM_TOKEN"`
	// PollTimeout is a Go duration string (e.g. "10s", "2m").
	PollTimeout string `json:"poll_timeout,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// StorageConfig controls the baseline persistence layer.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./subwatch.db" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path" env:"SUBWATCH_DB_PATH"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string
}

// SchedulerConfig controls how often subscription runs are triggered.
//
// Spec accepts either a Go duration ("5m") or a cron expression
// ("*/5 * * * *").
type SchedulerConfig struct {
	Enabled  bool   `json:"enabled"`
	Spec     string `json:"spec"`
	Timezone string `json:"timezone,omitempty"`
}

type FetchConfig struct {
	BaseURL   string `json:"base_url"`
	UserAgent string `json:"user_agent,omitempty"`
	Timeout   string `json:"timeout,omitempty"` // Go duration string
	Attempts  int    `json:"attempts,omitempty"`
}

type RenderConfig struct {
	Endpoint string `json:"endpoint"`
	Timeout  string `json:"timeout,omitempty"` // Go duration string

	// PostPageURL is a printf template producing a post's public page URL
	// from its numeric id; Selector picks the element to screenshot.
	PostPageURL string `json:"post_page_url"`
	LivePageURL string `json:"live_page_url"`
	Selector    string `json:"selector"`
}

type DispatchConfig struct {
	RatePerSec  int    `json:"rate_per_sec,omitempty"`
	SendTimeout string `json:"send_timeout,omitempty"` // Go duration string
}

// SubscriptionConfig is the account's subscription list.
//
// Enabled is the feature switch: when false a run returns immediately with
// no fetches and no side effects.
type SubscriptionConfig struct {
	Enabled bool                `json:"enabled"`
	Groups  []SubscriptionGroup `json:"groups"`
}

// SubscriptionGroup subscribes a set of chats to tracked accounts.
// Posts and Lives are independent subscription kinds over the same accounts.
type SubscriptionGroup struct {
	Chats []int64 `json:"chats"`
	Posts []int64 `json:"posts,omitempty"`
	Lives []int64 `json:"lives,omitempty"`
}

// Validate rejects configs that cannot possibly run.
func (c *Config) Validate() error {
	if c.Scheduler.Enabled && c.Scheduler.Spec == "" {
		return fmt.Errorf("scheduler.spec is required when scheduler is enabled")
	}
	for i, g := range c.Subscriptions.Groups {
		if len(g.Chats) == 0 {
			return fmt.Errorf("subscriptions.groups[%d]: chats must not be empty", i)
		}
	}
	return nil
}
