package fetch

import (
	"time"

	"github.com/tidwall/gjson"
)

// Status is the live/stream state of a tracked account's room.
type Status int

const (
	StatusOffline Status = 0
	StatusOnline  Status = 1
	StatusLooping Status = 2
)

func (s Status) String() string {
	switch s {
	case StatusOffline:
		return "offline"
	case StatusOnline:
		return "online"
	case StatusLooping:
		return "looping"
	default:
		return "unknown"
	}
}

// PostSnapshot is the latest content post observed for one account.
//
// ID == 0 or a zero PublishedAt means the account has no visible post.
// Detail holds the raw upstream post document; payload building reads
// optional fields (text excerpt, image attachments) out of it by path.
type PostSnapshot struct {
	ID          uint64
	Author      string
	PublishedAt time.Time
	Detail      gjson.Result
}

// LiveSnapshot is the current live/room state for one account.
type LiveSnapshot struct {
	Status Status
	Cover  string
	Title  string
	RoomID int64
	Author string
}
