package transport

import "context"

// ChatTarget identifies a delivery target (a chat/group).
type ChatTarget struct {
	ChatID int64
}

type SendOptions struct {
	ParseMode      string
	DisablePreview bool
}

// Node is one entry of a rich, ordered message sequence.
//
// Exactly one of Text or ImageURL is set. Tag is an opaque numeric field
// carried through from the upstream message format.
type Node struct {
	Author   string
	Tag      int64
	Text     string
	ImageURL string
}

// Adapter is the outbound message transport.
//
// Implementations must be safe for concurrent independent calls.
type Adapter interface {
	// SendText delivers a single plain-text message.
	SendText(ctx context.Context, to ChatTarget, text string, opt *SendOptions) error

	// SendNodes delivers an ordered sequence of content nodes.
	// Node order must be preserved on the receiving end.
	SendNodes(ctx context.Context, to ChatTarget, nodes []Node) error
}
