// Package watch implements the subscription diff-and-fan-out engine.
//
// Once per scheduled tick the service fetches a snapshot for every distinct
// tracked account, compares it against the per-(chat, account) baselines,
// advances baselines for stale chats, and — outside bootstrap runs — builds
// one notification per transition and fans it out to every stale chat.
//
// Failure isolation: a fetch, render, storage, or delivery failure affects
// only the account or chat it happened for; the rest of the run proceeds.
package watch
