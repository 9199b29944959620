// Package storage provides the persisted baseline ledger.
//
// One row per (chat, account) and kind: the last post timestamp or the last
// live status that was recorded for that chat. Baselines are scoped per chat,
// not per account, because two chats may subscribe to the same account at
// different times.
package storage
