// Package storage persists the bot's small durable state.
//
// Two records survive restarts:
//   - the sudo set (authorized user ids)
//   - the chat state (known chats and per-chat delay overrides)
//
// Command invocations are additionally appended to an audit log.
package storage
