// Package convstate holds in-progress dialogue state per (tenant, chat, user).
//
// # Keys and namespaces
//
// A Key combines a Namespace with the tenant, chat and user ids. The dialogue
// namespace tracks the main multi-step flows; the language namespace is kept
// apart so a language prompt can interrupt any flow and later resume it.
// There is exactly one live State per Key: Put always overwrites.
//
// # Tags
//
// Tag is a closed set of dialogue states. AllTags lists every member so the
// dialogue engine can assert its transition table is exhaustive.
//
// # Backends
//
//   - MemoryStore: process-local, TTL-evicted and size-bounded
//   - RedisStore: shared across processes, TTL enforced by Redis
//
// Cooldowns implement per-key rate limiting windows (credential resets) with
// the same two backends. Entries vanish when their window ends, so neither
// structure grows without bound.
package convstate
