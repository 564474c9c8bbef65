// Package dedupe remembers recently processed transport updates.
//
// The chat transport delivers updates at least once: webhook calls are retried
// when a response is slow, and a long-poll restart can replay the last batch.
// The session registry asks Seen(tenantID, updateID) before dispatching; the
// first caller wins and every replay inside the TTL window is dropped.
//
// Entries expire after the TTL and the cache never grows past its size bound;
// the oldest entry is evicted first.
package dedupe
