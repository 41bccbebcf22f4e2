// Package cache implements the client's remote cache: a keyed store of
// server resources supporting lazy reads, optimistic local writes and
// revalidation on demand.
//
// # Overview
//
// Every server resource the views care about lives under a string key
// ("board", "submissions:{userId}:{campaignId}", "campaign:count"). A Store
// entry holds the last known value, whether a fetch is in flight, and the
// last fetch error. Entries are created on first read and only disappear on
// Reset (logout).
//
// # Reads
//
//	store.Read(key)       non-blocking; starts a fetch when missing or stale
//	store.Load(ctx, key)  blocking; returns fresh data or waits for a fetch
//	store.Revalidate(...) blocking; always fetches (joins an in-flight one)
//
// A failed fetch keeps the previous data and records Err on the entry
// (stale-while-error), mirroring how the poller-fed snapshot used to behave.
//
// # Writes
//
//	rev := store.Mutate(key, patch, false)  // optimistic, visible immediately
//	store.Mutate(key, nil, true)            // discard guesses, refetch
//	store.Rollback(rev, true)               // undo rev unless overwritten
//
// # Concurrency
//
// At most one fetch per key is in flight; callers inside that window share
// it through singleflight. Every local write bumps a per-key generation and
// forgets the in-flight request, so a response issued before the write is
// discarded when it lands. Between two server round trips the last response
// to land wins: the store is eventually consistent, not linearizable.
//
// Subscribers receive each change on a buffered channel of size one; a slow
// subscriber only sees the newest entry.
package cache
