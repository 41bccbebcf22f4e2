// Package app is the composition root of deck.
//
// # Overview
//
// New turns a config.Config into a Runtime: the REST client, the remote
// cache with its key router, the mutation dispatcher, the upload controller,
// the domain services and the per-user realtime session. The CLI and the
// TUI both start from a Runtime and never construct these pieces themselves.
//
// # Wiring
//
//	┌──────────────┐
//	│   New()      │
//	└──────┬───────┘
//	       ├─────> api.NewClient()        REST + multipart uploads
//	       ├─────> localstate.Open()      theme, tabs, preview handles
//	       ├─────> cache.New(router)      board, submissions:*, campaign:count
//	       ├─────> mutation.NewDispatcher optimistic writes, notices on failure
//	       ├─────> upload.NewController   previews reclaimed from last run
//	       └─────> realtime.NewSession    one socket per signed-in user
//
// Socket events are bound in wire: progress feeds submission uploads,
// video-upload and video-upload-done feed pitch uploads, messageCount feeds
// the inbox counter, campaign and shortlisted revalidate the campaign counter.
// Every reconnect after the first calls cache.Reconnect.
//
// # Polling
//
// StartPoller calls cache.RefreshDue once per second. Keys only refresh when
// their RefreshInterval has elapsed, so the poller is idle unless interval
// refresh is configured. Failures back off through internal/retry and
// polling never stops on error.
//
// # Lifecycle
//
// Start signs in the configured user and launches the poller. Logout tears
// down the socket and clears the cache and inbox. Close releases uploads,
// stops background work and closes local state.
package app
