// Package ui is the interactive board.
//
// The Model subscribes to the board and campaign-count cache keys, the
// upload controller, the inbox counter and the notice center, and re-renders
// on every delivery. Key presses start writes through the kanban and
// submission services off the update loop; their failures surface as
// notices. Focus events from the terminal call cache.Focus so stale keys
// revalidate when the user comes back.
//
// Themes are persisted in local state under "ui.theme".
package ui
