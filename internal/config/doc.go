// Package config loads deck's configuration.
//
// # Resolution Order
//
//  1. Built-in defaults (Default)
//  2. TOML file: the explicit path, or ~/.config/deck/config.toml
//  3. DECK_* environment variables (DECK_API_BASE, DECK_TOKEN, ...)
//
// A missing file is not an error. Empty strings in the file keep the
// default. Paths starting with ~ are expanded.
//
// # TOML Format
//
//	api_base = "https://api.example.com"
//	socket_url = "wss://api.example.com/socket"   # derived when omitted
//	user_id = "u_123"
//	state_path = "~/.local/share/deck/state.db"
//	log_path = "~/.local/share/deck/deck.log"
//	request_timeout_ms = 10000
//
//	[cache]
//	deduping_interval_ms = 2000
//	refresh_interval_ms = 0
//	revalidate_on_focus = true
//	revalidate_on_reconnect = true
//
//	[upload]
//	accept = ["video/*", ".mov"]
//	max_size_mb = 500
//
//	[endpoints]
//	"kanban.board" = "/api/kanban/board"
//
// The token is normally supplied through DECK_TOKEN rather than the file.
package config
