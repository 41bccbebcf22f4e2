// Package realtime carries server push events over a per-user websocket.
//
// A Bridge dials the platform socket, registers the user and routes each
// incoming frame to the handlers registered with On or Listen. Dropped
// connections are redialed with backoff; handlers registered with
// OnReconnect run after each recovery so callers can revalidate anything
// they may have missed. Session owns the single bridge for the signed-in
// user and swaps it when the user changes.
package realtime
