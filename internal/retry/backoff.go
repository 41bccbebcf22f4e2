// Package retry holds the backoff schedule shared by the refresh poller and
// the realtime transport.
package retry

import "time"

// MaxBackoff caps every delay returned by Backoff.
const MaxBackoff = 30 * time.Second

// Backoff doubles base for each consecutive failure, capped at MaxBackoff.
func Backoff(failures int, base time.Duration) time.Duration {
	if failures <= 0 {
		return base
	}
	delay := base
	for i := 0; i < failures; i++ {
		delay *= 2
		if delay >= MaxBackoff {
			return MaxBackoff
		}
	}
	return delay
}
