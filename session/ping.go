package session

import "time"

// handlePing implements spec.md §4.2.7: update lastPing and reply pong for
// a bound socket; an unbound socket that pings is a protocol violation and
// the caller closes it.
func handlePing(c *Client) map[string]any {
	c.lastPing = time.Now()
	return map[string]any{"type": "__pong__"}
}
