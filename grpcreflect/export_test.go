package grpcreflect

import "time"

// SetClock replaces the client's source of the current time.
func SetClock(c *Client, now func() time.Time) {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	c.now = now
}
