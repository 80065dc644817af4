// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Labgear

package regloicc

import "time"

// The pump's own stall guard can leave a channel reporting "busy" forever
// without moving. The driver keeps one odometer snapshot per channel and
// treats "running but not counting up for stallWindow" as a stall.
const stallWindow = 2 * time.Second

// channelTracker holds the last odometer reading observed for one channel.
// observed distinguishes "never read since the last pump command" from a
// real reading, so no sentinel value can collide with odometer data.
type channelTracker struct {
	observed   bool
	lastValue  int
	lastChange time.Time
}

// reset puts the tracker back into its fresh state. Called whenever a new
// pump command starts on the channel.
func (c *channelTracker) reset() {
	c.observed = false
	c.lastValue = 0
	c.lastChange = time.Time{}
}

// progress records an odometer reading taken at now and reports whether the
// channel is still making progress. false means the value has been frozen
// for at least stallWindow.
func (c *channelTracker) progress(value int, now time.Time) bool {
	if !c.observed || value != c.lastValue {
		c.observed = true
		c.lastValue = value
		c.lastChange = now
		return true
	}
	return now.Sub(c.lastChange) < stallWindow
}
