package drip

import "time"

// withinSendWindow reports whether hour falls inside the configured daily
// send window. When start <= end the window is [start, end); when
// start > end it wraps past midnight, open for hour >= start or hour < end.
func withinSendWindow(hour, start, end int) bool {
	if start <= end {
		return hour >= start && hour < end
	}
	return hour >= start || hour < end
}

// nextWindowOpen returns tomorrow at start:00:00 in now's location, the
// time a deferred enrollment becomes due again.
func nextWindowOpen(now time.Time, start int) time.Time {
	tomorrow := now.AddDate(0, 0, 1)
	return time.Date(tomorrow.Year(), tomorrow.Month(), tomorrow.Day(), start, 0, 0, 0, now.Location())
}
