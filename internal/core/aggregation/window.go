package aggregation

import (
	"fmt"
	"time"
)

// Day is the bucket granularity for counters.
const Day = 24 * time.Hour

// Window is a half-open cursor range [Lower, Upper).
type Window struct {
	Lower int64
	Upper int64
}

func (w Window) String() string {
	return fmt.Sprintf("[%d, %d)", w.Lower, w.Upper)
}

// Width returns the number of cursor positions covered by the window.
func (w Window) Width() int64 {
	return w.Upper - w.Lower
}

// NextWindow returns the window that starts at last and is width wide, clipped to max.
// ok is false once last has reached max: there is nothing left to scan.
func NextWindow(last, width, max int64) (w Window, ok bool) {
	if width <= 0 || last >= max {
		return Window{}, false
	}
	upper := last + width
	if upper > max || upper < last { // clip, and guard overflow
		upper = max
	}
	return Window{Lower: last, Upper: upper}, true
}

// BucketFor truncates a timestamp to the nearest granularity boundary.
// Example: BucketFor(10:35:42, 1*time.Minute) → 10:35:00
func BucketFor(t time.Time, granularity time.Duration) time.Time {
	return t.Truncate(granularity)
}

// BucketDate returns the UTC calendar day t falls on.
func BucketDate(t time.Time) time.Time {
	return BucketFor(t.UTC(), Day)
}
