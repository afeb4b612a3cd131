package payload

import (
	"math"
	"time"
)

// JobMinutes returns the elapsed time between start and now in whole
// minutes, rounded up. The result is never below 1 so downstream metrics
// never see a zero-length run.
func JobMinutes(start, now time.Time) int {
	elapsed := now.Sub(start)
	if elapsed <= 0 {
		return 1
	}
	minutes := int(math.Ceil(elapsed.Minutes()))
	return max(minutes, 1)
}
