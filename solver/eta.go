package solver

import "fmt"

// Duration unit lengths in seconds. Months and years are calendar-flavored
// on purpose: an ETA of "4 months" does not need leap-second precision.
const (
	secondsPerMinute = 60
	secondsPerHour   = 60 * secondsPerMinute
	secondsPerDay    = 24 * secondsPerHour
	secondsPerMonth  = 31 * secondsPerDay
	secondsPerYear   = 365 * secondsPerDay
)

// ETA renders the remaining work as a human-friendly duration. The unit
// ladder keeps the reported magnitude under roughly a hundred of any unit
// before promoting to the next; values truncate. perSecond must be > 0.
func ETA(remaining uint64, perSecond float64) string {
	seconds := float64(remaining) / perSecond

	switch {
	case seconds < 100:
		return fmt.Sprintf("%d seconds", int64(seconds))
	case seconds < 100*secondsPerMinute:
		return fmt.Sprintf("%d minutes", int64(seconds/secondsPerMinute))
	case seconds < 100*secondsPerHour:
		return fmt.Sprintf("%d hours", int64(seconds/secondsPerHour))
	case seconds < 60*secondsPerDay:
		return fmt.Sprintf("%d days", int64(seconds/secondsPerDay))
	case seconds < 20*secondsPerMonth:
		return fmt.Sprintf("%d months", int64(seconds/secondsPerMonth))
	default:
		return fmt.Sprintf("%d years", int64(seconds/secondsPerYear))
	}
}
