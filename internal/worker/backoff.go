package worker

import "math"

// Backoff determines how long, in seconds, a failed message stays invisible
// before its next delivery. It doubles with every delivery and is capped at
// one hour.
func Backoff(receiveCount int) int32 {
	if receiveCount < 1 {
		receiveCount = 1
	}
	backoff := math.Pow(2, float64(receiveCount)) * 10
	if backoff > 3600 {
		return 3600
	}
	return int32(backoff)
}
