package aggregation

import "time"

// NoiseCount is the highest count treated as noise. Counters at or below it are never persisted.
const NoiseCount = 1

// KeyCount is one grouped row from a window query.
type KeyCount struct {
	Key   string
	Count int64
}

// Counter is the accumulated occurrence count of one key within one bucket date.
// Counts only grow: merges add, nothing subtracts.
type Counter struct {
	Key        string
	Count      int64
	BucketDate time.Time // UTC midnight
}
