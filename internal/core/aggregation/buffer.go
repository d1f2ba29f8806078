package aggregation

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// ErrBucketMismatch is returned when rows for one date are merged into a buffer holding another.
var ErrBucketMismatch = errors.New("buffer holds a different bucket date")

// Buffer accumulates counters for exactly one bucket date.
// It is not safe for concurrent use; the aggregation loop owns it.
type Buffer struct {
	date     time.Time
	counters map[string]*Counter
}

// NewBuffer returns an empty buffer.
func NewBuffer() *Buffer {
	return &Buffer{counters: make(map[string]*Counter)}
}

// Date returns the bucket date of the buffered counters. ok is false when the buffer is empty.
func (b *Buffer) Date() (date time.Time, ok bool) {
	if len(b.counters) == 0 {
		return time.Time{}, false
	}
	return b.date, true
}

// Len returns the number of distinct keys buffered.
func (b *Buffer) Len() int {
	return len(b.counters)
}

// Get returns a copy of the counter for key.
func (b *Buffer) Get(key string) (Counter, bool) {
	c, ok := b.counters[key]
	if !ok {
		return Counter{}, false
	}
	return *c, true
}

// Merge adds rows to the buffer under date. Existing counters are incremented,
// new keys are inserted. Merging a different date into a non-empty buffer fails;
// the caller must Drain first.
func (b *Buffer) Merge(date time.Time, rows []KeyCount) error {
	date = BucketDate(date)
	if len(b.counters) > 0 && !b.date.Equal(date) {
		return fmt.Errorf("%w: buffered %s, incoming %s", ErrBucketMismatch,
			b.date.Format(time.DateOnly), date.Format(time.DateOnly))
	}
	b.date = date

	for _, row := range rows {
		if row.Key == "" || row.Count <= 0 {
			continue
		}
		if existing, ok := b.counters[row.Key]; ok {
			existing.Count += row.Count
			continue
		}
		b.counters[row.Key] = &Counter{Key: row.Key, Count: row.Count, BucketDate: date}
	}
	return nil
}

// Drain empties the buffer and returns the counters above NoiseCount, sorted by key.
// dropped is the number of noise counters discarded.
func (b *Buffer) Drain() (kept []Counter, dropped int) {
	kept = make([]Counter, 0, len(b.counters))
	for _, c := range b.counters {
		if c.Count <= NoiseCount {
			dropped++
			continue
		}
		kept = append(kept, *c)
	}
	sort.Slice(kept, func(i, j int) bool { return kept[i].Key < kept[j].Key })

	b.counters = make(map[string]*Counter)
	b.date = time.Time{}
	return kept, dropped
}
