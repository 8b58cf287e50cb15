package state

import "time"

// Sweeper removes sessions idle for longer than maxIdle and reports how many
// were dropped.
type Sweeper interface {
	Sweep(maxIdle time.Duration) int
}

type entry[T any] struct {
	value   T
	touched time.Time
}
